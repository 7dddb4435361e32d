package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"settlement/internal/ledger"
	"settlement/internal/models"
	"settlement/internal/repository"
)

// ============ Mock OfferRepository ============

type MockOfferRepository struct {
	mu        sync.Mutex
	offers    map[string]*models.Offer
	createErr error
	updateErr error
	nextID    int
}

func NewMockOfferRepository() *MockOfferRepository {
	return &MockOfferRepository{offers: make(map[string]*models.Offer), nextID: 1}
}

func (m *MockOfferRepository) Create(ctx context.Context, offer *models.Offer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if offer.ID == "" {
		offer.ID = fmt.Sprintf("offer-%d", m.nextID)
		m.nextID++
	}
	offer.Version = 1
	offer.CreatedAt = time.Now()
	stored := *offer
	m.offers[offer.ID] = &stored
	return nil
}

func (m *MockOfferRepository) GetByID(ctx context.Context, id string) (*models.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.offers[id]
	if !ok {
		return nil, repository.ErrOfferNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MockOfferRepository) Find(ctx context.Context, filter repository.OfferFilter) ([]*models.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*models.Offer
	for _, o := range m.offers {
		if filter.OrderID != "" && o.OrderID != filter.OrderID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		cp := *o
		result = append(result, &cp)
	}
	return result, nil
}

func (m *MockOfferRepository) Update(ctx context.Context, offer *models.Offer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	stored, ok := m.offers[offer.ID]
	if !ok {
		return repository.ErrOfferNotFound
	}
	if stored.Version != offer.Version {
		return repository.ErrOfferVersionConflict
	}
	offer.Version++
	cp := *offer
	m.offers[offer.ID] = &cp
	return nil
}

func (m *MockOfferRepository) put(o models.Offer) {
	if o.Version == 0 {
		o.Version = 1
	}
	m.offers[o.ID] = &o
}

// ============ Mock OrderRepository ============

type MockOrderRepository struct {
	orders    map[string]*models.Order
	createErr error
	getErr    error
	nextID    int
}

func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{orders: make(map[string]*models.Order), nextID: 1}
}

func (m *MockOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	if order.ID == "" {
		order.ID = fmt.Sprintf("order-%d", m.nextID)
		m.nextID++
	}
	m.orders[order.ID] = order
	return nil
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return o, nil
}

func (m *MockOrderRepository) GetQuantity(ctx context.Context, id string) (int64, error) {
	if m.getErr != nil {
		return 0, m.getErr
	}
	if o, ok := m.orders[id]; ok {
		return o.Quantity, nil
	}
	return 0, nil
}

func (m *MockOrderRepository) Find(ctx context.Context, filter repository.OrderFilter) ([]*models.Order, error) {
	var result []*models.Order
	for _, o := range m.orders {
		result = append(result, o)
	}
	return result, nil
}

func (m *MockOrderRepository) UpdateStatus(ctx context.Context, id string, status string) error {
	o, ok := m.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.Status = status
	return nil
}

// ============ Mock IssuanceRepository ============

type MockIssuanceRepository struct {
	issuances   map[string]*models.Issuance
	maxSellable map[string]int64 // issuanceID + "/" + portfolioID
	lookupErr   error
	adjustErr   error
}

func NewMockIssuanceRepository() *MockIssuanceRepository {
	return &MockIssuanceRepository{
		issuances:   make(map[string]*models.Issuance),
		maxSellable: make(map[string]int64),
	}
}

func (m *MockIssuanceRepository) Create(ctx context.Context, iss *models.Issuance) error {
	m.issuances[iss.ID] = iss
	return nil
}

func (m *MockIssuanceRepository) GetByID(ctx context.Context, id string) (*models.Issuance, error) {
	iss, ok := m.issuances[id]
	if !ok {
		return nil, repository.ErrIssuanceNotFound
	}
	return iss, nil
}

func (m *MockIssuanceRepository) GetAuthorized(ctx context.Context, id string) (int64, error) {
	if m.lookupErr != nil {
		return 0, m.lookupErr
	}
	if iss, ok := m.issuances[id]; ok {
		return iss.SharesAuthorized, nil
	}
	return 0, nil
}

func (m *MockIssuanceRepository) GetMaxSellable(ctx context.Context, issuanceID, portfolioID string) (int64, error) {
	if m.lookupErr != nil {
		return 0, m.lookupErr
	}
	return m.maxSellable[issuanceID+"/"+portfolioID], nil
}

func (m *MockIssuanceRepository) AdjustSharesIssued(ctx context.Context, id string, delta int64) error {
	if m.adjustErr != nil {
		return m.adjustErr
	}
	iss, ok := m.issuances[id]
	if !ok {
		return repository.ErrIssuanceNotFound
	}
	iss.SharesIssued += delta
	return nil
}

func (m *MockIssuanceRepository) AdjustSharesAuthorized(ctx context.Context, id string, delta int64) error {
	if m.adjustErr != nil {
		return m.adjustErr
	}
	iss, ok := m.issuances[id]
	if !ok {
		return repository.ErrIssuanceNotFound
	}
	iss.SharesAuthorized += delta
	return nil
}

// ============ Mock TransactionRepository ============

type MockTransactionRepository struct {
	mu        sync.Mutex
	txs       []*models.Transaction
	createErr error
	findErr   error
}

func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{}
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.txs {
		if existing.FromAddress == tx.FromAddress && existing.TxID == tx.TxID {
			return repository.ErrTransactionExists
		}
	}
	if tx.ID == "" {
		tx.ID = fmt.Sprintf("tx-%d", len(m.txs)+1)
	}
	m.txs = append(m.txs, tx)
	return nil
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range m.txs {
		if tx.ID == id {
			return tx, nil
		}
	}
	return nil, repository.ErrTransactionNotFound
}

func (m *MockTransactionRepository) Find(ctx context.Context, q repository.TransactionQuery) ([]*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}

	matchesAny := func(tx *models.Transaction) bool {
		for _, a := range q.Addresses {
			if tx.FromAddress == a || tx.ToAddress == a {
				return true
			}
		}
		return false
	}

	var result []*models.Transaction
	for _, tx := range m.txs {
		if q.TxID != "" && tx.TxID != q.TxID {
			continue
		}
		if q.Address != "" && tx.FromAddress != q.Address && tx.ToAddress != q.Address {
			continue
		}
		if len(q.Addresses) > 0 && !matchesAny(tx) {
			continue
		}
		result = append(result, tx)
		if q.Limit > 0 && len(result) == q.Limit {
			break
		}
	}
	return result, nil
}

func (m *MockTransactionRepository) AssignOffer(ctx context.Context, txID, offerID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, tx := range m.txs {
		if tx.TxID == txID {
			tx.OfferID = offerID
			n++
		}
	}
	return n, nil
}

func (m *MockTransactionRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.txs)
}

// ============ Mock ICOInvestorRepository ============

type MockICOInvestorRepository struct {
	mu        sync.Mutex
	investors map[string]*models.ICOInvestor
	claimErr  error
	deleteErr error
	manualErr error
	claims    int32
}

func NewMockICOInvestorRepository() *MockICOInvestorRepository {
	return &MockICOInvestorRepository{investors: make(map[string]*models.ICOInvestor)}
}

func (m *MockICOInvestorRepository) Create(ctx context.Context, inv *models.ICOInvestor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := repository.NormalizeEmail(inv.Email)
	if _, ok := m.investors[email]; ok {
		return repository.ErrInvestorExists
	}
	inv.Email = email
	if inv.Status == "" {
		inv.Status = models.PayoutStatusOwed
	}
	m.investors[email] = inv
	return nil
}

func (m *MockICOInvestorRepository) GetByEmail(ctx context.Context, email string) (*models.ICOInvestor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.investors[repository.NormalizeEmail(email)]
	if !ok {
		return nil, repository.ErrInvestorNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *MockICOInvestorRepository) List(ctx context.Context, status string) ([]*models.ICOInvestor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*models.ICOInvestor
	for _, inv := range m.investors {
		if status == "" || inv.Status == status {
			cp := *inv
			result = append(result, &cp)
		}
	}
	return result, nil
}

// Claim повторяет семантику условного UPDATE ... WHERE locked = 0
func (m *MockICOInvestorRepository) Claim(ctx context.Context, email string, token int64) (*models.ICOInvestor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	atomic.AddInt32(&m.claims, 1)
	if m.claimErr != nil {
		return nil, m.claimErr
	}
	inv, ok := m.investors[repository.NormalizeEmail(email)]
	if !ok || inv.Locked != models.PayoutUnlocked || inv.ManualPaymentRequired {
		return nil, repository.ErrInvestorNotFound
	}
	inv.Locked = token
	inv.Status = models.PayoutStatusClaimed
	cp := *inv
	return &cp, nil
}

func (m *MockICOInvestorRepository) MarkManual(ctx context.Context, email, address, paymentError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.manualErr != nil {
		return m.manualErr
	}
	inv, ok := m.investors[repository.NormalizeEmail(email)]
	if !ok {
		return repository.ErrInvestorNotFound
	}
	inv.Address = address
	inv.ManualPaymentRequired = true
	inv.Status = models.PayoutStatusManualRequired
	inv.PaymentError = paymentError
	inv.Locked = models.PayoutUnlocked
	return nil
}

func (m *MockICOInvestorRepository) DeleteByEmail(ctx context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	key := repository.NormalizeEmail(email)
	if _, ok := m.investors[key]; !ok {
		return repository.ErrInvestorNotFound
	}
	delete(m.investors, key)
	return nil
}

func (m *MockICOInvestorRepository) get(email string) *models.ICOInvestor {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.investors[repository.NormalizeEmail(email)]
	if !ok {
		return nil
	}
	cp := *inv
	return &cp
}

// ============ Mock PortfolioAddressRepository ============

type MockPortfolioAddressRepository struct {
	addresses map[string]*models.PortfolioAddress // portfolioID + "/" + importAddress
	createErr error
	creates   int
}

func NewMockPortfolioAddressRepository() *MockPortfolioAddressRepository {
	return &MockPortfolioAddressRepository{addresses: make(map[string]*models.PortfolioAddress)}
}

func (m *MockPortfolioAddressRepository) Create(ctx context.Context, pa *models.PortfolioAddress) error {
	if m.createErr != nil {
		return m.createErr
	}
	key := pa.PortfolioID + "/" + pa.ImportAddress
	if _, ok := m.addresses[key]; ok {
		return repository.ErrPortfolioAddressExists
	}
	m.creates++
	pa.ID = fmt.Sprintf("pa-%d", m.creates)
	m.addresses[key] = pa
	return nil
}

func (m *MockPortfolioAddressRepository) GetByImportAddress(ctx context.Context, portfolioID, importAddress string) (*models.PortfolioAddress, error) {
	pa, ok := m.addresses[portfolioID+"/"+importAddress]
	if !ok {
		return nil, repository.ErrPortfolioAddressNotFound
	}
	return pa, nil
}

func (m *MockPortfolioAddressRepository) ListByPortfolio(ctx context.Context, portfolioID string) ([]*models.PortfolioAddress, error) {
	var result []*models.PortfolioAddress
	for _, pa := range m.addresses {
		if pa.PortfolioID == portfolioID {
			result = append(result, pa)
		}
	}
	return result, nil
}

// ============ Mock NotificationRepository ============

type MockNotificationRepository struct {
	mu            sync.Mutex
	notifications []*models.Notification
	createErr     error
}

func NewMockNotificationRepository() *MockNotificationRepository {
	return &MockNotificationRepository{}
}

func (m *MockNotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	n.ID = fmt.Sprintf("n-%d", len(m.notifications)+1)
	m.notifications = append(m.notifications, n)
	return nil
}

func (m *MockNotificationRepository) GetByAddress(ctx context.Context, address string, limit int) ([]*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*models.Notification
	for _, n := range m.notifications {
		if n.Address == address && len(result) < limit {
			result = append(result, n)
		}
	}
	return result, nil
}

func (m *MockNotificationRepository) MarkRead(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notifications {
		if n.ID == id {
			n.IsRead = true
			return nil
		}
	}
	return repository.ErrNotificationNotFound
}

// ============ Остальные зависимости ============

type MockTransactor struct {
	calls int
}

func (m *MockTransactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}

type MockNotificationSender struct {
	mu   sync.Mutex
	sent []*models.Notification
	err  error
}

func (m *MockNotificationSender) Send(ctx context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, n)
	return nil
}

type MockBroadcaster struct {
	mu   sync.Mutex
	sent []*models.Notification
}

func (m *MockBroadcaster) BroadcastNotification(n *models.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
}

type MockPublisher struct {
	published int
	err       error
}

func (m *MockPublisher) Publish(ctx context.Context, n *models.Notification) error {
	m.published++
	return m.err
}

type MockPayoutTrigger struct {
	mu       sync.Mutex
	triggers []string
}

func (m *MockPayoutTrigger) Trigger(email, address string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggers = append(m.triggers, email+"|"+address)
}

type MockLedger struct {
	mu           sync.Mutex
	unspent      *ledger.Unspent
	listErr      error
	broadcastErr error
	broadcastTx  string
	delay        time.Duration
	broadcasts   int32
	lastHex      string
}

func (m *MockLedger) ListUnspent(ctx context.Context, address string) (*ledger.Unspent, error) {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.unspent, nil
}

func (m *MockLedger) Broadcast(ctx context.Context, rawHex string) (string, error) {
	atomic.AddInt32(&m.broadcasts, 1)
	m.mu.Lock()
	m.lastHex = rawHex
	m.mu.Unlock()
	if m.broadcastErr != nil {
		return "", m.broadcastErr
	}
	return m.broadcastTx, nil
}

type MockBuilder struct {
	mu      sync.Mutex
	inputs  []ledger.Input
	outputs []ledger.Output
	network string
	err     error
}

func (m *MockBuilder) Build(inputs []ledger.Input, outputs []ledger.Output, network string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.inputs = inputs
	m.outputs = outputs
	m.network = network
	return []byte{0x02, 0x00, 0x00, 0x00}, nil
}
