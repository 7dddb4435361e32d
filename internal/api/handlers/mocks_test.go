package handlers

import (
	"context"
	"sync"

	"settlement/internal/models"
	"settlement/internal/repository"
	"settlement/internal/settlement"
)

// MockOfferService - мок OfferServiceInterface
type MockOfferService struct {
	mu sync.Mutex

	offers map[string]*models.Offer
	err    error

	lastExternal bool
	lastFilter   repository.OfferFilter
	lastPatch    settlement.OfferPatch
}

func NewMockOfferService() *MockOfferService {
	return &MockOfferService{offers: make(map[string]*models.Offer)}
}

func (m *MockOfferService) Create(ctx context.Context, offer *models.Offer, external bool) (*models.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastExternal = external
	if m.err != nil {
		return nil, m.err
	}
	if offer.ID == "" {
		offer.ID = "offer-new"
	}
	if external {
		settlement.PrepareCreate(offer)
	}
	m.offers[offer.ID] = offer
	return offer, nil
}

func (m *MockOfferService) Get(ctx context.Context, id string) (*models.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	o, ok := m.offers[id]
	if !ok {
		return nil, repository.ErrOfferNotFound
	}
	return o, nil
}

func (m *MockOfferService) Find(ctx context.Context, filter repository.OfferFilter) ([]*models.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = filter
	if m.err != nil {
		return nil, m.err
	}
	var result []*models.Offer
	for _, o := range m.offers {
		if filter.OrderID != "" && o.OrderID != filter.OrderID {
			continue
		}
		result = append(result, o)
	}
	return result, nil
}

func (m *MockOfferService) Patch(ctx context.Context, id string, patch settlement.OfferPatch, external bool) (*models.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastPatch = patch
	m.lastExternal = external
	if m.err != nil {
		return nil, m.err
	}
	o, ok := m.offers[id]
	if !ok {
		return nil, repository.ErrOfferNotFound
	}
	next, err := settlement.Apply(*o, patch, external)
	if err != nil {
		return nil, err
	}
	m.offers[id] = &next
	return &next, nil
}

func (m *MockOfferService) Update(ctx context.Context, id string, doc *models.Offer, external bool) (*models.Offer, error) {
	m.mu.Lock()
	current, ok := m.offers[id]
	m.mu.Unlock()
	if ok && doc.Version != 0 && doc.Version != current.Version {
		return nil, repository.ErrOfferVersionConflict
	}
	return m.Patch(ctx, id, settlement.ReplacementPatch(doc), external)
}

// MockOrderService - мок OrderServiceInterface
type MockOrderService struct {
	mu sync.Mutex

	orders map[string]*models.Order
	err    error

	lastExternal bool
	lastFilter   repository.OrderFilter
}

func NewMockOrderService() *MockOrderService {
	return &MockOrderService{orders: make(map[string]*models.Order)}
}

func (m *MockOrderService) Create(ctx context.Context, order *models.Order, external bool) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastExternal = external
	if m.err != nil {
		return nil, m.err
	}
	if order.ID == "" {
		order.ID = "order-new"
	}
	m.orders[order.ID] = order
	return order, nil
}

func (m *MockOrderService) Get(ctx context.Context, id string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return o, nil
}

func (m *MockOrderService) Find(ctx context.Context, filter repository.OrderFilter) ([]*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = filter
	if m.err != nil {
		return nil, m.err
	}
	var result []*models.Order
	for _, o := range m.orders {
		result = append(result, o)
	}
	return result, nil
}

func (m *MockOrderService) UpdateStatus(ctx context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	o, ok := m.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.Status = status
	return nil
}

// MockTransactionService - мок TransactionServiceInterface
type MockTransactionService struct {
	mu sync.Mutex

	txs       map[string]*models.Transaction
	err       error
	lastQuery repository.TransactionQuery
}

func NewMockTransactionService() *MockTransactionService {
	return &MockTransactionService{txs: make(map[string]*models.Transaction)}
}

func (m *MockTransactionService) Create(ctx context.Context, tx *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.txs[tx.TxID]; ok {
		return repository.ErrTransactionExists
	}
	tx.ID = "tx-" + tx.TxID
	m.txs[tx.TxID] = tx
	return nil
}

func (m *MockTransactionService) Get(ctx context.Context, id string) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range m.txs {
		if tx.ID == id {
			return tx, nil
		}
	}
	return nil, repository.ErrTransactionNotFound
}

func (m *MockTransactionService) Find(ctx context.Context, q repository.TransactionQuery) ([]*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastQuery = q
	if m.err != nil {
		return nil, m.err
	}
	var result []*models.Transaction
	for _, tx := range m.txs {
		result = append(result, tx)
	}
	return result, nil
}

// MockPortfolioAddressService - мок PortfolioAddressServiceInterface
type MockPortfolioAddressService struct {
	mu sync.Mutex

	addresses []*models.PortfolioAddress
	lastEmail string
	err       error
}

func (m *MockPortfolioAddressService) Create(ctx context.Context, pa *models.PortfolioAddress, email string) (*models.PortfolioAddress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastEmail = email
	if m.err != nil {
		return nil, m.err
	}
	pa.ID = "pa-1"
	m.addresses = append(m.addresses, pa)
	return pa, nil
}

func (m *MockPortfolioAddressService) List(ctx context.Context, portfolioID string) ([]*models.PortfolioAddress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*models.PortfolioAddress
	for _, pa := range m.addresses {
		if pa.PortfolioID == portfolioID {
			result = append(result, pa)
		}
	}
	return result, nil
}

// MockNotificationService - мок NotificationServiceInterface
type MockNotificationService struct {
	mu sync.Mutex

	notifications []*models.Notification
	err           error
	lastLimit     int
}

func (m *MockNotificationService) GetByAddress(ctx context.Context, address string, limit int) ([]*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	var result []*models.Notification
	for _, n := range m.notifications {
		if n.Address == address {
			result = append(result, n)
		}
	}
	return result, nil
}

func (m *MockNotificationService) MarkRead(ctx context.Context, id string) error {
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
