package service

import (
	"context"

	"settlement/internal/ledger"
	"settlement/internal/models"
	"settlement/internal/repository"
	"settlement/internal/settlement"
)

// OfferRepositoryInterface определяет интерфейс репозитория предложений
type OfferRepositoryInterface interface {
	Create(ctx context.Context, offer *models.Offer) error
	GetByID(ctx context.Context, id string) (*models.Offer, error)
	Find(ctx context.Context, filter repository.OfferFilter) ([]*models.Offer, error)
	Update(ctx context.Context, offer *models.Offer) error
}

// OrderRepositoryInterface определяет интерфейс репозитория ордеров
type OrderRepositoryInterface interface {
	OrderLookup
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	Find(ctx context.Context, filter repository.OrderFilter) ([]*models.Order, error)
	UpdateStatus(ctx context.Context, id string, status string) error
}

// IssuanceRepositoryInterface определяет интерфейс репозитория эмиссий
type IssuanceRepositoryInterface interface {
	IssuanceLookup
	Create(ctx context.Context, iss *models.Issuance) error
	GetByID(ctx context.Context, id string) (*models.Issuance, error)
	AdjustSharesIssued(ctx context.Context, id string, delta int64) error
	AdjustSharesAuthorized(ctx context.Context, id string, delta int64) error
}

// TransactionRepositoryInterface определяет интерфейс репозитория транзакций
type TransactionRepositoryInterface interface {
	Create(ctx context.Context, tx *models.Transaction) error
	GetByID(ctx context.Context, id string) (*models.Transaction, error)
	Find(ctx context.Context, q repository.TransactionQuery) ([]*models.Transaction, error)
	AssignOffer(ctx context.Context, txID, offerID string) (int64, error)
}

// ICOInvestorRepositoryInterface определяет интерфейс репозитория выплат
type ICOInvestorRepositoryInterface interface {
	Create(ctx context.Context, inv *models.ICOInvestor) error
	GetByEmail(ctx context.Context, email string) (*models.ICOInvestor, error)
	List(ctx context.Context, status string) ([]*models.ICOInvestor, error)
	Claim(ctx context.Context, email string, token int64) (*models.ICOInvestor, error)
	MarkManual(ctx context.Context, email, address, paymentError string) error
	DeleteByEmail(ctx context.Context, email string) error
}

// PortfolioAddressRepositoryInterface определяет интерфейс репозитория адресов портфеля
type PortfolioAddressRepositoryInterface interface {
	Create(ctx context.Context, pa *models.PortfolioAddress) error
	GetByImportAddress(ctx context.Context, portfolioID, importAddress string) (*models.PortfolioAddress, error)
	ListByPortfolio(ctx context.Context, portfolioID string) ([]*models.PortfolioAddress, error)
}

// NotificationRepositoryInterface определяет интерфейс репозитория уведомлений
type NotificationRepositoryInterface interface {
	Create(ctx context.Context, n *models.Notification) error
	GetByAddress(ctx context.Context, address string, limit int) ([]*models.Notification, error)
	MarkRead(ctx context.Context, id string) error
}

// Transactor выполняет fn в одной транзакции БД
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// IssuanceLookup - потолки количества по эмиссии
type IssuanceLookup interface {
	GetMaxSellable(ctx context.Context, issuanceID, portfolioID string) (int64, error)
	GetAuthorized(ctx context.Context, issuanceID string) (int64, error)
}

// OrderLookup - потолок количества BUY предложения
type OrderLookup interface {
	GetQuantity(ctx context.Context, orderID string) (int64, error)
}

// TransactionStore - запись и поиск блокчейн транзакций
type TransactionStore interface {
	Create(ctx context.Context, tx *models.Transaction) error
	Find(ctx context.Context, q repository.TransactionQuery) ([]*models.Transaction, error)
	AssignOffer(ctx context.Context, txID, offerID string) (int64, error)
}

// NotificationSender доставляет уведомление получателю
type NotificationSender interface {
	Send(ctx context.Context, n *models.Notification) error
}

// LedgerClient - RPC узла блокчейна
type LedgerClient interface {
	ListUnspent(ctx context.Context, address string) (*ledger.Unspent, error)
	Broadcast(ctx context.Context, rawHex string) (string, error)
}

// TransactionBuilder собирает и подписывает транзакцию выплаты
type TransactionBuilder interface {
	Build(inputs []ledger.Input, outputs []ledger.Output, network string) ([]byte, error)
}

// WebSocketBroadcaster - интерфейс для отправки WebSocket сообщений
//
// Позволяет избежать циклических зависимостей между пакетами
// и упрощает тестирование (можно подставить mock)
type WebSocketBroadcaster interface {
	BroadcastNotification(n *models.Notification)
}

// NotificationPublisher публикует уведомление для других экземпляров (Redis)
type NotificationPublisher interface {
	Publish(ctx context.Context, n *models.Notification) error
}

// PayoutTrigger запускает выплату для инвестора после импорта EQB адреса
type PayoutTrigger interface {
	Trigger(email, address string)
}

// ============ Интерфейсы сервисов для API handlers ============

// OfferServiceInterface - операции с предложениями
type OfferServiceInterface interface {
	Create(ctx context.Context, offer *models.Offer, external bool) (*models.Offer, error)
	Get(ctx context.Context, id string) (*models.Offer, error)
	Find(ctx context.Context, filter repository.OfferFilter) ([]*models.Offer, error)
	Patch(ctx context.Context, id string, patch settlement.OfferPatch, external bool) (*models.Offer, error)
	Update(ctx context.Context, id string, doc *models.Offer, external bool) (*models.Offer, error)
}

// OrderServiceInterface - операции с ордерами
type OrderServiceInterface interface {
	Create(ctx context.Context, order *models.Order, external bool) (*models.Order, error)
	Get(ctx context.Context, id string) (*models.Order, error)
	Find(ctx context.Context, filter repository.OrderFilter) ([]*models.Order, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

// TransactionServiceInterface - запись и поиск транзакций
type TransactionServiceInterface interface {
	Create(ctx context.Context, tx *models.Transaction) error
	Get(ctx context.Context, id string) (*models.Transaction, error)
	Find(ctx context.Context, q repository.TransactionQuery) ([]*models.Transaction, error)
}

// PortfolioAddressServiceInterface - импорт адресов портфеля
type PortfolioAddressServiceInterface interface {
	Create(ctx context.Context, pa *models.PortfolioAddress, email string) (*models.PortfolioAddress, error)
	List(ctx context.Context, portfolioID string) ([]*models.PortfolioAddress, error)
}

// NotificationServiceInterface - чтение уведомлений
type NotificationServiceInterface interface {
	GetByAddress(ctx context.Context, address string, limit int) ([]*models.Notification, error)
	MarkRead(ctx context.Context, id string) error
}
