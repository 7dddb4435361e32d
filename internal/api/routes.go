package api

import (
	"net/http"

	"settlement/internal/api/handlers"
	"settlement/internal/api/middleware"
	"settlement/internal/service"
	"settlement/internal/websocket"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	OfferService            service.OfferServiceInterface
	OrderService            service.OrderServiceInterface
	TransactionService      service.TransactionServiceInterface
	PortfolioAddressService service.PortfolioAddressServiceInterface
	NotificationService     service.NotificationServiceInterface

	Hub  *websocket.Hub
	Auth *middleware.InternalAuth

	AllowedOrigins []string
	RateLimit      float64
	RateBurst      int
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── /offers/
//	│   ├── GET / - поиск предложений
//	│   ├── POST / - создать предложение
//	│   ├── GET /{id} - получить предложение
//	│   ├── PATCH /{id} - переход HTLC
//	│   └── PUT /{id} - замена документа
//	├── /orders/
//	│   ├── GET / - поиск ордеров
//	│   ├── POST / - создать ордер
//	│   ├── GET /{id} - получить ордер
//	│   └── PATCH /{id} - изменить статус
//	├── /transactions/
//	│   ├── GET / - поиск транзакций
//	│   ├── POST / - записать транзакцию (internal)
//	│   └── GET /{id} - получить транзакцию
//	├── /portfolio-addresses/
//	│   ├── GET / - адреса портфеля
//	│   └── POST / - импорт адреса
//	└── /notifications/
//	    ├── GET / - уведомления адреса
//	    └── POST /{id}/read - пометить прочитанным
//
// /ws - WebSocket подписка на уведомления по адресам
// /health, /metrics
//
// Middleware применяется в следующем порядке:
// 1. Recovery
// 2. Logging
// 3. CORS
// 4. InternalAuth (определяет внутренние запросы по X-Internal-Token)
// 5. RateLimit (только /api/v1, внутренние запросы не ограничиваются)
func SetupRoutes(deps *Dependencies) *mux.Router {
	if deps == nil {
		deps = &Dependencies{}
	}

	router := mux.NewRouter()

	// Глобальные middleware (применяются ко всем маршрутам)
	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS(deps.AllowedOrigins))
	if deps.Auth != nil {
		router.Use(deps.Auth.Middleware)
	}

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.RateLimit(deps.RateLimit, deps.RateBurst))

	// Offer routes
	if deps.OfferService != nil {
		h := handlers.NewOfferHandler(deps.OfferService)
		api.HandleFunc("/offers", h.GetOffers).Methods("GET")
		api.HandleFunc("/offers", h.CreateOffer).Methods("POST")
		api.HandleFunc("/offers/{id}", h.GetOffer).Methods("GET")
		api.HandleFunc("/offers/{id}", h.PatchOffer).Methods("PATCH")
		api.HandleFunc("/offers/{id}", h.UpdateOffer).Methods("PUT")
	}

	// Order routes
	if deps.OrderService != nil {
		h := handlers.NewOrderHandler(deps.OrderService)
		api.HandleFunc("/orders", h.GetOrders).Methods("GET")
		api.HandleFunc("/orders", h.CreateOrder).Methods("POST")
		api.HandleFunc("/orders/{id}", h.GetOrder).Methods("GET")
		api.HandleFunc("/orders/{id}", h.UpdateOrderStatus).Methods("PATCH")
	}

	// Transaction routes. Записанные транзакции не изменяются.
	if deps.TransactionService != nil {
		h := handlers.NewTransactionHandler(deps.TransactionService)
		api.HandleFunc("/transactions", h.GetTransactions).Methods("GET")
		api.Handle("/transactions", middleware.RequireInternal(http.HandlerFunc(h.CreateTransaction))).Methods("POST")
		api.HandleFunc("/transactions/{id}", h.GetTransaction).Methods("GET")
		api.HandleFunc("/transactions/{id}", handlers.MethodNotAllowed).Methods("PATCH", "PUT", "DELETE")
	}

	// Portfolio address routes
	if deps.PortfolioAddressService != nil {
		h := handlers.NewPortfolioAddressHandler(deps.PortfolioAddressService)
		api.HandleFunc("/portfolio-addresses", h.GetPortfolioAddresses).Methods("GET")
		api.HandleFunc("/portfolio-addresses", h.CreatePortfolioAddress).Methods("POST")
	}

	// Notification routes
	if deps.NotificationService != nil {
		h := handlers.NewNotificationHandler(deps.NotificationService)
		api.HandleFunc("/notifications", h.GetNotifications).Methods("GET")
		api.HandleFunc("/notifications/{id}/read", h.MarkRead).Methods("POST")
	}

	// WebSocket route
	if deps.Hub != nil {
		hub := deps.Hub
		router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(hub, w, r)
		})
	}

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Маршруты объявлены без OPTIONS, поэтому preflight приходит сюда
	// как несовпадение метода. Неизвестные пути по-прежнему дают 404.
	methodNotAllowed := middleware.CORS(deps.AllowedOrigins)(http.HandlerFunc(handlers.MethodNotAllowed))
	router.MethodNotAllowedHandler = methodNotAllowed
	api.MethodNotAllowedHandler = methodNotAllowed

	return router
}
