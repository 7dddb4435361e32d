package service

import (
	"context"

	"settlement/internal/models"
	"settlement/internal/repository"
	"settlement/pkg/utils"
)

// OrderService - создание и поиск ордеров
type OrderService struct {
	orders    OrderRepositoryInterface
	validator *QuantityValidator
}

// NewOrderService создает сервис ордеров
func NewOrderService(orders OrderRepositoryInterface, validator *QuantityValidator) *OrderService {
	return &OrderService{orders: orders, validator: validator}
}

// Create создаёт ордер. Для внешних запросов проверяется количество.
func (s *OrderService) Create(ctx context.Context, order *models.Order, external bool) (*models.Order, error) {
	order.Type = utils.NormalizeTradeType(order.Type)
	if err := utils.ValidateTradeType(order.Type); err != nil {
		return nil, &BadRequestError{Message: err.Error()}
	}
	if err := utils.ValidateQuantity(order.Quantity); err != nil {
		return nil, &BadRequestError{Message: err.Error()}
	}

	if external {
		if err := s.validator.ValidateOrder(ctx, order); err != nil {
			return nil, err
		}
	}

	if order.Status == "" {
		order.Status = models.OrderStatusOpen
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// Get возвращает ордер по ID
func (s *OrderService) Get(ctx context.Context, id string) (*models.Order, error) {
	return s.orders.GetByID(ctx, id)
}

// Find возвращает ордера по фильтру
func (s *OrderService) Find(ctx context.Context, filter repository.OrderFilter) ([]*models.Order, error) {
	return s.orders.Find(ctx, filter)
}

// UpdateStatus меняет статус ордера
func (s *OrderService) UpdateStatus(ctx context.Context, id, status string) error {
	switch status {
	case models.OrderStatusOpen, models.OrderStatusTrading, models.OrderStatusCancelled, models.OrderStatusClosed:
	default:
		return NewBadRequest("unknown order status %q", status)
	}
	return s.orders.UpdateStatus(ctx, id, status)
}
