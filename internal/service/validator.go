package service

import (
	"context"
	"fmt"
	"strings"

	"settlement/internal/models"
)

// Тексты ошибок превышения количества
const (
	MsgSellQuantityExceeded = "Sell Quantity exceeds maximum available"
	MsgBuyQuantityExceeded  = "Buy Quantity exceeds maximum"
)

// BadRequestError - запрос отклонён проверкой до записи в БД
type BadRequestError struct {
	Message string
}

func (e *BadRequestError) Error() string {
	return e.Message
}

// NewBadRequest создаёт BadRequestError
func NewBadRequest(format string, args ...interface{}) *BadRequestError {
	return &BadRequestError{Message: fmt.Sprintf(format, args...)}
}

// QuantityValidator проверяет количество новых ордеров и предложений.
// Применяется только к внешним запросам на создание.
type QuantityValidator struct {
	issuances IssuanceLookup
	orders    OrderLookup
}

// NewQuantityValidator создает валидатор
func NewQuantityValidator(issuances IssuanceLookup, orders OrderLookup) *QuantityValidator {
	return &QuantityValidator{issuances: issuances, orders: orders}
}

// ValidateOffer: SELL - не больше бумаг на адресах портфеля,
// BUY - не больше количества ордера
func (v *QuantityValidator) ValidateOffer(ctx context.Context, offer *models.Offer) error {
	switch strings.ToUpper(offer.Type) {
	case models.TradeTypeSell:
		return v.checkSellable(ctx, offer.IssuanceID, offer.PortfolioID, offer.Quantity)
	case models.TradeTypeBuy:
		max, err := v.orders.GetQuantity(ctx, offer.OrderID)
		if err != nil {
			return fmt.Errorf("order quantity: %w", err)
		}
		if offer.Quantity > max {
			return &BadRequestError{Message: MsgBuyQuantityExceeded}
		}
	}
	return nil
}

// ValidateOrder: SELL - не больше бумаг на адресах портфеля,
// BUY - не больше sharesAuthorized эмиссии
func (v *QuantityValidator) ValidateOrder(ctx context.Context, order *models.Order) error {
	switch strings.ToUpper(order.Type) {
	case models.TradeTypeSell:
		return v.checkSellable(ctx, order.IssuanceID, order.PortfolioID, order.Quantity)
	case models.TradeTypeBuy:
		max, err := v.issuances.GetAuthorized(ctx, order.IssuanceID)
		if err != nil {
			return fmt.Errorf("issuance authorized: %w", err)
		}
		if order.Quantity > max {
			return &BadRequestError{Message: MsgBuyQuantityExceeded}
		}
	}
	return nil
}

func (v *QuantityValidator) checkSellable(ctx context.Context, issuanceID, portfolioID string, quantity int64) error {
	max, err := v.issuances.GetMaxSellable(ctx, issuanceID, portfolioID)
	if err != nil {
		return fmt.Errorf("max sellable: %w", err)
	}
	if quantity > max {
		return &BadRequestError{Message: MsgSellQuantityExceeded}
	}
	return nil
}
