package settlement

import (
	"settlement/internal/models"
)

// UnitShares - единица количества в уведомлениях
const UnitShares = "Shares"

// CancellationLookup описывает HTLC транзакцию, по которой определяется
// получатель уведомления об отмене.
type CancellationLookup struct {
	TxID      string
	Addresses []string
}

// CancellationTx возвращает параметры поиска транзакции для отменённого
// предложения: htlcTxId3 на шаге 3, иначе htlcTxId4.
// ok=false если идентификатор транзакции не заполнен.
func CancellationTx(offer *models.Offer) (CancellationLookup, bool) {
	txID := offer.HTLCTxID4
	if offer.HTLCStep == models.HTLCStepFunded {
		txID = offer.HTLCTxID3
	}
	if txID == "" {
		return CancellationLookup{}, false
	}

	var addresses []string
	for _, a := range []string{offer.EqbAddress, offer.BtcAddress} {
		if a != "" {
			addresses = append(addresses, a)
		}
	}
	return CancellationLookup{TxID: txID, Addresses: addresses}, true
}

// ActionFor возвращает заголовок события для состояния предложения
func ActionFor(offer *models.Offer) string {
	switch offer.Status {
	case models.OfferStatusCancelled:
		return models.ActionOfferCancelled
	case models.OfferStatusClosed:
		return models.ActionDealClosed
	}

	if offer.HTLCStep >= models.HTLCStepFunded {
		if offer.Type == models.TradeTypeBuy {
			return models.ActionCollectPayment
		}
		return models.ActionCollectSecurities
	}
	return models.ActionOfferAccepted
}

// Recipient определяет адрес стороны, которая не инициировала переход.
//
// cancelTx - найденная HTLC транзакция (только для CANCELLED). Пустая строка -
// уведомлять некого.
func Recipient(offer *models.Offer, order *models.Order, cancelTx *models.Transaction) string {
	if offer.Status == models.OfferStatusCancelled {
		if cancelTx == nil {
			return ""
		}
		// Отменил создатель предложения - уведомляем держателя ордера
		if offer.OwnsAddress(cancelTx.ToAddress) {
			if order == nil {
				return ""
			}
			return order.EqbAddress
		}
		return offer.EqbAddress
	}

	if offer.HTLCStep == models.HTLCStepFunded {
		if order == nil {
			return ""
		}
		if offer.Type == models.TradeTypeBuy {
			return order.BtcAddress
		}
		return order.EqbAddress
	}

	return offer.EqbAddress
}

// DeriveNotification строит уведомление после изменения предложения.
// Возвращает nil если шаг и статус не изменились или получатель не определён.
func DeriveNotification(prior, next *models.Offer, order *models.Order, cancelTx *models.Transaction) *models.Notification {
	if !Changed(prior, next) {
		return nil
	}

	address := Recipient(next, order, cancelTx)
	if address == "" {
		return nil
	}

	action := ActionFor(next)
	return &models.Notification{
		Address: address,
		Type:    models.NotificationTypeOffer,
		Action:  action,
		Fields:  offerFields(next, action),
	}
}

// CreatedNotification - уведомление держателю ордера о новом предложении
func CreatedNotification(offer *models.Offer, order *models.Order) *models.Notification {
	if order == nil {
		return nil
	}

	address := order.EqbAddress
	if offer.Type == models.TradeTypeBuy {
		address = order.BtcAddress
	}
	if address == "" {
		return nil
	}

	fields := offerFields(offer, models.ActionOfferReceived)
	fields["price"] = offer.Price.String()

	return &models.Notification{
		Address: address,
		Type:    models.NotificationTypeOffer,
		Action:  models.ActionOfferReceived,
		Fields:  fields,
	}
}

func offerFields(offer *models.Offer, action string) map[string]interface{} {
	return map[string]interface{}{
		"offerId":      offer.ID,
		"orderId":      offer.OrderID,
		"type":         offer.Type,
		"status":       offer.Status,
		"action":       action,
		"htlcStep":     offer.HTLCStep,
		"quantity":     offer.Quantity,
		"unit":         UnitShares,
		"companyName":  offer.CompanyName,
		"issuanceName": offer.IssuanceName,
	}
}
