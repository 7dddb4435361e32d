package service

import (
	"context"
	"errors"
	"fmt"

	"settlement/internal/metrics"
	"settlement/internal/models"
	"settlement/internal/repository"
	"settlement/internal/settlement"
	"settlement/pkg/utils"
)

// OfferService - жизненный цикл предложений (HTLC расчёт).
//
// Внешние запросы (клиент) проходят полный набор правил settlement,
// внутренние (другие сервисы) - только слияние полей и проверку шага.
type OfferService struct {
	offers       OfferRepositoryInterface
	orders       OrderRepositoryInterface
	transactions TransactionStore
	validator    *QuantityValidator
	notifier     NotificationSender
	log          *utils.Logger
}

// NewOfferService создает сервис предложений
func NewOfferService(
	offers OfferRepositoryInterface,
	orders OrderRepositoryInterface,
	transactions TransactionStore,
	validator *QuantityValidator,
	notifier NotificationSender,
) *OfferService {
	return &OfferService{
		offers:       offers,
		orders:       orders,
		transactions: transactions,
		validator:    validator,
		notifier:     notifier,
		log:          utils.L().WithComponent("offers"),
	}
}

// Create создаёт предложение.
//
// Для внешнего запроса: статус OPEN, шаг 1, проверка количества и
// уведомление держателю ордера. Если передан htlcTxId1, записанная
// транзакция привязывается к предложению.
func (s *OfferService) Create(ctx context.Context, offer *models.Offer, external bool) (*models.Offer, error) {
	if external {
		settlement.PrepareCreate(offer)
		if err := utils.ValidateTradeType(offer.Type); err != nil {
			return nil, &BadRequestError{Message: err.Error()}
		}
		if err := utils.ValidateQuantity(offer.Quantity); err != nil {
			return nil, &BadRequestError{Message: err.Error()}
		}
		if err := s.validator.ValidateOffer(ctx, offer); err != nil {
			var badReq *BadRequestError
			if errors.As(err, &badReq) {
				metrics.RecordRejection("quantity")
			}
			return nil, err
		}
	} else {
		offer.Type = utils.NormalizeTradeType(offer.Type)
		if offer.HTLCStep == 0 {
			offer.HTLCStep = models.HTLCStepCreated
		}
		if offer.Status == "" {
			offer.Status = settlement.StatusForStep(offer.HTLCStep)
		}
	}

	if err := s.offers.Create(ctx, offer); err != nil {
		return nil, err
	}

	if offer.HTLCTxID1 != "" {
		if _, err := s.transactions.AssignOffer(ctx, offer.HTLCTxID1, offer.ID); err != nil {
			s.log.Warn("failed to link htlc transaction to offer",
				utils.OfferID(offer.ID), utils.TxID(offer.HTLCTxID1), utils.Err(err))
		}
	}

	if external {
		order := s.lookupOrder(ctx, offer.OrderID)
		s.notify(ctx, settlement.CreatedNotification(offer, order))
	}

	return offer, nil
}

// Get возвращает предложение по ID
func (s *OfferService) Get(ctx context.Context, id string) (*models.Offer, error) {
	return s.offers.GetByID(ctx, id)
}

// Find возвращает предложения по фильтру
func (s *OfferService) Find(ctx context.Context, filter repository.OfferFilter) ([]*models.Offer, error) {
	return s.offers.Find(ctx, filter)
}

// Patch применяет частичное изменение (PATCH)
func (s *OfferService) Patch(ctx context.Context, id string, patch settlement.OfferPatch, external bool) (*models.Offer, error) {
	prior, err := s.offers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, prior, patch, external)
}

// Update заменяет документ целиком (PUT).
//
// Если клиент передал version, она должна совпадать с текущей.
func (s *OfferService) Update(ctx context.Context, id string, doc *models.Offer, external bool) (*models.Offer, error) {
	prior, err := s.offers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Version != 0 && doc.Version != prior.Version {
		metrics.RecordRejection("version_conflict")
		return nil, repository.ErrOfferVersionConflict
	}
	return s.apply(ctx, prior, settlement.ReplacementPatch(doc), external)
}

func (s *OfferService) apply(ctx context.Context, prior *models.Offer, patch settlement.OfferPatch, external bool) (*models.Offer, error) {
	next, err := settlement.Apply(*prior, patch, external)
	if err != nil {
		var vErr *settlement.ValidationError
		if errors.As(err, &vErr) {
			reason := "validation"
			if vErr.Message == settlement.ErrTerminalOffer {
				reason = "terminal"
			}
			metrics.RecordRejection(reason)
		}
		return nil, err
	}

	if err := s.offers.Update(ctx, &next); err != nil {
		if errors.Is(err, repository.ErrOfferVersionConflict) {
			metrics.RecordRejection("version_conflict")
		}
		return nil, err
	}

	if settlement.Changed(prior, &next) {
		metrics.RecordTransition(next.Status, external)
		s.log.Info("offer transition",
			utils.OfferID(next.ID),
			utils.Step(next.HTLCStep),
			utils.Status(next.Status),
			utils.Bool("external", external),
		)
		s.notifyTransition(ctx, prior, &next)
	}

	return &next, nil
}

// notifyTransition уведомляет сторону, которая не инициировала переход
func (s *OfferService) notifyTransition(ctx context.Context, prior, next *models.Offer) {
	order := s.lookupOrder(ctx, next.OrderID)

	var cancelTx *models.Transaction
	if next.Status == models.OfferStatusCancelled {
		tx, err := s.findCancellationTx(ctx, next)
		if err != nil {
			s.log.Warn("cancellation tx lookup failed", utils.OfferID(next.ID), utils.Err(err))
			return
		}
		cancelTx = tx
	}

	s.notify(ctx, settlement.DeriveNotification(prior, next, order, cancelTx))
}

func (s *OfferService) findCancellationTx(ctx context.Context, offer *models.Offer) (*models.Transaction, error) {
	lookup, ok := settlement.CancellationTx(offer)
	if !ok {
		return nil, nil
	}

	txs, err := s.transactions.Find(ctx, repository.TransactionQuery{
		TxID:      lookup.TxID,
		Addresses: lookup.Addresses,
		Limit:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("find htlc tx %s: %w", lookup.TxID, err)
	}
	if len(txs) == 0 {
		return nil, nil
	}
	return txs[0], nil
}

func (s *OfferService) lookupOrder(ctx context.Context, orderID string) *models.Order {
	if orderID == "" {
		return nil
	}
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if !errors.Is(err, repository.ErrOrderNotFound) {
			s.log.Warn("order lookup failed", utils.OrderID(orderID), utils.Err(err))
		}
		return nil
	}
	return order
}

func (s *OfferService) notify(ctx context.Context, n *models.Notification) {
	if n == nil || s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, n); err != nil {
		s.log.Error("failed to send notification",
			utils.Address(n.Address), utils.String("action", n.Action), utils.Err(err))
	}
}
