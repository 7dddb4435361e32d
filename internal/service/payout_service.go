package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"settlement/internal/ledger"
	"settlement/internal/metrics"
	"settlement/internal/models"
	"settlement/internal/repository"
	"settlement/pkg/crypto"
	"settlement/pkg/utils"
)

// ErrInsufficientFunds - на адресе источника недостаточно средств
var ErrInsufficientFunds = errors.New("insufficient funds")

// BroadcastError - узел не принял транзакцию выплаты
type BroadcastError struct {
	Err error
}

func (e *BroadcastError) Error() string {
	return "broadcast failed: " + e.Err.Error()
}

func (e *BroadcastError) Unwrap() error {
	return e.Err
}

// Outcome - итог обработки записи выплаты
type Outcome string

const (
	OutcomePaid      Outcome = "paid"      // выплачено, запись удалена
	OutcomeManual    Outcome = "manual"    // запись переведена на ручную выплату
	OutcomeContended Outcome = "contended" // запись не найдена или захвачена другим
)

// PayoutResult - результат Disburse
type PayoutResult struct {
	Outcome Outcome
	TxID    string
	Amount  int64
	Err     error // причина ручной выплаты
}

// PayoutConfig - параметры выплат
type PayoutConfig struct {
	SourceAddress    string
	Network          string
	Fee              int64
	Threshold        int64
	BroadcastTimeout time.Duration
}

// PayoutService - выплаты ICO инвесторам.
//
// Запись захватывается атомарным UPDATE ... WHERE locked = 0 со случайным
// токеном, поэтому из параллельных вызовов (в том числе с разных экземпляров)
// транзакцию отправит только один. Итог: запись удалена после успешной
// отправки либо переведена на ручную выплату. Захват снимается всегда.
type PayoutService struct {
	investors    ICOInvestorRepositoryInterface
	ledger       LedgerClient
	builder      TransactionBuilder
	transactions TransactionStore
	reserver     ledger.Reserver
	cfg          PayoutConfig
	newToken     func() (int64, error)

	wg  sync.WaitGroup
	log *utils.Logger
}

// NewPayoutService создает сервис выплат
func NewPayoutService(
	investors ICOInvestorRepositoryInterface,
	ledgerClient LedgerClient,
	builder TransactionBuilder,
	transactions TransactionStore,
	reserver ledger.Reserver,
	cfg PayoutConfig,
) *PayoutService {
	if cfg.BroadcastTimeout <= 0 {
		cfg.BroadcastTimeout = 30 * time.Second
	}
	return &PayoutService{
		investors:    investors,
		ledger:       ledgerClient,
		builder:      builder,
		transactions: transactions,
		reserver:     reserver,
		cfg:          cfg,
		newToken:     crypto.ClaimToken,
		log:          utils.L().WithComponent("payouts"),
	}
}

// Trigger запускает Disburse в фоне. Ошибки только логируются:
// ответ на импорт адреса от выплаты не зависит.
func (s *PayoutService) Trigger(email, address string) {
	s.wg.Add(1)
	metrics.PayoutsInFlight.Inc()

	go func() {
		defer s.wg.Done()
		defer metrics.PayoutsInFlight.Dec()

		res, err := s.Disburse(context.Background(), email, address)
		if err != nil {
			s.log.Error("payout failed", utils.Email(email), utils.Address(address), utils.Err(err))
			return
		}
		s.log.Debug("payout processed", utils.Email(email), utils.Outcome(string(res.Outcome)))
	}()
}

// Wait дожидается завершения фоновых выплат (graceful shutdown)
func (s *PayoutService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disburse обрабатывает запись выплаты для email на адрес address.
//
// Возвращает error только для ошибок захвата/записи в БД. Ошибки отправки
// переводят запись на ручную выплату и возвращаются в PayoutResult.Err.
func (s *PayoutService) Disburse(ctx context.Context, email, address string) (PayoutResult, error) {
	log := s.log.WithEmail(email)

	token, err := s.newToken()
	if err != nil {
		return PayoutResult{}, fmt.Errorf("claim token: %w", err)
	}

	inv, err := s.investors.Claim(ctx, email, token)
	if err != nil {
		if errors.Is(err, repository.ErrInvestorNotFound) {
			metrics.RecordPayout(string(OutcomeContended), 0)
			return PayoutResult{Outcome: OutcomeContended}, nil
		}
		return PayoutResult{}, fmt.Errorf("claim payout: %w", err)
	}
	if inv.Locked != token {
		metrics.RecordPayout(string(OutcomeContended), 0)
		return PayoutResult{Outcome: OutcomeContended}, nil
	}

	if inv.BalanceOwed == nil || *inv.BalanceOwed >= s.cfg.Threshold {
		log.Info("payout requires manual review", utils.Address(address))
		return s.manual(ctx, email, address, nil)
	}
	owed := *inv.BalanceOwed

	txID, err := s.pay(ctx, address, owed)
	if err != nil {
		log.Warn("payout not sent", utils.Address(address), utils.Amount(owed), utils.Err(err))
		return s.manual(ctx, email, address, err)
	}

	if err := s.investors.DeleteByEmail(ctx, email); err != nil {
		// Средства отправлены: запись нельзя оставлять доступной для повторного захвата
		log.Error("payout sent but record not deleted", utils.TxID(txID), utils.Err(err))
		if mErr := s.investors.MarkManual(ctx, email, address, "paid in tx "+txID+", record not deleted"); mErr != nil {
			return PayoutResult{Outcome: OutcomePaid, TxID: txID, Amount: owed}, fmt.Errorf("release paid record: %w", mErr)
		}
	}

	metrics.RecordPayout(string(OutcomePaid), owed)
	log.Info("payout sent", utils.Address(address), utils.Amount(owed), utils.TxID(txID))
	return PayoutResult{Outcome: OutcomePaid, TxID: txID, Amount: owed}, nil
}

func (s *PayoutService) manual(ctx context.Context, email, address string, cause error) (PayoutResult, error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	metrics.RecordPayout(string(OutcomeManual), 0)

	if err := s.investors.MarkManual(ctx, email, address, msg); err != nil {
		return PayoutResult{Outcome: OutcomeManual, Err: cause}, fmt.Errorf("mark manual: %w", err)
	}
	return PayoutResult{Outcome: OutcomeManual, Err: cause}, nil
}

// pay собирает, подписывает и отправляет транзакцию на owed базовых единиц
func (s *PayoutService) pay(ctx context.Context, destination string, owed int64) (txID string, err error) {
	unspent, err := s.ledger.ListUnspent(ctx, s.cfg.SourceAddress)
	if err != nil {
		return "", fmt.Errorf("list unspent: %w", err)
	}
	need := owed + s.cfg.Fee
	if unspent.Total < need {
		return "", fmt.Errorf("%w: %s has %d, need %d + fee %d", ErrInsufficientFunds, s.cfg.SourceAddress, unspent.Total, owed, s.cfg.Fee)
	}

	var (
		inputs   []ledger.Input
		reserved []string
		acc      int64
	)
	defer func() {
		if err != nil && len(reserved) > 0 {
			if rErr := s.reserver.Release(context.Background(), reserved...); rErr != nil {
				s.log.Warn("failed to release utxo reservations", utils.Err(rErr))
			}
		}
	}()

	for _, out := range unspent.Outputs {
		key := ledger.Outpoint(out.TxID, out.Vout)
		ok, rErr := s.reserver.Reserve(ctx, key)
		if rErr != nil {
			return "", rErr
		}
		if !ok {
			continue
		}
		reserved = append(reserved, key)
		inputs = append(inputs, ledger.Input{TxID: out.TxID, Vout: out.Vout, Amount: out.Amount})
		acc += out.Amount
		if acc >= need {
			break
		}
	}

	change := acc - need
	if change < 0 {
		return "", fmt.Errorf("%w: selected %d, need %d + fee %d", ErrInsufficientFunds, acc, owed, s.cfg.Fee)
	}

	outputs := []ledger.Output{{Address: destination, Amount: owed}}
	if change > 0 {
		outputs = append(outputs, ledger.Output{Address: s.cfg.SourceAddress, Amount: change})
	}

	raw, err := s.builder.Build(inputs, outputs, s.cfg.Network)
	if err != nil {
		return "", fmt.Errorf("build tx: %w", err)
	}
	rawHex := hex.EncodeToString(raw)

	bctx, cancel := context.WithTimeout(ctx, s.cfg.BroadcastTimeout)
	defer cancel()

	txID, err = s.ledger.Broadcast(bctx, rawHex)
	if err != nil {
		return "", &BroadcastError{Err: err}
	}

	record := &models.Transaction{
		TxID:         txID,
		FromAddress:  s.cfg.SourceAddress,
		ToAddress:    destination,
		AddressTxID:  inputs[0].TxID,
		AddressVout:  int(inputs[0].Vout),
		Type:         models.TxTypeTransfer,
		CurrencyType: models.CurrencyEQB,
		Amount:       owed,
		Fee:          s.cfg.Fee,
		Hex:          rawHex,
		Description:  "ICO payout",
	}
	if rErr := s.transactions.Create(ctx, record); rErr != nil {
		s.log.Error("payout broadcast but not recorded", utils.TxID(txID), utils.Err(rErr))
	}

	return txID, nil
}
