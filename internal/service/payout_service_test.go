package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"settlement/internal/ledger"
	"settlement/internal/models"
)

const (
	payoutSource = "mipcBbFg9gMiCh81Kj8tqqdgoZub1ZJRfn"
	payoutDest   = "mkBg6GwqZ4XdYQ72vTEqiwfgb6T6WRSDm5"
	payoutEmail  = "investor@example.com"
)

type payoutFixture struct {
	svc       *PayoutService
	investors *MockICOInvestorRepository
	ledger    *MockLedger
	builder   *MockBuilder
	txs       *MockTransactionRepository
	reserver  *ledger.MemoryReserver
}

func balance(v int64) *int64 { return &v }

func newPayoutFixture(owed *int64, utxos ...ledger.UTXO) *payoutFixture {
	investors := NewMockICOInvestorRepository()
	investors.investors[payoutEmail] = &models.ICOInvestor{
		ID:          "inv-1",
		Email:       payoutEmail,
		BalanceOwed: owed,
		Status:      models.PayoutStatusOwed,
	}

	unspent := &ledger.Unspent{Address: payoutSource, Outputs: utxos}
	for _, u := range utxos {
		unspent.Total += u.Amount
	}

	l := &MockLedger{unspent: unspent, broadcastTx: "payout-tx"}
	b := &MockBuilder{}
	txs := NewMockTransactionRepository()
	reserver := ledger.NewMemoryReserver(time.Minute)

	svc := NewPayoutService(investors, l, b, txs, reserver, PayoutConfig{
		SourceAddress: payoutSource,
		Network:       "testnet",
		Fee:           3000,
		Threshold:     100 * 100000000,
	})

	return &payoutFixture{svc: svc, investors: investors, ledger: l, builder: b, txs: txs, reserver: reserver}
}

func TestPayoutService_Success(t *testing.T) {
	f := newPayoutFixture(balance(10000),
		ledger.UTXO{TxID: "u1", Vout: 0, Amount: 6000},
		ledger.UTXO{TxID: "u2", Vout: 2, Amount: 8000},
		ledger.UTXO{TxID: "u3", Vout: 1, Amount: 50000},
	)

	res, err := f.svc.Disburse(context.Background(), payoutEmail, payoutDest)
	if err != nil {
		t.Fatalf("Disburse() error: %v", err)
	}
	if res.Outcome != OutcomePaid || res.TxID != "payout-tx" || res.Amount != 10000 {
		t.Fatalf("result = %+v", res)
	}

	if f.investors.get(payoutEmail) != nil {
		t.Error("record must be deleted after successful payout")
	}

	// 6000 + 8000 > 10000 → два входа, сдача 14000 - 10000 - 3000
	if len(f.builder.inputs) != 2 || f.builder.inputs[1].Vout != 2 {
		t.Errorf("inputs = %+v", f.builder.inputs)
	}
	wantOutputs := []ledger.Output{{Address: payoutDest, Amount: 10000}, {Address: payoutSource, Amount: 1000}}
	if len(f.builder.outputs) != 2 || f.builder.outputs[0] != wantOutputs[0] || f.builder.outputs[1] != wantOutputs[1] {
		t.Errorf("outputs = %+v, want %+v", f.builder.outputs, wantOutputs)
	}
	if f.builder.network != "testnet" {
		t.Errorf("network = %s", f.builder.network)
	}

	if f.txs.count() != 1 {
		t.Fatalf("recorded txs = %d, want 1", f.txs.count())
	}
	rec := f.txs.txs[0]
	if rec.Type != models.TxTypeTransfer || rec.CurrencyType != models.CurrencyEQB || rec.Amount != 10000 || rec.Fee != 3000 {
		t.Errorf("recorded tx = %+v", rec)
	}
	if rec.TxID != "payout-tx" || rec.FromAddress != payoutSource || rec.ToAddress != payoutDest || rec.Hex != "02000000" {
		t.Errorf("recorded tx = %+v", rec)
	}
}

func TestPayoutService_ExactChangeHasSingleOutput(t *testing.T) {
	f := newPayoutFixture(balance(10000), ledger.UTXO{TxID: "u1", Amount: 13000})

	if _, err := f.svc.Disburse(context.Background(), payoutEmail, payoutDest); err != nil {
		t.Fatalf("Disburse() error: %v", err)
	}
	if len(f.builder.outputs) != 1 {
		t.Errorf("outputs = %+v, want only destination", f.builder.outputs)
	}
}

func TestPayoutService_SelectionCoversFee(t *testing.T) {
	// первый выход покрывает сумму, но не комиссию
	f := newPayoutFixture(balance(5000),
		ledger.UTXO{TxID: "u1", Amount: 5001},
		ledger.UTXO{TxID: "u2", Amount: 10000},
	)

	res, err := f.svc.Disburse(context.Background(), payoutEmail, payoutDest)
	if err != nil {
		t.Fatalf("Disburse() error: %v", err)
	}
	if res.Outcome != OutcomePaid {
		t.Fatalf("outcome = %s (err=%v), want paid", res.Outcome, res.Err)
	}
	if len(f.builder.inputs) != 2 {
		t.Errorf("inputs = %+v, want 2", f.builder.inputs)
	}
	wantChange := ledger.Output{Address: payoutSource, Amount: 15001 - 5000 - 3000}
	if len(f.builder.outputs) != 2 || f.builder.outputs[1] != wantChange {
		t.Errorf("outputs = %+v, want change %+v", f.builder.outputs, wantChange)
	}
	if got := atomic.LoadInt32(&f.ledger.broadcasts); got != 1 {
		t.Errorf("broadcasts = %d, want 1", got)
	}
}

func TestPayoutService_ManualPaths(t *testing.T) {
	tests := []struct {
		name          string
		owed          *int64
		utxos         []ledger.UTXO
		broadcastErr  error
		listErr       error
		wantErr       error
		wantBroadcast int32
	}{
		{
			name: "null balance",
			owed: nil,
		},
		{
			name:  "balance at threshold",
			owed:  balance(100 * 100000000),
			utxos: []ledger.UTXO{{TxID: "u1", Amount: 200 * 100000000}},
		},
		{
			name:    "insufficient total",
			owed:    balance(10000),
			utxos:   []ledger.UTXO{{TxID: "u1", Amount: 9000}},
			wantErr: ErrInsufficientFunds,
		},
		{
			name:    "fee not covered",
			owed:    balance(10000),
			utxos:   []ledger.UTXO{{TxID: "u1", Amount: 11000}},
			wantErr: ErrInsufficientFunds,
		},
		{
			name:          "broadcast rejected",
			owed:          balance(10000),
			utxos:         []ledger.UTXO{{TxID: "u1", Amount: 20000}},
			broadcastErr:  errors.New("rpc error -26"),
			wantBroadcast: 1,
		},
		{
			name:    "ledger unavailable",
			owed:    balance(10000),
			listErr: errors.New("connection refused"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPayoutFixture(tt.owed, tt.utxos...)
			f.ledger.broadcastErr = tt.broadcastErr
			f.ledger.listErr = tt.listErr

			res, err := f.svc.Disburse(context.Background(), payoutEmail, payoutDest)
			if err != nil {
				t.Fatalf("Disburse() error: %v", err)
			}
			if res.Outcome != OutcomeManual {
				t.Fatalf("outcome = %s, want manual", res.Outcome)
			}
			if tt.wantErr != nil && !errors.Is(res.Err, tt.wantErr) {
				t.Errorf("result error = %v, want %v", res.Err, tt.wantErr)
			}
			if tt.broadcastErr != nil {
				var bErr *BroadcastError
				if !errors.As(res.Err, &bErr) {
					t.Errorf("expected BroadcastError, got %v", res.Err)
				}
			}

			inv := f.investors.get(payoutEmail)
			if inv == nil {
				t.Fatal("record must be kept for manual payout")
			}
			if !inv.ManualPaymentRequired || inv.Status != models.PayoutStatusManualRequired {
				t.Errorf("record = %+v, want manual", inv)
			}
			if inv.Locked != models.PayoutUnlocked {
				t.Errorf("locked = %d, want 0", inv.Locked)
			}
			if inv.Address != payoutDest {
				t.Errorf("address = %s, want %s", inv.Address, payoutDest)
			}
			if res.Err != nil && inv.PaymentError == "" {
				t.Error("payment error must be stored")
			}
			if got := atomic.LoadInt32(&f.ledger.broadcasts); got != tt.wantBroadcast {
				t.Errorf("broadcasts = %d, want %d", got, tt.wantBroadcast)
			}
			if f.txs.count() != 0 {
				t.Error("no transaction must be recorded")
			}
		})
	}
}

func TestPayoutService_FailedPayoutReleasesReservations(t *testing.T) {
	f := newPayoutFixture(balance(10000), ledger.UTXO{TxID: "u1", Vout: 0, Amount: 20000})
	f.ledger.broadcastErr = errors.New("rejected")

	if _, err := f.svc.Disburse(context.Background(), payoutEmail, payoutDest); err != nil {
		t.Fatalf("Disburse() error: %v", err)
	}

	ok, _ := f.reserver.Reserve(context.Background(), ledger.Outpoint("u1", 0))
	if !ok {
		t.Error("utxo must be released after failed payout")
	}
}

func TestPayoutService_SkipsReservedOutputs(t *testing.T) {
	f := newPayoutFixture(balance(10000),
		ledger.UTXO{TxID: "u1", Amount: 20000},
		ledger.UTXO{TxID: "u2", Amount: 20000},
	)
	f.reserver.Reserve(context.Background(), ledger.Outpoint("u1", 0))

	if _, err := f.svc.Disburse(context.Background(), payoutEmail, payoutDest); err != nil {
		t.Fatalf("Disburse() error: %v", err)
	}
	if len(f.builder.inputs) != 1 || f.builder.inputs[0].TxID != "u2" {
		t.Errorf("inputs = %+v, want only u2", f.builder.inputs)
	}
}

func TestPayoutService_Contended(t *testing.T) {
	t.Run("no record", func(t *testing.T) {
		f := newPayoutFixture(balance(10000), ledger.UTXO{TxID: "u1", Amount: 20000})
		res, err := f.svc.Disburse(context.Background(), "other@example.com", payoutDest)
		if err != nil || res.Outcome != OutcomeContended {
			t.Errorf("got %+v, %v; want contended", res, err)
		}
	})

	t.Run("already locked", func(t *testing.T) {
		f := newPayoutFixture(balance(10000), ledger.UTXO{TxID: "u1", Amount: 20000})
		f.investors.investors[payoutEmail].Locked = 42

		res, err := f.svc.Disburse(context.Background(), payoutEmail, payoutDest)
		if err != nil || res.Outcome != OutcomeContended {
			t.Errorf("got %+v, %v; want contended", res, err)
		}
		if inv := f.investors.get(payoutEmail); inv.Locked != 42 {
			t.Errorf("foreign lock must not be touched, got %d", inv.Locked)
		}
	})

	t.Run("manual record not reclaimed", func(t *testing.T) {
		f := newPayoutFixture(nil)
		f.svc.Disburse(context.Background(), payoutEmail, payoutDest)

		res, err := f.svc.Disburse(context.Background(), payoutEmail, payoutDest)
		if err != nil || res.Outcome != OutcomeContended {
			t.Errorf("got %+v, %v; want contended", res, err)
		}
	})
}

func TestPayoutService_ConcurrentDisbursementsBroadcastOnce(t *testing.T) {
	f := newPayoutFixture(balance(10000), ledger.UTXO{TxID: "u1", Amount: 50000})
	f.ledger.delay = 5 * time.Millisecond

	const workers = 20
	var (
		wg        sync.WaitGroup
		paid      int32
		contended int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.Disburse(context.Background(), payoutEmail, payoutDest)
			if err != nil {
				t.Errorf("Disburse() error: %v", err)
				return
			}
			switch res.Outcome {
			case OutcomePaid:
				atomic.AddInt32(&paid, 1)
			case OutcomeContended:
				atomic.AddInt32(&contended, 1)
			}
		}()
	}
	wg.Wait()

	if paid != 1 || contended != workers-1 {
		t.Errorf("paid=%d contended=%d, want 1/%d", paid, contended, workers-1)
	}
	if got := atomic.LoadInt32(&f.ledger.broadcasts); got != 1 {
		t.Errorf("broadcasts = %d, want exactly 1", got)
	}
	if f.txs.count() != 1 {
		t.Errorf("recorded txs = %d, want 1", f.txs.count())
	}
}

func TestPayoutService_DeleteFailureMarksManual(t *testing.T) {
	f := newPayoutFixture(balance(10000), ledger.UTXO{TxID: "u1", Amount: 20000})
	f.investors.deleteErr = errors.New("db down")

	res, err := f.svc.Disburse(context.Background(), payoutEmail, payoutDest)
	if err != nil {
		t.Fatalf("Disburse() error: %v", err)
	}
	if res.Outcome != OutcomePaid {
		t.Errorf("outcome = %s, want paid", res.Outcome)
	}
	inv := f.investors.get(payoutEmail)
	if inv == nil || !inv.ManualPaymentRequired || inv.Locked != 0 {
		t.Errorf("record = %+v, want released manual record", inv)
	}
}

func TestPayoutService_TriggerAndWait(t *testing.T) {
	f := newPayoutFixture(balance(10000), ledger.UTXO{TxID: "u1", Amount: 20000})

	f.svc.Trigger(payoutEmail, payoutDest)
	f.svc.Trigger(payoutEmail, payoutDest)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := f.svc.Wait(ctx); err != nil {
		t.Fatalf("Wait() error: %v", err)
	}

	if got := atomic.LoadInt32(&f.ledger.broadcasts); got != 1 {
		t.Errorf("broadcasts = %d, want 1", got)
	}
	if f.investors.get(payoutEmail) != nil {
		t.Error("record must be deleted")
	}
}

func TestPayoutService_TokenSource(t *testing.T) {
	f := newPayoutFixture(balance(10000), ledger.UTXO{TxID: "u1", Amount: 20000})
	var seen int64
	f.svc.newToken = func() (int64, error) {
		seen = 77
		return 77, nil
	}

	if _, err := f.svc.Disburse(context.Background(), payoutEmail, payoutDest); err != nil {
		t.Fatalf("Disburse() error: %v", err)
	}
	if seen != 77 {
		t.Error("custom token generator not used")
	}

	f.svc.newToken = func() (int64, error) { return 0, errors.New("entropy") }
	if _, err := f.svc.Disburse(context.Background(), payoutEmail, payoutDest); err == nil {
		t.Error("expected token generation error")
	}
}
