package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"settlement/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
)

var transactionRowColumns = []string{
	"id", "tx_id", "from_address", "to_address", "address_tx_id", "address_vout", "type", "currency_type",
	"amount", "fee", "hex", "issuance_id", "offer_id", "description", "created_at",
}

func TestTransactionRepositoryCreate(t *testing.T) {
	tests := []struct {
		name      string
		mockSetup func(mock sqlmock.Sqlmock)
		wantErr   error
	}{
		{
			name: "success",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO transactions`).
					WithArgs(anyArgs(15)...).
					WillReturnResult(sqlmock.NewResult(1, 1))
			},
		},
		{
			name: "duplicate from address and txid",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO transactions`).
					WillReturnError(&pq.Error{Code: "23505"})
			},
			wantErr: ErrTransactionExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			tx := &models.Transaction{TxID: "abc", FromAddress: "a", ToAddress: "b", Type: models.TxTypeTransfer, CurrencyType: models.CurrencyEQB, Amount: 10}
			err = NewTransactionRepository(db).Create(context.Background(), tx)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if tx.ID == "" {
					t.Error("expected generated ID")
				}
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestTransactionRepositoryFind(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows(transactionRowColumns).AddRow(
		"id-1", "tx-4", "htlc-addr", "eqb-offer", "", 0, models.TxTypeTrade, models.CurrencyEQB,
		int64(10), int64(0), "", "iss-1", "offer-1", "", time.Now(),
	)
	mock.ExpectQuery(`SELECT .+ FROM transactions WHERE tx_id = \$1 AND \(from_address = ANY\(\$2\) OR to_address = ANY\(\$2\)\)`).
		WithArgs("tx-4", pq.Array([]string{"eqb-offer", "btc-offer"})).
		WillReturnRows(rows)

	txs, err := NewTransactionRepository(db).Find(context.Background(), TransactionQuery{
		TxID:      "tx-4",
		Addresses: []string{"eqb-offer", "btc-offer"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(txs) != 1 || txs[0].ToAddress != "eqb-offer" {
		t.Errorf("unexpected result: %+v", txs)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestTransactionRepositoryFind_ByAddress(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`WHERE \(from_address = \$1 OR to_address = \$1\) ORDER BY created_at DESC LIMIT \$2`).
		WithArgs("addr-1", 50).
		WillReturnRows(sqlmock.NewRows(transactionRowColumns))

	txs, err := NewTransactionRepository(db).Find(context.Background(), TransactionQuery{Address: "addr-1", Limit: 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(txs) != 0 {
		t.Errorf("expected no transactions, got %d", len(txs))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestTransactionRepositoryAssignOffer(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`UPDATE transactions SET offer_id = \$1 WHERE tx_id = \$2`).
		WithArgs("offer-1", "tx-1").
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := NewTransactionRepository(db).AssignOffer(context.Background(), "tx-1", "offer-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("rows = %d, want 2", n)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
