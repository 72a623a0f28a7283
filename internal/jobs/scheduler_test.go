package jobs

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"

	"github.com/meridianbank/core/internal/services"
)

func TestDailyInterest(t *testing.T) {
	tests := []struct {
		name    string
		balance int64
		rateBP  int
		want    int64
	}{
		{"one million cents at 200bp", 1_000_000, 200, 54},
		{"one million cents at 350bp", 1_000_000, 350, 95},
		{"small balance rounds to zero", 100, 200, 0},
		{"zero rate", 1_000_000, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dailyInterest(tt.balance, tt.rateBP))
		})
	}
}

func TestScheduler_AccrueInterest(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	redisClient, _ := redismock.NewClientMock()
	credit := services.NewCreditService(db, redisClient)
	settlement := services.NewSettlementService(db, redisClient)
	scheduler := NewScheduler(db, credit, settlement)

	t.Run("credits eligible savings accounts", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, balance, interest_rate_bp FROM accounts").
			WithArgs("SAVINGS", "ACTIVE").
			WillReturnRows(sqlmock.NewRows([]string{"id", "balance", "interest_rate_bp"}).
				AddRow("account1", int64(1_000_000), 200).
				AddRow("account2", int64(100), 200))

		// account2 accrues less than a cent and is skipped
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, status, balance, available_balance, overdraft_allowed, overdraft_limit, version FROM accounts WHERE id = \\$1 FOR UPDATE").
			WithArgs("account1").
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "status", "balance", "available_balance", "overdraft_allowed", "overdraft_limit", "version",
			}).AddRow("account1", "ACTIVE", int64(1_000_000), int64(1_000_000), false, 0, 1))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs(sqlmock.AnyArg(), "account1", int64(54), "CREDIT", int64(1_000_054), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE accounts SET balance").
			WithArgs(int64(1_000_054), sqlmock.AnyArg(), "account1", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO audit_events").
			WithArgs("INTEREST", sqlmock.AnyArg(), "account1", int64(54), "COMPLETED", "system", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO transactions").
			WithArgs(sqlmock.AnyArg(), "account1", "INTEREST", int64(54), int64(1_000_054), "COMPLETED", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		posted, err := scheduler.AccrueInterest(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, 1, posted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no eligible accounts", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, balance, interest_rate_bp FROM accounts").
			WithArgs("SAVINGS", "ACTIVE").
			WillReturnRows(sqlmock.NewRows([]string{"id", "balance", "interest_rate_bp"}))

		posted, err := scheduler.AccrueInterest(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, 0, posted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("frozen account stops the run", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, balance, interest_rate_bp FROM accounts").
			WithArgs("SAVINGS", "ACTIVE").
			WillReturnRows(sqlmock.NewRows([]string{"id", "balance", "interest_rate_bp"}).
				AddRow("account1", int64(1_000_000), 200))

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, status, balance, available_balance, overdraft_allowed, overdraft_limit, version FROM accounts WHERE id = \\$1 FOR UPDATE").
			WithArgs("account1").
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "status", "balance", "available_balance", "overdraft_allowed", "overdraft_limit", "version",
			}).AddRow("account1", "FROZEN", int64(1_000_000), int64(1_000_000), false, 0, 1))
		mock.ExpectRollback()

		posted, err := scheduler.AccrueInterest(context.Background())
		assert.Error(t, err)
		assert.Equal(t, 0, posted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
