package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/meridianbank/core/internal/audit"
	"github.com/meridianbank/core/internal/models"
	"github.com/meridianbank/core/internal/services"
)

const interestDaysPerYear = 365

// Scheduler runs the batch side of the bank: nightly interest accrual,
// credit score refresh and settlement queue drains.
type Scheduler struct {
	cron       *cron.Cron
	db         *sql.DB
	ledger     *services.LedgerService
	credit     *services.CreditService
	settlement *services.SettlementService
	audit      *audit.Logger
}

func NewScheduler(db *sql.DB, credit *services.CreditService, settlement *services.SettlementService) *Scheduler {
	return &Scheduler{
		cron:       cron.New(),
		db:         db,
		ledger:     services.NewLedgerService(db),
		credit:     credit,
		settlement: settlement,
		audit:      audit.NewLogger(db),
	}
}

// Start registers the jobs and kicks off the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 1 * * *", func() {
		posted, err := s.AccrueInterest(context.Background())
		if err != nil {
			logrus.Errorf("[JOBS] Interest accrual failed after %d postings: %v", posted, err)
			return
		}
		logrus.Infof("[JOBS] Interest accrued on %d accounts", posted)
	}); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc("30 2 * * *", func() {
		refreshed, err := s.credit.RefreshAllScores(context.Background())
		if err != nil {
			logrus.Errorf("[JOBS] Credit score refresh failed after %d customers: %v", refreshed, err)
			return
		}
		logrus.Infof("[JOBS] Credit scores refreshed for %d customers", refreshed)
	}); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc("*/5 * * * *", func() {
		exported, err := s.settlement.ProcessQueue(context.Background())
		if err != nil {
			logrus.Errorf("[JOBS] Settlement drain failed after %d exports: %v", exported, err)
			return
		}
		if exported > 0 {
			logrus.Infof("[JOBS] Settlement queue drained, %d transfers exported", exported)
		}
	}); err != nil {
		return err
	}

	s.cron.Start()
	logrus.Info("[JOBS] Scheduler started")
	return nil
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logrus.Info("[JOBS] Scheduler stopped")
}

// AccrueInterest posts one day of interest to every active savings account
// with a positive balance and a configured rate. Returns the number of
// accounts credited.
func (s *Scheduler) AccrueInterest(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, balance, interest_rate_bp
		FROM accounts
		WHERE account_type = $1 AND status = $2 AND interest_rate_bp > 0 AND balance > 0`,
		models.AccountSavings, models.AccountActive)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	type target struct {
		id     string
		amount int64
	}
	var targets []target
	for rows.Next() {
		var id string
		var balance int64
		var rateBP int
		if err := rows.Scan(&id, &balance, &rateBP); err != nil {
			return 0, err
		}
		amount := dailyInterest(balance, rateBP)
		if amount > 0 {
			targets = append(targets, target{id: id, amount: amount})
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	posted := 0
	for _, t := range targets {
		if err := s.postInterest(t.id, t.amount); err != nil {
			return posted, fmt.Errorf("post interest to account %s: %w", t.id, err)
		}
		posted++
	}

	return posted, nil
}

func (s *Scheduler) postInterest(accountID string, amount int64) error {
	txID := "INT-" + uuid.New().String()

	dbTx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	newBalance, err := s.ledger.CreditTx(dbTx, accountID, txID, amount)
	if err != nil {
		return err
	}

	if err := s.audit.RecordTx(dbTx, audit.Event{
		EventType:     models.TxInterest,
		TransactionID: txID,
		AccountID:     accountID,
		Amount:        amount,
		Status:        models.TxCompleted,
		Actor:         "system",
	}); err != nil {
		return err
	}

	if _, err := dbTx.Exec(`
		INSERT INTO transactions
		(transaction_id, account_id, type, amount, resulting_balance, currency, narration, status, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, 'USD', 'Daily interest accrual', $6, $7, 'system')`,
		txID, accountID, models.TxInterest, amount, newBalance, models.TxCompleted, time.Now()); err != nil {
		return err
	}

	return dbTx.Commit()
}

// dailyInterest computes one day's worth of interest in cents from an
// annual rate in basis points, rounded down.
func dailyInterest(balance int64, rateBP int) int64 {
	return balance * int64(rateBP) / 10_000 / interestDaysPerYear
}
