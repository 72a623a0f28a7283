package notify

import (
	"database/sql"
	"fmt"
	"net/smtp"
	"time"

	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/meridianbank/core/internal/models"
)

// EmailNotifier sends transaction notifications over SMTP. It looks up the
// account holder's email from the customer record at send time.
type EmailNotifier struct {
	db *sql.DB
}

// NewEmailNotifier returns a notifier, or nil when SMTP is not configured
// so callers can skip notification entirely.
func NewEmailNotifier(db *sql.DB) *EmailNotifier {
	if viper.GetString("smtp.host") == "" {
		logrus.Info("[NOTIFY] SMTP not configured, email notifications disabled")
		return nil
	}
	return &EmailNotifier{db: db}
}

// TransactionCompleted emails the account holder about a posted transaction.
func (n *EmailNotifier) TransactionCompleted(tx *models.Transaction) {
	to, name, err := n.lookupRecipient(tx.AccountID)
	if err != nil {
		logrus.Warnf("[NOTIFY] No recipient for account %s: %v", tx.AccountID, err)
		return
	}

	e := email.NewEmail()
	e.From = viper.GetString("smtp.sender")
	e.To = []string{to}
	e.Subject = fmt.Sprintf("%s Notification", tx.Type)

	body := fmt.Sprintf("Dear %s,\n\n", name)
	body += fmt.Sprintf(
		"A %s of %.2f %s was posted to account %s.\n"+
			"Reference: %s\n"+
			"Transaction time: %s\n"+
			"Resulting balance: %.2f %s\n",
		tx.Type, float64(tx.Amount)/100, tx.Currency, tx.AccountID,
		tx.TransactionID, time.Now().Format("2006-01-02 15:04:05"),
		float64(tx.ResultingBalance)/100, tx.Currency,
	)
	body += "\nBest regards,\nMeridian Bank"
	e.Text = []byte(body)

	addr := fmt.Sprintf("%s:%s", viper.GetString("smtp.host"), viper.GetString("smtp.port"))
	auth := smtp.PlainAuth("", viper.GetString("smtp.username"), viper.GetString("smtp.password"), viper.GetString("smtp.host"))
	if err := e.Send(addr, auth); err != nil {
		logrus.Errorf("[NOTIFY] Failed to send %s notification to %s: %v", tx.Type, to, err)
		return
	}

	logrus.Infof("[NOTIFY] Email sent to %s: %s", to, e.Subject)
}

func (n *EmailNotifier) lookupRecipient(accountID string) (string, string, error) {
	var addr, firstName string
	err := n.db.QueryRow(`
		SELECT c.email, c.first_name
		FROM customers c
		JOIN accounts a ON a.customer_id = c.id
		WHERE a.id = $1`, accountID).Scan(&addr, &firstName)
	if err != nil {
		return "", "", err
	}
	return addr, firstName, nil
}
