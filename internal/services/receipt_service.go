package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"

	"github.com/meridianbank/core/internal/models"
)

const receiptTTL = 24 * time.Hour

// ReceiptService issues QR-coded transaction receipts that branch staff can
// scan to verify a posting without database access.
type ReceiptService struct {
	db    *sql.DB
	redis *redis.Client
}

func NewReceiptService(db *sql.DB, redis *redis.Client) *ReceiptService {
	return &ReceiptService{
		db:    db,
		redis: redis,
	}
}

// GenerateReceipt builds a signed receipt token for a posted transaction and
// returns the token plus a base64 PNG of its QR code.
func (s *ReceiptService) GenerateReceipt(ctx context.Context, txID string) (string, string, error) {
	if s.redis == nil {
		return "", "", fmt.Errorf("receipts unavailable")
	}

	var tx models.Transaction
	err := s.db.QueryRow(`
		SELECT transaction_id, account_id, type, amount, currency, status, created_at
		FROM transactions
		WHERE transaction_id = $1`, txID).Scan(
		&tx.TransactionID, &tx.AccountID, &tx.Type, &tx.Amount, &tx.Currency, &tx.Status, &tx.CreatedAt)
	if err == sql.ErrNoRows {
		return "", "", fmt.Errorf("transaction not found")
	}
	if err != nil {
		return "", "", err
	}

	receiptData := map[string]any{
		"transactionId": tx.TransactionID,
		"accountId":     tx.AccountID,
		"type":          tx.Type,
		"amount":        tx.Amount,
		"currency":      tx.Currency,
		"status":        tx.Status,
		"postedAt":      tx.CreatedAt.Unix(),
		"nonce":         s.generateNonce(),
	}

	jsonData, err := json.Marshal(receiptData)
	if err != nil {
		return "", "", err
	}

	token := base64.URLEncoding.EncodeToString(jsonData)

	key := fmt.Sprintf("receipt:%s", token)
	if err := s.redis.Set(ctx, key, jsonData, receiptTTL).Err(); err != nil {
		return "", "", err
	}

	qr, err := qrcode.New(token, qrcode.Medium)
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", "", err
	}

	qrImage := base64.StdEncoding.EncodeToString(buf.Bytes())

	return token, qrImage, nil
}

// VerifyReceipt resolves a scanned receipt token. Receipts stay valid for
// repeated scans until the token expires.
func (s *ReceiptService) VerifyReceipt(ctx context.Context, token string) (map[string]any, error) {
	if s.redis == nil {
		return nil, fmt.Errorf("receipts unavailable")
	}

	key := fmt.Sprintf("receipt:%s", token)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("invalid or expired receipt")
	}
	if err != nil {
		return nil, err
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *ReceiptService) generateNonce() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
