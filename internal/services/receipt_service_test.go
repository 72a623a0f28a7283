package services

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
)

func TestReceiptService_GenerateReceipt(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	redisClient, redisMock := redismock.NewClientMock()
	service := NewReceiptService(db, redisClient)

	receiptColumns := []string{"transaction_id", "account_id", "type", "amount", "currency", "status", "created_at"}

	t.Run("receipt for posted transaction", func(t *testing.T) {
		mock.ExpectQuery("SELECT transaction_id, account_id, type").
			WithArgs("DEP-1").
			WillReturnRows(sqlmock.NewRows(receiptColumns).
				AddRow("DEP-1", "account1", "DEPOSIT", 500, "USD", "COMPLETED", time.Now()))
		redisMock.Regexp().ExpectSet(`receipt:.*`, `.*`, receiptTTL).SetVal("OK")

		token, qrImage, err := service.GenerateReceipt(context.Background(), "DEP-1")
		assert.NoError(t, err)
		assert.NotEmpty(t, qrImage)

		payload, err := base64.URLEncoding.DecodeString(token)
		assert.NoError(t, err)

		var receipt map[string]any
		assert.NoError(t, json.Unmarshal(payload, &receipt))
		assert.Equal(t, "DEP-1", receipt["transactionId"])
		assert.Equal(t, float64(500), receipt["amount"])
		assert.Equal(t, "COMPLETED", receipt["status"])
		assert.NotEmpty(t, receipt["nonce"])

		assert.NoError(t, mock.ExpectationsWereMet())
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("redis down", func(t *testing.T) {
		degraded := NewReceiptService(db, nil)

		_, _, err := degraded.GenerateReceipt(context.Background(), "DEP-1")
		assert.EqualError(t, err, "receipts unavailable")
	})

	t.Run("missing transaction", func(t *testing.T) {
		mock.ExpectQuery("SELECT transaction_id, account_id, type").
			WithArgs("ghost").
			WillReturnError(sql.ErrNoRows)

		_, _, err := service.GenerateReceipt(context.Background(), "ghost")
		assert.EqualError(t, err, "transaction not found")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReceiptService_VerifyReceipt(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	redisClient, redisMock := redismock.NewClientMock()
	service := NewReceiptService(db, redisClient)

	t.Run("valid receipt resolves repeatedly", func(t *testing.T) {
		payload, _ := json.Marshal(map[string]any{
			"transactionId": "DEP-1",
			"amount":        500,
		})
		token := base64.URLEncoding.EncodeToString(payload)

		redisMock.ExpectGet("receipt:" + token).SetVal(string(payload))
		redisMock.ExpectGet("receipt:" + token).SetVal(string(payload))

		for i := 0; i < 2; i++ {
			receipt, err := service.VerifyReceipt(context.Background(), token)
			assert.NoError(t, err)
			assert.Equal(t, "DEP-1", receipt["transactionId"])
		}
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("expired receipt rejected", func(t *testing.T) {
		redisMock.ExpectGet("receipt:stale").RedisNil()

		_, err := service.VerifyReceipt(context.Background(), "stale")
		assert.EqualError(t, err, "invalid or expired receipt")
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("redis down", func(t *testing.T) {
		degraded := NewReceiptService(db, nil)

		_, err := degraded.VerifyReceipt(context.Background(), "any-token")
		assert.EqualError(t, err, "receipts unavailable")
	})
}
