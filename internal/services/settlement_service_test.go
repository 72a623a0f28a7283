package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"

	"github.com/meridianbank/core/internal/models"
)

func newSettlementRouter(service *SettlementService) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/settlement/{transactionId}/pacs008", service.ExportTransaction)
	r.Post("/settlement/{transactionId}/status", service.ReportStatus)
	r.Post("/settlement/run", service.RunQueue)
	return r
}

func completedTransfer() *models.Transaction {
	return &models.Transaction{
		TransactionID:  "TRF-1",
		AccountID:      "account1",
		CounterpartyID: "account2",
		Type:           models.TxTransfer,
		Amount:         150050,
		Currency:       "USD",
		Status:         models.TxCompleted,
		CreatedAt:      time.Now(),
		CreatedBy:      "system",
	}
}

func TestSettlementService_CreatePacs008(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	redisClient, _ := redismock.NewClientMock()
	service := NewSettlementService(db, redisClient)

	t.Run("credit transfer message", func(t *testing.T) {
		doc, err := service.CreatePacs008(completedTransfer())
		assert.NoError(t, err)

		assert.Equal(t, "1", string(doc.GrpHdr.NbOfTxs))
		assert.NotEmpty(t, doc.GrpHdr.MsgId)
		assert.Len(t, doc.CdtTrfTxInf, 1)

		txInf := doc.CdtTrfTxInf[0]
		assert.Equal(t, "TRF-1", string(txInf.PmtId.EndToEndId))
		assert.Equal(t, "USD", string(txInf.IntrBkSttlmAmt.Ccy))
		assert.InDelta(t, 1500.50, txInf.IntrBkSttlmAmt.Value, 0.001)
		assert.Equal(t, "account1", string(*txInf.Dbtr.Nm))
		assert.Equal(t, "account2", string(*txInf.Cdtr.Nm))
	})

	t.Run("missing counterparty rejected", func(t *testing.T) {
		tx := completedTransfer()
		tx.CounterpartyID = ""

		_, err := service.CreatePacs008(tx)
		assert.Error(t, err)
	})

	t.Run("xml rendering", func(t *testing.T) {
		doc, err := service.CreatePacs008(completedTransfer())
		assert.NoError(t, err)

		xmlData, err := service.ConvertToXML(doc)
		assert.NoError(t, err)
		assert.True(t, strings.HasPrefix(xmlData, "<?xml"))
		assert.Contains(t, xmlData, "TRF-1")
	})
}

func TestSettlementService_CreatePacs002(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	redisClient, _ := redismock.NewClientMock()
	service := NewSettlementService(db, redisClient)

	doc, err := service.CreatePacs002(completedTransfer(), "ACSC")
	assert.NoError(t, err)
	assert.Len(t, doc.TxInfAndSts, 1)
	assert.Equal(t, "TRF-1", string(*doc.TxInfAndSts[0].OrgnlTxId))
	assert.Equal(t, "ACSC", string(*doc.TxInfAndSts[0].TxSts))
}

func TestSettlementService_ExportTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	redisClient, _ := redismock.NewClientMock()
	service := NewSettlementService(db, redisClient)
	router := newSettlementRouter(service)

	t.Run("completed transfer exported", func(t *testing.T) {
		mock.ExpectQuery(fetchTransactionQuery).
			WithArgs("TRF-1").
			WillReturnRows(transactionRows().
				AddRow(1, "TRF-1", "account1", "account2", "TRANSFER", 150050, 4500, "USD", "", "COMPLETED", time.Now(), "system"))

		req := httptest.NewRequest("GET", "/settlement/TRF-1/pacs008", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var response map[string]any
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, "pacs.008.001.08", response["messageType"])
		assert.Contains(t, response["xml"], "TRF-1")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deposit not exportable", func(t *testing.T) {
		mock.ExpectQuery(fetchTransactionQuery).
			WithArgs("DEP-1").
			WillReturnRows(transactionRows().
				AddRow(1, "DEP-1", "account1", "", "DEPOSIT", 500, 5500, "USD", "", "COMPLETED", time.Now(), "system"))

		req := httptest.NewRequest("GET", "/settlement/DEP-1/pacs008", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing transaction", func(t *testing.T) {
		mock.ExpectQuery(fetchTransactionQuery).
			WithArgs("ghost").
			WillReturnError(sql.ErrNoRows)

		req := httptest.NewRequest("GET", "/settlement/ghost/pacs008", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSettlementService_ProcessQueue(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	t.Run("drains queued transfers", func(t *testing.T) {
		redisClient, redisMock := redismock.NewClientMock()
		service := NewSettlementService(db, redisClient)

		data, _ := json.Marshal(completedTransfer())
		redisMock.ExpectLPop(settlementQueue).SetVal(string(data))
		redisMock.ExpectLPop(settlementQueue).RedisNil()

		exported, err := service.ProcessQueue(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, 1, exported)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("malformed entries dropped", func(t *testing.T) {
		redisClient, redisMock := redismock.NewClientMock()
		service := NewSettlementService(db, redisClient)

		redisMock.ExpectLPop(settlementQueue).SetVal("not-json")
		redisMock.ExpectLPop(settlementQueue).RedisNil()

		exported, err := service.ProcessQueue(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, 0, exported)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("empty queue", func(t *testing.T) {
		redisClient, redisMock := redismock.NewClientMock()
		service := NewSettlementService(db, redisClient)

		redisMock.ExpectLPop(settlementQueue).RedisNil()

		exported, err := service.ProcessQueue(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, 0, exported)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})
}
