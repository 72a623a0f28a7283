package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"
	"github.com/sirupsen/logrus"

	"github.com/meridianbank/core/internal/audit"
	"github.com/meridianbank/core/internal/models"
)

const (
	settlementQueue = "settlement_queue"
	bankBIC         = "MRDNUS33"
)

// SettlementService exports completed transfers as ISO 20022 messages and
// drains the Redis settlement queue.
type SettlementService struct {
	db    *sql.DB
	redis *redis.Client
	audit *audit.Logger
}

func NewSettlementService(db *sql.DB, redisClient *redis.Client) *SettlementService {
	return &SettlementService{
		db:    db,
		redis: redisClient,
		audit: audit.NewLogger(db),
	}
}

// ExportTransaction renders a completed transfer as a pacs.008 message
// @Summary Export transfer as pacs.008
// @Description Render a completed transfer as an ISO 20022 FIToFICustomerCreditTransfer XML message
// @Tags settlement
// @Produce json
// @Security BearerAuth
// @Param transactionId path string true "Transaction reference"
// @Success 200 {object} object{status=string,messageType=string,xml=string}
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /settlement/{transactionId}/pacs008 [get]
func (ss *SettlementService) ExportTransaction(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "transactionId")

	tx, err := ss.fetchTransfer(txID)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Transaction not found", http.StatusNotFound, nil)
		} else {
			logrus.Errorf("[SETTLEMENT] Failed to fetch transaction %s: %v", txID, err)
			SendErrorResponse(w, "Failed to export transaction", http.StatusInternalServerError, nil)
		}
		return
	}

	if tx.Type != models.TxTransfer || tx.Status != models.TxCompleted {
		SendErrorResponse(w, "Only completed transfers can be exported", http.StatusConflict, nil)
		return
	}

	doc, err := ss.CreatePacs008(tx)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
		return
	}

	xmlData, err := ss.ConvertToXML(doc)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":      "converted",
		"messageType": "pacs.008.001.08",
		"xml":         xmlData,
	})
}

// ReportStatus renders a pacs.002 status report for a transaction
// @Summary Report settlement status
// @Description Render an ISO 20022 payment status report (pacs.002) for a transaction
// @Tags settlement
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param transactionId path string true "Transaction reference"
// @Param request body object{status=string} true "Status code (ACCP, ACSC or RJCT)"
// @Success 200 {object} object{status=string,messageType=string,xml=string}
// @Failure 404 {object} ErrorResponse
// @Router /settlement/{transactionId}/status [post]
func (ss *SettlementService) ReportStatus(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "transactionId")

	var req struct {
		Status string `json:"status"`
	}
	if err := DecodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	switch req.Status {
	case "ACCP", "ACSC", "RJCT":
	default:
		SendErrorResponse(w, "Status must be ACCP, ACSC or RJCT", http.StatusBadRequest, nil)
		return
	}

	tx, err := ss.fetchTransfer(txID)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Transaction not found", http.StatusNotFound, nil)
		} else {
			SendErrorResponse(w, "Failed to fetch transaction", http.StatusInternalServerError, nil)
		}
		return
	}

	doc, err := ss.CreatePacs002(tx, req.Status)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
		return
	}

	xmlData, err := ss.ConvertToXML(doc)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":      req.Status,
		"messageType": "pacs.002.001.08",
		"xml":         xmlData,
	})
}

// RunQueue drains the settlement queue on demand
// @Summary Drain settlement queue
// @Description Export every queued transfer to the settlement system
// @Tags settlement
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{exported=int}
// @Router /settlement/run [post]
func (ss *SettlementService) RunQueue(w http.ResponseWriter, r *http.Request) {
	exported, err := ss.ProcessQueue(r.Context())
	if err != nil {
		logrus.Errorf("[SETTLEMENT] Queue run failed after %d exports: %v", exported, err)
		SendErrorResponse(w, "Settlement run failed", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"exported": exported})
}

// ProcessQueue pops queued transfers and dispatches each as a pacs.008
// message. Returns the number of transactions exported.
func (ss *SettlementService) ProcessQueue(ctx context.Context) (int, error) {
	if ss.redis == nil {
		return 0, nil
	}

	exported := 0
	for {
		data, err := ss.redis.LPop(ctx, settlementQueue).Bytes()
		if err == redis.Nil {
			return exported, nil
		}
		if err != nil {
			return exported, err
		}

		var tx models.Transaction
		if err := json.Unmarshal(data, &tx); err != nil {
			logrus.Warnf("[SETTLEMENT] Dropping malformed queue entry: %v", err)
			continue
		}

		doc, err := ss.CreatePacs008(&tx)
		if err != nil {
			return exported, fmt.Errorf("build pacs.008 for %s: %w", tx.TransactionID, err)
		}
		if err := ss.dispatch(doc); err != nil {
			// Put the entry back so the next run retries it
			ss.redis.LPush(ctx, settlementQueue, data)
			return exported, err
		}

		ss.audit.LogOperation(tx.TransactionID, tx.AccountID, "SETTLEMENT_EXPORT", "pacs.008 dispatched")
		exported++
	}
}

// CreatePacs008 builds a FIToFICustomerCreditTransfer message for a transfer.
// The debtor is the source account, the creditor the counterparty.
func (ss *SettlementService) CreatePacs008(tx *models.Transaction) (*pacs_v08.FIToFICustomerCreditTransferV08, error) {
	if tx.CounterpartyID == "" {
		return nil, fmt.Errorf("transaction %s has no counterparty", tx.TransactionID)
	}

	msgID := uuid.New().String()
	now := time.Now()
	amount := float64(tx.Amount) / 100

	doc := &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(msgID),
			CreDtTm: common.ISODateTime(now),
			NbOfTxs: "1",
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(tx.Currency),
				Value: amount,
			},
			IntrBkSttlmDt: (*common.ISODate)(&now),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG",
			},
		},
		CdtTrfTxInf: []pacs_v08.CreditTransferTransaction39{
			{
				PmtId: pacs_v08.PaymentIdentification7{
					InstrId:    &[]common.Max35Text{common.Max35Text(tx.TransactionID)}[0],
					EndToEndId: common.Max35Text(tx.TransactionID),
					TxId:       &[]common.Max35Text{common.Max35Text(tx.TransactionID)}[0],
				},
				IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
					Ccy:   common.ActiveCurrencyCode(tx.Currency),
					Value: amount,
				},
				IntrBkSttlmDt: (*common.ISODate)(&now),
				ChrgBr:        "SLEV",
				DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier(bankBIC)}[0],
					},
				},
				Dbtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(tx.AccountID)}[0],
				},
				CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier(bankBIC)}[0],
					},
				},
				Cdtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(tx.CounterpartyID)}[0],
				},
			},
		},
	}

	return doc, nil
}

// CreatePacs002 builds a payment status report for a transaction.
func (ss *SettlementService) CreatePacs002(tx *models.Transaction, status string) (*pacs_v08.FIToFIPaymentStatusReportV08, error) {
	msgID := uuid.New().String()

	doc := &pacs_v08.FIToFIPaymentStatusReportV08{
		GrpHdr: pacs_v08.GroupHeader53{
			MsgId:   common.Max35Text(msgID),
			CreDtTm: common.ISODateTime(time.Now()),
		},
		TxInfAndSts: []pacs_v08.PaymentTransaction80{
			{
				OrgnlInstrId:    &[]common.Max35Text{common.Max35Text(tx.TransactionID)}[0],
				OrgnlEndToEndId: &[]common.Max35Text{common.Max35Text(tx.TransactionID)}[0],
				OrgnlTxId:       &[]common.Max35Text{common.Max35Text(tx.TransactionID)}[0],
				TxSts:           &[]pacs_v08.ExternalPaymentTransactionStatus1Code{pacs_v08.ExternalPaymentTransactionStatus1Code(status)}[0],
			},
		},
	}

	return doc, nil
}

// ConvertToXML marshals an ISO 20022 document to an XML string.
func (ss *SettlementService) ConvertToXML(doc interface{}) (string, error) {
	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal XML: %w", err)
	}
	return xml.Header + string(xmlData), nil
}

func (ss *SettlementService) dispatch(doc *pacs_v08.FIToFICustomerCreditTransferV08) error {
	xmlData, err := ss.ConvertToXML(doc)
	if err != nil {
		return err
	}

	// TODO: replace log dispatch with the clearing house SFTP drop
	logrus.Infof("[SETTLEMENT] Dispatching pacs.008 (%d bytes)", len(xmlData))
	return nil
}

func (ss *SettlementService) fetchTransfer(txID string) (*models.Transaction, error) {
	tx := &models.Transaction{}
	err := ss.db.QueryRow(`
		SELECT id, transaction_id, account_id, COALESCE(counterparty_id, ''), type, amount,
		       resulting_balance, currency, COALESCE(narration, ''), status, created_at, created_by
		FROM transactions
		WHERE transaction_id = $1`, txID).Scan(
		&tx.ID, &tx.TransactionID, &tx.AccountID, &tx.CounterpartyID, &tx.Type, &tx.Amount,
		&tx.ResultingBalance, &tx.Currency, &tx.Narration, &tx.Status, &tx.CreatedAt, &tx.CreatedBy)
	if err != nil {
		return nil, err
	}
	return tx, nil
}
