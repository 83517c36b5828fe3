package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/wallet-ledger/internal/apperrors"
	"github.com/richardliu001/wallet-ledger/internal/model"
	"github.com/richardliu001/wallet-ledger/internal/phone"
	"github.com/richardliu001/wallet-ledger/internal/service"
	"github.com/shopspring/decimal"
)

func RegisterHandlers(r gin.IRouter, svc *service.WalletService) {
	v1 := r.Group("/v1")
	{
		v1.POST("/wallets", createWalletHandler(svc))
		v1.GET("/wallets/:phone", walletHandler(svc))
		v1.GET("/wallets/:phone/balance", balanceHandler(svc))
		v1.GET("/wallets/:phone/transactions", historyHandler(svc))
		v1.POST("/wallets/:phone/deposit", depositHandler(svc))
		v1.POST("/wallets/:phone/withdraw", withdrawHandler(svc))
		v1.POST("/wallets/:phone/virtual-credits", issueHandler(svc))
		v1.POST("/wallets/:phone/virtual-credits/:id/cancel", cancelHandler(svc))
		v1.POST("/wallets/:phone/freeze", freezeHandler(svc, true))
		v1.POST("/wallets/:phone/unfreeze", freezeHandler(svc, false))
		v1.POST("/wallets/:phone/reconcile", reconcileHandler(svc))
	}
}

type errorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// writeError renders err as {"error": {...}}. The cause is attached to the
// context for the logging middleware and never sent to the client.
func writeError(c *gin.Context, err error) {
	appErr := apperrors.From(err)
	_ = c.Error(err)
	if appErr.Retryable() {
		c.Header("Retry-After", "1")
	}
	c.AbortWithStatusJSON(appErr.Status, gin.H{"error": errorBody{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	}})
}

type createWalletReq struct {
	Phone        string `json:"phone" validate:"required,vnphone"`
	CustomerName string `json:"customerName" validate:"max=128"`
}

func createWalletHandler(svc *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createWalletReq
		if err := bindJSON(c, &req, false); err != nil {
			writeError(c, err)
			return
		}
		w, err := svc.CreateWallet(c.Request.Context(), req.Phone, req.CustomerName)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, w)
	}
}

func walletHandler(svc *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := svc.GetWallet(c.Request.Context(), c.Param("phone"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

type balanceResp struct {
	Phone string `json:"phone"`
	model.Balances
}

func balanceHandler(svc *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		b, err := svc.GetBalance(c.Request.Context(), c.Param("phone"))
		if err != nil {
			writeError(c, err)
			return
		}
		p, _ := phone.Canonical(c.Param("phone"))
		c.JSON(http.StatusOK, balanceResp{Phone: p, Balances: b})
	}
}

type historyReq struct {
	Type  string `form:"type"`
	From  string `form:"from"`
	To    string `form:"to"`
	Page  int    `form:"page" validate:"omitempty,min=1"`
	Limit int    `form:"limit" validate:"omitempty,min=1,max=100"`
}

var knownTypes = map[model.TransactionType]bool{
	model.TxDepositBank:         true,
	model.TxDepositReturn:       true,
	model.TxDepositAdjustment:   true,
	model.TxWithdrawOrder:       true,
	model.TxWithdrawRefund:      true,
	model.TxWithdrawAdjustment:  true,
	model.TxVirtualCreditIssue:  true,
	model.TxVirtualCreditUse:    true,
	model.TxVirtualCreditExpire: true,
	model.TxVirtualCreditCancel: true,
}

func (r historyReq) query() (service.HistoryQuery, error) {
	q := service.HistoryQuery{Page: r.Page, Limit: r.Limit}
	for _, t := range strings.Split(r.Type, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if !knownTypes[model.TransactionType(t)] {
			return q, apperrors.InvalidRequest("unknown transaction type "+strconv.Quote(t), nil)
		}
		q.Types = append(q.Types, model.TransactionType(t))
	}
	var err error
	if q.From, err = parseTime("from", r.From); err != nil {
		return q, err
	}
	if q.To, err = parseTime("to", r.To); err != nil {
		return q, err
	}
	return q, nil
}

func parseTime(field, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, apperrors.InvalidRequest(field+" must be RFC3339", err)
	}
	t = t.UTC()
	return &t, nil
}

func historyHandler(svc *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req historyReq
		if err := bindQuery(c, &req); err != nil {
			writeError(c, err)
			return
		}
		q, err := req.query()
		if err != nil {
			writeError(c, err)
			return
		}
		page, err := svc.GetTransactionHistory(c.Request.Context(), c.Param("phone"), q)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

type depositReq struct {
	Amount       decimal.Decimal `json:"amount"`
	SourceType   string          `json:"sourceType" validate:"required,oneof=bank_transfer return adjustment"`
	SourceID     string          `json:"sourceId" validate:"max=64"`
	Description  string          `json:"description" validate:"max=255"`
	InternalNote string          `json:"internalNote" validate:"max=255"`
}

func depositHandler(svc *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req depositReq
		if err := bindJSON(c, &req, false); err != nil {
			writeError(c, err)
			return
		}
		res, err := svc.Deposit(c.Request.Context(), service.DepositRequest{
			Phone:        c.Param("phone"),
			Amount:       req.Amount,
			SourceType:   req.SourceType,
			SourceID:     req.SourceID,
			Description:  req.Description,
			InternalNote: req.InternalNote,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

type withdrawReq struct {
	Amount      decimal.Decimal `json:"amount"`
	OrderID     string          `json:"orderId" validate:"required,max=64"`
	Kind        string          `json:"kind" validate:"omitempty,oneof=order refund adjustment"`
	Description string          `json:"description" validate:"max=255"`
}

func withdrawHandler(svc *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req withdrawReq
		if err := bindJSON(c, &req, false); err != nil {
			writeError(c, err)
			return
		}
		res, err := svc.Withdraw(c.Request.Context(), service.WithdrawRequest{
			Phone:       c.Param("phone"),
			Amount:      req.Amount,
			OrderID:     req.OrderID,
			Kind:        req.Kind,
			Description: req.Description,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

type issueReq struct {
	Amount         decimal.Decimal `json:"amount"`
	ExpiryDays     int             `json:"expiryDays" validate:"omitempty,min=1,max=365"`
	SourceType     string          `json:"sourceType" validate:"required,max=32"`
	SourceTicketID string          `json:"sourceTicketId" validate:"max=64"`
	SourceNote     string          `json:"sourceNote" validate:"max=255"`
}

func issueHandler(svc *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req issueReq
		if err := bindJSON(c, &req, false); err != nil {
			writeError(c, err)
			return
		}
		res, err := svc.IssueVirtualCredit(c.Request.Context(), service.IssueRequest{
			Phone:          c.Param("phone"),
			Amount:         req.Amount,
			ExpiryDays:     req.ExpiryDays,
			SourceType:     req.SourceType,
			SourceTicketID: req.SourceTicketID,
			SourceNote:     req.SourceNote,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, res)
	}
}

type reasonReq struct {
	Reason string `json:"reason" validate:"max=255"`
}

func cancelHandler(svc *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			writeError(c, apperrors.InvalidRequest("invalid credit id", err))
			return
		}
		var req reasonReq
		if err := bindJSON(c, &req, true); err != nil {
			writeError(c, err)
			return
		}
		res, err := svc.CancelVirtualCredit(c.Request.Context(), c.Param("phone"), id, req.Reason)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func freezeHandler(svc *service.WalletService, freeze bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reasonReq
		if err := bindJSON(c, &req, true); err != nil {
			writeError(c, err)
			return
		}
		apply := svc.Unfreeze
		if freeze {
			apply = svc.Freeze
		}
		w, err := apply(c.Request.Context(), c.Param("phone"), req.Reason)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, w)
	}
}

func reconcileHandler(svc *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.Reconcile(c.Request.Context(), c.Param("phone"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}
