package financial

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"scratch_service/internal/ledger"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.POST("/financial/deposit", h.Deposit)
	r.POST("/financial/withdraw", h.Withdraw)
}

// RegisterWebhookRoutes lives outside the authenticated group: the gateway
// calls these, not the player.
func (h *Handler) RegisterWebhookRoutes(r gin.IRoutes) {
	r.POST("/webhooks/pix/cash-in", h.CashIn)
	r.POST("/webhooks/pix/cash-out", h.CashOut)
}

type depositRequest struct {
	Amount   decimal.Decimal `json:"amount" binding:"required"`
	Document string          `json:"document"`
}

func (h *Handler) Deposit(c *gin.Context) {
	userID := c.GetString("user_id")

	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.Deposit(c.Request.Context(), userID, req.Amount, req.Document)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) Withdraw(c *gin.Context) {
	userID := c.GetString("user_id")

	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.Withdraw(c.Request.Context(), userID, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) CashIn(c *gin.Context) {
	var hook CashInWebhook
	if err := c.ShouldBindJSON(&hook); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.ConfirmCashIn(c.Request.Context(), hook); err != nil {
		// The gateway retries on non-2xx; unknown transactions are its
		// problem, not ours.
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) CashOut(c *gin.Context) {
	var hook CashOutWebhook
	if err := c.ShouldBindJSON(&hook); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.ConfirmCashOut(c.Request.Context(), hook); err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrInsufficientFunds):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
