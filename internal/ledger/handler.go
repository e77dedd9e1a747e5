package ledger

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/transactions", h.ListTransactions)
	r.GET("/transactions/summary", h.Summary)
	r.GET("/balance", h.Balance)
}

// ListTransactions is the reconciliation read: filterable by type, status and
// date range.
func (h *Handler) ListTransactions(c *gin.Context) {
	userID := c.GetString("user_id")

	filter := TransactionFilter{
		Type:   c.Query("type"),
		Status: c.Query("status"),
	}
	if v, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = v
	}
	if v, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.Limit = v
	}
	if raw := c.Query("from"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.From = &ts
		}
	}
	if raw := c.Query("to"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.To = &ts
		}
	}

	transactions, total, err := h.repo.ListTransactions(c.Request.Context(), userID, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	c.JSON(http.StatusOK, gin.H{
		"data": transactions,
		"pagination": gin.H{
			"page":       filter.Page,
			"limit":      limit,
			"total":      total,
			"totalPages": (total + int64(limit) - 1) / int64(limit),
		},
	})
}

func (h *Handler) Summary(c *gin.Context) {
	userID := c.GetString("user_id")

	summary, err := h.repo.GetSummary(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) Balance(c *gin.Context) {
	userID := c.GetString("user_id")

	account, err := h.repo.GetAccount(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": account.Balance})
}
