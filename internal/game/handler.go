package game

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"scratch_service/internal/catalog"
	"scratch_service/internal/ledger"
	"scratch_service/internal/outcome"
)

type Handler struct {
	service *Service
	cards   catalog.CardRepository
}

func NewHandler(service *Service, cards catalog.CardRepository) *Handler {
	return &Handler{service: service, cards: cards}
}

func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/scratch-cards", h.ListCards)
	r.POST("/scratch-cards/:id/play", h.Play)
	r.POST("/scratch-cards/games/:gameId/claim", h.Claim)
}

func (h *Handler) ListCards(c *gin.Context) {
	cards, err := h.cards.ListActiveCards(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cards)
}

func (h *Handler) Play(c *gin.Context) {
	userID := c.GetString("user_id")
	cardID := c.Param("id")

	result, err := h.service.Play(c.Request.Context(), userID, cardID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) Claim(c *gin.Context) {
	userID := c.GetString("user_id")
	gameID := c.Param("gameId")

	var req ClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.Claim(c.Request.Context(), userID, gameID, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, catalog.ErrCardNotFound),
		errors.Is(err, ErrGameNotFound),
		errors.Is(err, ErrPrizeNotFound),
		errors.Is(err, ledger.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrInsufficientFunds):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
	case errors.Is(err, ErrNotOwner):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, ErrAlreadySettled),
		errors.Is(err, ErrTransactionMismatch),
		errors.Is(err, ErrPositionsTampered),
		errors.Is(err, ErrInvalidClaim),
		errors.Is(err, outcome.ErrEmptyPrizePool),
		errors.Is(err, outcome.ErrInvalidPrizePool),
		errors.Is(err, outcome.ErrDegeneratePool):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
