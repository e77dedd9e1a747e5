package catalog

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler exposes the card catalog admin surface. Listing for players lives
// on the game routes.
type Handler struct {
	repo CardRepository
}

func NewHandler(repo CardRepository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) RegisterAdminRoutes(r gin.IRoutes) {
	r.POST("/admin/scratch-cards", h.CreateCard)
	r.PATCH("/admin/scratch-cards/:id", h.UpdateCard)
	r.DELETE("/admin/scratch-cards/:id", h.DeleteCard)
	r.POST("/admin/scratch-cards/:id/prizes", h.AddPrize)
}

func (h *Handler) CreateCard(c *gin.Context) {
	var req CreateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	card, err := h.repo.CreateCard(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, card)
}

func (h *Handler) UpdateCard(c *gin.Context) {
	var req UpdateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	card, err := h.repo.UpdateCard(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (h *Handler) DeleteCard(c *gin.Context) {
	if err := h.repo.DeleteCard(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deactivated"})
}

func (h *Handler) AddPrize(c *gin.Context) {
	var req CreatePrizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	prize, err := h.repo.AddPrize(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, prize)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	if errors.Is(err, ErrCardNotFound) || errors.Is(err, ErrPrizeNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
