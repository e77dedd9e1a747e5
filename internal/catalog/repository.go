package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrCardNotFound  = errors.New("scratch card not found")
	ErrPrizeNotFound = errors.New("prize not found")
)

type CardRepository interface {
	GetActiveCard(ctx context.Context, cardID string) (*ScratchCard, error)
	GetCard(ctx context.Context, cardID string) (*ScratchCard, error)
	ListActiveCards(ctx context.Context) ([]ScratchCard, error)
	CreateCard(ctx context.Context, req CreateCardRequest) (*ScratchCard, error)
	UpdateCard(ctx context.Context, cardID string, req UpdateCardRequest) (*ScratchCard, error)
	DeleteCard(ctx context.Context, cardID string) error
	AddPrize(ctx context.Context, cardID string, req CreatePrizeRequest) (*Prize, error)
}

type CardRepositoryImpl struct {
	db *gorm.DB
}

func NewCardRepositoryImpl(db *gorm.DB) CardRepository {
	return &CardRepositoryImpl{db: db}
}

func (r *CardRepositoryImpl) GetActiveCard(ctx context.Context, cardID string) (*ScratchCard, error) {
	var card ScratchCard
	err := r.db.WithContext(ctx).
		Preload("Prizes").
		Where("id = ? AND status = ?", cardID, CardStatusActive).
		First(&card).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, fmt.Errorf("failed to get scratch card: %w", err)
	}
	return &card, nil
}

// GetCard resolves a card regardless of status. Claims on games bought before
// a card was deactivated still need its prize table.
func (r *CardRepositoryImpl) GetCard(ctx context.Context, cardID string) (*ScratchCard, error) {
	var card ScratchCard
	err := r.db.WithContext(ctx).
		Preload("Prizes").
		Where("id = ?", cardID).
		First(&card).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, fmt.Errorf("failed to get scratch card: %w", err)
	}
	return &card, nil
}

func (r *CardRepositoryImpl) ListActiveCards(ctx context.Context) ([]ScratchCard, error) {
	var cards []ScratchCard
	err := r.db.WithContext(ctx).
		Preload("Prizes").
		Where("status = ?", CardStatusActive).
		Order("created_at DESC").
		Find(&cards).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list scratch cards: %w", err)
	}
	return cards, nil
}

func (r *CardRepositoryImpl) CreateCard(ctx context.Context, req CreateCardRequest) (*ScratchCard, error) {
	card := ScratchCard{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		Image:       req.Image,
		Amount:      req.Amount,
		Rtp:         req.Rtp,
		Status:      CardStatusActive,
	}
	for _, p := range req.Prizes {
		card.Prizes = append(card.Prizes, Prize{
			ID:            uuid.NewString(),
			ScratchCardID: card.ID,
			Name:          p.Name,
			Image:         p.Image,
			Type:          PrizeTypeMoney,
			Value:         p.Value,
			Rtp:           p.Rtp,
		})
	}
	if err := r.db.WithContext(ctx).Create(&card).Error; err != nil {
		return nil, fmt.Errorf("failed to create scratch card: %w", err)
	}
	return &card, nil
}

func (r *CardRepositoryImpl) UpdateCard(ctx context.Context, cardID string, req UpdateCardRequest) (*ScratchCard, error) {
	updates := map[string]interface{}{"updated_at": gorm.Expr("NOW()")}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Image != nil {
		updates["image"] = *req.Image
	}
	if req.Amount != nil {
		updates["amount"] = *req.Amount
	}
	if req.Rtp != nil {
		updates["rtp"] = *req.Rtp
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}

	result := r.db.WithContext(ctx).Model(&ScratchCard{}).Where("id = ?", cardID).Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update scratch card: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrCardNotFound
	}

	var card ScratchCard
	if err := r.db.WithContext(ctx).Preload("Prizes").Where("id = ?", cardID).First(&card).Error; err != nil {
		return nil, fmt.Errorf("failed to reload scratch card: %w", err)
	}
	return &card, nil
}

func (r *CardRepositoryImpl) DeleteCard(ctx context.Context, cardID string) error {
	// Soft delete: cards with games behind them must stay resolvable.
	result := r.db.WithContext(ctx).Model(&ScratchCard{}).
		Where("id = ?", cardID).
		Updates(map[string]interface{}{"status": CardStatusInactive, "updated_at": gorm.Expr("NOW()")})
	if result.Error != nil {
		return fmt.Errorf("failed to deactivate scratch card: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrCardNotFound
	}
	return nil
}

func (r *CardRepositoryImpl) AddPrize(ctx context.Context, cardID string, req CreatePrizeRequest) (*Prize, error) {
	var card ScratchCard
	err := r.db.WithContext(ctx).Where("id = ?", cardID).First(&card).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, fmt.Errorf("failed to get scratch card: %w", err)
	}

	prize := Prize{
		ID:            uuid.NewString(),
		ScratchCardID: cardID,
		Name:          req.Name,
		Image:         req.Image,
		Type:          PrizeTypeMoney,
		Value:         req.Value,
		Rtp:           req.Rtp,
	}
	if err := r.db.WithContext(ctx).Create(&prize).Error; err != nil {
		return nil, fmt.Errorf("failed to create prize: %w", err)
	}
	return &prize, nil
}
