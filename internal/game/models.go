package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"scratch_service/internal/catalog"
	"scratch_service/internal/outcome"
)

const (
	SessionStatusActive    = "ACTIVE"
	SessionStatusCompleted = "COMPLETED"
)

var ErrMalformedPositions = errors.New("positions must hold exactly 9 prize ids")

// Session binds one purchase to its generated grid. Created together with the
// purchase debit, completed exactly once at claim time, never deleted.
type Session struct {
	ID            string     `gorm:"column:id;primaryKey;type:uuid;default:uuid_generate_v4()" json:"id"`
	UserID        string     `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	ScratchCardID string     `gorm:"column:scratch_card_id;type:uuid;not null" json:"scratch_card_id"`
	TransactionID string     `gorm:"column:transaction_id;type:uuid;not null" json:"transaction_id"`
	Positions     string     `gorm:"column:positions;type:text;not null" json:"-"`
	Status        string     `gorm:"column:status;type:varchar(20);not null;default:'ACTIVE'" json:"status"`
	PrizeID       *string    `gorm:"column:prize_id;type:uuid" json:"prize_id,omitempty"`
	CreatedAt     time.Time  `gorm:"column:created_at;not null;default:now()" json:"created_at"`
	CompletedAt   *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

// EncodePositions serializes the grid as an ordered JSON array. Order is
// load-bearing: the client echoes it back verbatim at claim time.
func EncodePositions(positions []string) (string, error) {
	if len(positions) != outcome.GridSize {
		return "", ErrMalformedPositions
	}
	raw, err := json.Marshal(positions)
	if err != nil {
		return "", fmt.Errorf("failed to encode positions: %w", err)
	}
	return string(raw), nil
}

func DecodePositions(encoded string) ([]string, error) {
	var positions []string
	if err := json.Unmarshal([]byte(encoded), &positions); err != nil {
		return nil, fmt.Errorf("failed to decode positions: %w", err)
	}
	if len(positions) != outcome.GridSize {
		return nil, ErrMalformedPositions
	}
	return positions, nil
}

type PlayResult struct {
	GameID        string          `json:"gameId"`
	TransactionID string          `json:"transactionId"`
	Prizes        []catalog.Prize `json:"prizes"`
	Positions     []string        `json:"positions"`
}

type ClaimRequest struct {
	TransactionID       string   `json:"transactionId" binding:"required"`
	PrizeID             *string  `json:"prizeId"`
	Positions           []string `json:"positions" binding:"required"`
	ScratchedPercentage float64  `json:"scratchedPercentage"`
}

type ClaimResult struct {
	Success    bool            `json:"success"`
	HasWon     bool            `json:"hasWon"`
	Prize      *catalog.Prize  `json:"prize,omitempty"`
	NewBalance decimal.Decimal `json:"newBalance"`
}
