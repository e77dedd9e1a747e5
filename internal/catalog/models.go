package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	CardStatusActive   = "ACTIVE"
	CardStatusInactive = "INACTIVE"
)

const PrizeTypeMoney = "MONEY"

type ScratchCard struct {
	ID          string          `gorm:"column:id;primaryKey;type:uuid;default:uuid_generate_v4()" json:"id"`
	Name        string          `gorm:"column:name;type:varchar(100);not null" json:"name"`
	Description string          `gorm:"column:description;type:text" json:"description"`
	Image       string          `gorm:"column:image;type:text" json:"image"`
	Amount      decimal.Decimal `gorm:"column:amount;type:numeric(20,2);not null" json:"amount"`
	Rtp         float64         `gorm:"column:rtp;type:numeric(5,2);not null" json:"rtp"` // 0 - 100
	Status      string          `gorm:"column:status;type:varchar(20);not null;default:'ACTIVE'" json:"status"`
	Prizes      []Prize         `gorm:"foreignKey:ScratchCardID" json:"prizes"`
	CreatedAt   time.Time       `gorm:"column:created_at;not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;not null;default:now()" json:"updated_at"`
}

type Prize struct {
	ID            string          `gorm:"column:id;primaryKey;type:uuid;default:uuid_generate_v4()" json:"id"`
	ScratchCardID string          `gorm:"column:scratch_card_id;type:uuid;not null" json:"scratch_card_id"`
	Name          string          `gorm:"column:name;type:varchar(100);not null" json:"name"`
	Image         string          `gorm:"column:image;type:text" json:"image"`
	Type          string          `gorm:"column:type;type:varchar(20);not null;default:'MONEY'" json:"type"`
	Value         decimal.Decimal `gorm:"column:value;type:numeric(20,2);not null" json:"value"`
	Rtp           float64         `gorm:"column:rtp;type:numeric(5,2);not null" json:"rtp"` // individual RTP budget
	CreatedAt     time.Time       `gorm:"column:created_at;not null;default:now()" json:"created_at"`
}

type CreateCardRequest struct {
	Name        string               `json:"name" binding:"required"`
	Description string               `json:"description"`
	Image       string               `json:"image"`
	Amount      decimal.Decimal      `json:"amount" binding:"required"`
	Rtp         float64              `json:"rtp" binding:"required,gte=0,lte=100"`
	Prizes      []CreatePrizeRequest `json:"prizes"`
}

type CreatePrizeRequest struct {
	Name  string          `json:"name" binding:"required"`
	Image string          `json:"image"`
	Value decimal.Decimal `json:"value" binding:"required"`
	Rtp   float64         `json:"rtp" binding:"required,gt=0"`
}

type UpdateCardRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Image       *string          `json:"image"`
	Amount      *decimal.Decimal `json:"amount"`
	Rtp         *float64         `json:"rtp"`
	Status      *string          `json:"status"`
}
