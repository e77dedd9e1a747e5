package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TypePurchase   = "PURCHASE"
	TypePrize      = "PRIZE"
	TypeDeposit    = "DEPOSIT"
	TypeWithdrawal = "WITHDRAWAL"
	TypeCommission = "COMMISSION"
)

const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
	StatusRejected  = "REJECTED"
	StatusCancelled = "CANCELLED"
)

type Account struct {
	ID        string          `gorm:"column:id;primaryKey;type:uuid;default:uuid_generate_v4()" json:"id"`
	Name      string          `gorm:"column:name;type:varchar(100);not null" json:"name"`
	Email     string          `gorm:"column:email;type:varchar(255);not null;unique" json:"email"`
	Document  string          `gorm:"column:document;type:varchar(20)" json:"document"`
	Balance   decimal.Decimal `gorm:"column:balance;type:numeric(20,2);not null;default:0" json:"balance"`
	Version   int             `gorm:"column:version;not null;default:1" json:"-"`
	CreatedAt time.Time       `gorm:"column:created_at;not null;default:now()" json:"created_at"`
	UpdatedAt time.Time       `gorm:"column:updated_at;not null;default:now()" json:"updated_at"`
}

// Transaction is one balance-affecting event. Amount is signed: debits are
// negative, credits positive. Status moves from PENDING to exactly one
// terminal state and never reopens.
type Transaction struct {
	ID            string          `gorm:"column:id;primaryKey;type:uuid;default:uuid_generate_v4()" json:"id"`
	ExternalID    string          `gorm:"column:external_id;type:varchar(255);not null;uniqueIndex" json:"external_id"`
	AccountID     string          `gorm:"column:account_id;type:uuid;not null;index" json:"account_id"`
	ScratchCardID *string         `gorm:"column:scratch_card_id;type:uuid" json:"scratch_card_id,omitempty"`
	Type          string          `gorm:"column:type;type:varchar(20);not null" json:"type"`
	Amount        decimal.Decimal `gorm:"column:amount;type:numeric(20,2);not null" json:"amount"`
	Description   string          `gorm:"column:description;type:text" json:"description"`
	Status        string          `gorm:"column:status;type:varchar(20);not null;default:'PENDING'" json:"status"`
	PaymentMethod *string         `gorm:"column:payment_method;type:varchar(20)" json:"payment_method,omitempty"`
	PixKey        *string         `gorm:"column:pix_key;type:text" json:"pix_key,omitempty"`
	Reference     *string         `gorm:"column:reference;type:varchar(255)" json:"reference,omitempty"`
	CreatedAt     time.Time       `gorm:"column:created_at;not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;not null;default:now()" json:"updated_at"`
	PaidAt        *time.Time      `gorm:"column:paid_at" json:"paid_at,omitempty"`
}

// TransactionFilter narrows reporting reads over the ledger.
type TransactionFilter struct {
	Type   string
	Status string
	From   *time.Time
	To     *time.Time
	Page   int
	Limit  int
}

type Summary struct {
	TotalDeposits    decimal.Decimal `json:"total_deposits"`
	TotalWithdrawals decimal.Decimal `json:"total_withdrawals"`
	TotalPurchases   decimal.Decimal `json:"total_purchases"`
	TotalPrizes      decimal.Decimal `json:"total_prizes"`
}
