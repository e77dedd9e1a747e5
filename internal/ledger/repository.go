package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrOptimisticLock      = errors.New("optimistic lock error")
	ErrTransitionConflict  = errors.New("transaction is not in the expected status")
	ErrNonPositiveAmount   = errors.New("amount must be positive")
)

type Repository interface {
	GetAccount(ctx context.Context, accountID string) (*Account, error)
	CreateAccount(ctx context.Context, account *Account) error
	Debit(ctx context.Context, tx *gorm.DB, accountID string, amount decimal.Decimal) error
	Credit(ctx context.Context, tx *gorm.DB, accountID string, amount decimal.Decimal) error
	CreateTransaction(ctx context.Context, tx *gorm.DB, transaction *Transaction) error
	TransitionTransaction(ctx context.Context, tx *gorm.DB, transactionID, fromStatus, toStatus string, paidAt *time.Time) error
	GetTransaction(ctx context.Context, transactionID string) (*Transaction, error)
	SetTransactionPixDetails(ctx context.Context, transactionID, pixKey, externalID, reference string) error
	UpdateAccountDocument(ctx context.Context, accountID, document string) error
	FindTransactionByExternalID(ctx context.Context, externalID, txType string) (*Transaction, error)
	ListTransactions(ctx context.Context, accountID string, filter TransactionFilter) ([]Transaction, int64, error)
	GetSummary(ctx context.Context, accountID string) (*Summary, error)
}

type RepositoryImpl struct {
	db *gorm.DB
}

func NewRepositoryImpl(db *gorm.DB) Repository {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	var account Account
	err := r.db.WithContext(ctx).Where("id = ?", accountID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

func (r *RepositoryImpl) CreateAccount(ctx context.Context, account *Account) error {
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// Debit subtracts amount from the account balance under a version guard.
// Concurrent writers that raced past the read lose on RowsAffected and get
// ErrOptimisticLock; callers retry.
func (r *RepositoryImpl) Debit(ctx context.Context, tx *gorm.DB, accountID string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}

	var account Account
	if err := tx.WithContext(ctx).Where("id = ?", accountID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("failed to load account: %w", err)
	}

	if account.Balance.LessThan(amount) {
		return ErrInsufficientFunds
	}

	result := tx.WithContext(ctx).Model(&Account{}).
		Where("id = ? AND version = ?", account.ID, account.Version).
		Updates(map[string]interface{}{
			"balance":    account.Balance.Sub(amount),
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to debit account: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrOptimisticLock
	}
	return nil
}

func (r *RepositoryImpl) Credit(ctx context.Context, tx *gorm.DB, accountID string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}

	var account Account
	if err := tx.WithContext(ctx).Where("id = ?", accountID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("failed to load account: %w", err)
	}

	result := tx.WithContext(ctx).Model(&Account{}).
		Where("id = ? AND version = ?", account.ID, account.Version).
		Updates(map[string]interface{}{
			"balance":    account.Balance.Add(amount),
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to credit account: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrOptimisticLock
	}
	return nil
}

func (r *RepositoryImpl) CreateTransaction(ctx context.Context, tx *gorm.DB, transaction *Transaction) error {
	if err := tx.WithContext(ctx).Create(transaction).Error; err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// TransitionTransaction moves a transaction between statuses, failing closed
// when the stored status no longer matches fromStatus. This is the guard
// against double settlement.
func (r *RepositoryImpl) TransitionTransaction(ctx context.Context, tx *gorm.DB, transactionID, fromStatus, toStatus string, paidAt *time.Time) error {
	updates := map[string]interface{}{
		"status":     toStatus,
		"updated_at": gorm.Expr("NOW()"),
	}
	if paidAt != nil {
		updates["paid_at"] = *paidAt
	}

	result := tx.WithContext(ctx).Model(&Transaction{}).
		Where("id = ? AND status = ?", transactionID, fromStatus).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to transition transaction: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTransitionConflict
	}
	return nil
}

func (r *RepositoryImpl) GetTransaction(ctx context.Context, transactionID string) (*Transaction, error) {
	var transaction Transaction
	err := r.db.WithContext(ctx).Where("id = ?", transactionID).First(&transaction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &transaction, nil
}

// SetTransactionPixDetails stores the gateway's charge identifiers on a
// deposit or withdrawal, so webhooks can correlate back to it.
func (r *RepositoryImpl) SetTransactionPixDetails(ctx context.Context, transactionID, pixKey, externalID, reference string) error {
	result := r.db.WithContext(ctx).Model(&Transaction{}).
		Where("id = ?", transactionID).
		Updates(map[string]interface{}{
			"pix_key":     pixKey,
			"external_id": externalID,
			"reference":   reference,
			"updated_at":  gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to set pix details: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r *RepositoryImpl) UpdateAccountDocument(ctx context.Context, accountID, document string) error {
	result := r.db.WithContext(ctx).Model(&Account{}).
		Where("id = ?", accountID).
		Updates(map[string]interface{}{"document": document, "updated_at": gorm.Expr("NOW()")})
	if result.Error != nil {
		return fmt.Errorf("failed to update account document: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *RepositoryImpl) FindTransactionByExternalID(ctx context.Context, externalID, txType string) (*Transaction, error) {
	var transaction Transaction
	err := r.db.WithContext(ctx).
		Where("external_id = ? AND type = ?", externalID, txType).
		First(&transaction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to find transaction: %w", err)
	}
	return &transaction, nil
}

func (r *RepositoryImpl) ListTransactions(ctx context.Context, accountID string, filter TransactionFilter) ([]Transaction, int64, error) {
	query := r.db.WithContext(ctx).Model(&Transaction{}).Where("account_id = ?", accountID)

	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}

	var transactions []Transaction
	err := query.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&transactions).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	return transactions, total, nil
}

func (r *RepositoryImpl) GetSummary(ctx context.Context, accountID string) (*Summary, error) {
	sum := func(txType string) (decimal.Decimal, error) {
		var row struct {
			Total decimal.NullDecimal
		}
		err := r.db.WithContext(ctx).Model(&Transaction{}).
			Select("SUM(amount) AS total").
			Where("account_id = ? AND type = ? AND status = ?", accountID, txType, StatusCompleted).
			Scan(&row).Error
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to sum %s transactions: %w", txType, err)
		}
		if !row.Total.Valid {
			return decimal.Zero, nil
		}
		return row.Total.Decimal, nil
	}

	deposits, err := sum(TypeDeposit)
	if err != nil {
		return nil, err
	}
	withdrawals, err := sum(TypeWithdrawal)
	if err != nil {
		return nil, err
	}
	purchases, err := sum(TypePurchase)
	if err != nil {
		return nil, err
	}
	prizes, err := sum(TypePrize)
	if err != nil {
		return nil, err
	}

	return &Summary{
		TotalDeposits:    deposits,
		TotalWithdrawals: withdrawals,
		TotalPurchases:   purchases,
		TotalPrizes:      prizes,
	}, nil
}
