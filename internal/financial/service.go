package financial

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"scratch_service/internal/gateway"
	"scratch_service/internal/ledger"
)

var (
	ErrInvalidAmount = errors.New("amount must be between 1.00 and 25000.00")
	minDeposit       = decimal.NewFromInt(1)
	maxDeposit       = decimal.NewFromInt(25000)
)

// PixGateway is the slice of the payment gateway this service consumes.
type PixGateway interface {
	GeneratePix(ctx context.Context, req gateway.PixChargeRequest) (*gateway.PixCharge, error)
	Payment(ctx context.Context, req gateway.PixPayoutRequest) (*gateway.PixPayout, error)
}

type Service struct {
	db     *gorm.DB
	ledger ledger.Repository
	pix    PixGateway
}

func NewService(db *gorm.DB, ledgerRepo ledger.Repository, pix PixGateway) *Service {
	return &Service{db: db, ledger: ledgerRepo, pix: pix}
}

type DepositResult struct {
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	QRCode        string          `json:"qrcode"`
	PixKey        string          `json:"pix_key"`
	ExpiresAt     string          `json:"expires_at"`
}

// Deposit opens a PENDING cash-in and returns the PIX charge. The balance is
// only credited when the gateway webhook confirms payment.
func (s *Service) Deposit(ctx context.Context, userID string, amount decimal.Decimal, document string) (*DepositResult, error) {
	if amount.LessThan(minDeposit) || amount.GreaterThan(maxDeposit) {
		return nil, ErrInvalidAmount
	}

	account, err := s.ledger.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	if document != "" && document != account.Document {
		if err := s.ledger.UpdateAccountDocument(ctx, userID, document); err != nil {
			return nil, err
		}
		account.Document = document
	}

	method := "PIX"
	transaction := &ledger.Transaction{
		ID:            uuid.NewString(),
		ExternalID:    fmt.Sprintf("dep_%s", uuid.NewString()),
		AccountID:     userID,
		Type:          ledger.TypeDeposit,
		Amount:        amount,
		Description:   fmt.Sprintf("PIX Deposit - R$ %s", amount.StringFixed(2)),
		Status:        ledger.StatusPending,
		PaymentMethod: &method,
	}
	if err := s.ledger.CreateTransaction(ctx, s.db, transaction); err != nil {
		return nil, err
	}

	log.Printf("deposit created: user=%s transaction=%s amount=%s", userID, transaction.ID, amount.String())

	charge, err := s.pix.GeneratePix(ctx, gateway.PixChargeRequest{
		Amount:     amount,
		ExternalID: transaction.ID,
		Payer: gateway.Payer{
			Name:     account.Name,
			Document: account.Document,
			Email:    account.Email,
		},
	})
	if err != nil {
		// No charge was created, so the deposit can never be funded. Cancel
		// it instead of leaving it PENDING forever.
		log.Printf("deposit charge declined by gateway, cancelling: user=%s transaction=%s", userID, transaction.ID)
		if cancelErr := s.ledger.TransitionTransaction(ctx, s.db, transaction.ID, ledger.StatusPending, ledger.StatusCancelled, nil); cancelErr != nil {
			return nil, fmt.Errorf("gateway failed and cancellation failed: %w", cancelErr)
		}
		return nil, err
	}

	if err := s.ledger.SetTransactionPixDetails(ctx, transaction.ID, charge.PixKey, charge.TransactionID, charge.TransactionID); err != nil {
		return nil, err
	}

	return &DepositResult{
		TransactionID: transaction.ID,
		Amount:        amount,
		QRCode:        charge.QRCode,
		PixKey:        charge.PixKey,
		ExpiresAt:     charge.ExpiresAt,
	}, nil
}

type WithdrawRequest struct {
	Amount  decimal.Decimal `json:"amount" binding:"required"`
	KeyType string          `json:"keyType" binding:"required,oneof=CPF CNPJ EMAIL PHONE RANDOM"`
	Key     string          `json:"key" binding:"required"`
}

type WithdrawResult struct {
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
}

// Withdraw debits immediately and opens a PENDING cash-out. A declined
// gateway call is compensated: the debit is credited back and the transaction
// rejected.
func (s *Service) Withdraw(ctx context.Context, userID string, req WithdrawRequest) (*WithdrawResult, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	account, err := s.ledger.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if account.Balance.LessThan(req.Amount) {
		return nil, ledger.ErrInsufficientFunds
	}

	method := "PIX"
	transaction := &ledger.Transaction{
		ID:            uuid.NewString(),
		ExternalID:    fmt.Sprintf("wd_%s", uuid.NewString()),
		AccountID:     userID,
		Type:          ledger.TypeWithdrawal,
		Amount:        req.Amount.Neg(),
		Description:   fmt.Sprintf("PIX Withdrawal - R$ %s", req.Amount.StringFixed(2)),
		Status:        ledger.StatusPending,
		PaymentMethod: &method,
		PixKey:        &req.Key,
	}

	err = s.withConflictRetry(ctx, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.ledger.Debit(ctx, tx, userID, req.Amount); err != nil {
				return err
			}
			return s.ledger.CreateTransaction(ctx, tx, transaction)
		})
	})
	if err != nil {
		return nil, err
	}

	payout, err := s.pix.Payment(ctx, gateway.PixPayoutRequest{
		Amount:      req.Amount,
		Description: transaction.Description,
		ExternalID:  transaction.ID,
		CreditParty: gateway.CreditParty{
			Name:    account.Name,
			KeyType: req.KeyType,
			Key:     req.Key,
			TaxID:   account.Document,
		},
	})
	if err != nil {
		log.Printf("withdrawal declined by gateway, compensating: user=%s transaction=%s", userID, transaction.ID)
		if compErr := s.compensateWithdrawal(ctx, userID, transaction.ID, req.Amount); compErr != nil {
			return nil, fmt.Errorf("gateway failed and compensation failed: %w", compErr)
		}
		return nil, err
	}

	if err := s.ledger.SetTransactionPixDetails(ctx, transaction.ID, req.Key, payout.TransactionID, payout.TransactionID); err != nil {
		return nil, err
	}

	log.Printf("withdrawal submitted: user=%s transaction=%s amount=%s", userID, transaction.ID, req.Amount.String())
	return &WithdrawResult{
		TransactionID: transaction.ID,
		Amount:        req.Amount,
		Status:        ledger.StatusPending,
	}, nil
}

type CashInWebhook struct {
	TransactionType string          `json:"transactionType"`
	TransactionID   string          `json:"transactionId" binding:"required"`
	ExternalID      string          `json:"external_id"`
	Amount          decimal.Decimal `json:"amount"`
	Status          string          `json:"status"`
	DateApproval    string          `json:"dateApproval"`
}

// ConfirmCashIn settles a confirmed deposit. Replayed webhooks are a no-op:
// a transaction already out of PENDING is left alone.
func (s *Service) ConfirmCashIn(ctx context.Context, hook CashInWebhook) error {
	transaction, err := s.ledger.FindTransactionByExternalID(ctx, hook.TransactionID, ledger.TypeDeposit)
	if err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			log.Printf("cash-in webhook for unknown transaction: external=%s", hook.TransactionID)
		}
		return err
	}

	if transaction.Status != ledger.StatusPending {
		log.Printf("cash-in webhook replay ignored: transaction=%s status=%s", transaction.ID, transaction.Status)
		return nil
	}

	now := time.Now()
	err = s.withConflictRetry(ctx, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.ledger.TransitionTransaction(ctx, tx, transaction.ID, ledger.StatusPending, ledger.StatusCompleted, &now); err != nil {
				if errors.Is(err, ledger.ErrTransitionConflict) {
					// Raced with another delivery of the same webhook.
					return nil
				}
				return err
			}
			return s.ledger.Credit(ctx, tx, transaction.AccountID, transaction.Amount)
		})
	})
	if err != nil {
		return err
	}

	log.Printf("cash-in settled: transaction=%s account=%s amount=%s",
		transaction.ID, transaction.AccountID, transaction.Amount.String())
	return nil
}

type CashOutWebhook struct {
	TransactionType string          `json:"transactionType"`
	TransactionID   string          `json:"transactionId" binding:"required"`
	ExternalID      string          `json:"external_id"`
	Amount          decimal.Decimal `json:"amount"`
	DateApproval    string          `json:"dateApproval"`
	StatusCode      struct {
		StatusID    int    `json:"statusId"`
		Description string `json:"description"`
	} `json:"statusCode"`
}

// statusPaid is the gateway's terminal success code for cash-out.
const statusPaid = "PAID"

// ConfirmCashOut settles or rejects a withdrawal. Rejection credits the held
// amount back.
func (s *Service) ConfirmCashOut(ctx context.Context, hook CashOutWebhook) error {
	transaction, err := s.ledger.FindTransactionByExternalID(ctx, hook.TransactionID, ledger.TypeWithdrawal)
	if err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			log.Printf("cash-out webhook for unknown transaction: external=%s", hook.TransactionID)
		}
		return err
	}

	if transaction.Status != ledger.StatusPending {
		log.Printf("cash-out webhook replay ignored: transaction=%s status=%s", transaction.ID, transaction.Status)
		return nil
	}

	now := time.Now()
	if hook.StatusCode.Description == statusPaid {
		err = s.withConflictRetry(ctx, func(ctx context.Context) error {
			return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				err := s.ledger.TransitionTransaction(ctx, tx, transaction.ID, ledger.StatusPending, ledger.StatusCompleted, &now)
				if errors.Is(err, ledger.ErrTransitionConflict) {
					return nil
				}
				return err
			})
		})
		if err != nil {
			return err
		}
		log.Printf("cash-out settled: transaction=%s", transaction.ID)
		return nil
	}

	err = s.withConflictRetry(ctx, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			err := s.ledger.TransitionTransaction(ctx, tx, transaction.ID, ledger.StatusPending, ledger.StatusRejected, nil)
			if err != nil {
				if errors.Is(err, ledger.ErrTransitionConflict) {
					return nil
				}
				return err
			}
			return s.ledger.Credit(ctx, tx, transaction.AccountID, transaction.Amount.Abs())
		})
	})
	if err != nil {
		return err
	}

	log.Printf("cash-out rejected, funds returned: transaction=%s status=%s",
		transaction.ID, hook.StatusCode.Description)
	return nil
}

func (s *Service) compensateWithdrawal(ctx context.Context, userID, transactionID string, amount decimal.Decimal) error {
	return s.withConflictRetry(ctx, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.ledger.TransitionTransaction(ctx, tx, transactionID, ledger.StatusPending, ledger.StatusRejected, nil); err != nil {
				return err
			}
			return s.ledger.Credit(ctx, tx, userID, amount)
		})
	})
}

func (s *Service) withConflictRetry(ctx context.Context, fn func(context.Context) error) error {
	backoff := retry.WithMaxRetries(3, retry.NewConstant(10*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if errors.Is(err, ledger.ErrOptimisticLock) {
			return retry.RetryableError(err)
		}
		return err
	})
}
