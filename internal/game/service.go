package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"scratch_service/internal/catalog"
	"scratch_service/internal/ledger"
	"scratch_service/internal/outcome"
)

const (
	maxSettlementRetries = 3
	settlementRetryDelay = 10 * time.Millisecond
)

var (
	ErrNotOwner            = errors.New("game does not belong to user")
	ErrTransactionMismatch = errors.New("transaction does not match game")
	ErrPositionsTampered   = errors.New("submitted positions do not match game")
	ErrInvalidClaim        = errors.New("claimed prize is not a winning prize")
	ErrPrizeNotFound       = errors.New("claimed prize not found on card")
)

// Service is the settlement orchestrator: it coordinates the purchase debit
// with session creation and the claim verification with payout, each as one
// database transaction.
type Service struct {
	db        *gorm.DB
	cards     catalog.CardRepository
	ledger    ledger.Repository
	sessions  SessionRepository
	generator *outcome.Generator
}

func NewService(db *gorm.DB, cards catalog.CardRepository, ledgerRepo ledger.Repository, sessions SessionRepository, generator *outcome.Generator) *Service {
	return &Service{
		db:        db,
		cards:     cards,
		ledger:    ledgerRepo,
		sessions:  sessions,
		generator: generator,
	}
}

// Play purchases one scratch card: debit, outcome generation and session
// creation commit together or not at all.
func (s *Service) Play(ctx context.Context, userID, cardID string) (*PlayResult, error) {
	card, err := s.cards.GetActiveCard(ctx, cardID)
	if err != nil {
		return nil, err
	}

	account, err := s.ledger.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if account.Balance.LessThan(card.Amount) {
		return nil, ledger.ErrInsufficientFunds
	}

	var result *PlayResult
	err = s.withConflictRetry(ctx, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			transaction := &ledger.Transaction{
				ID:            uuid.NewString(),
				ExternalID:    fmt.Sprintf("SCRATCH_%s", uuid.NewString()),
				AccountID:     userID,
				ScratchCardID: &card.ID,
				Type:          ledger.TypePurchase,
				Amount:        card.Amount.Neg(),
				Description:   fmt.Sprintf("Scratch card purchase: %s", card.Name),
				Status:        ledger.StatusPending,
			}
			if err := s.ledger.CreateTransaction(ctx, tx, transaction); err != nil {
				return err
			}

			if err := s.ledger.Debit(ctx, tx, userID, card.Amount); err != nil {
				return err
			}

			positions, err := s.generator.Positions(card.Rtp, card.Prizes)
			if err != nil {
				return err
			}
			encoded, err := EncodePositions(positions)
			if err != nil {
				return err
			}

			session := &Session{
				ID:            uuid.NewString(),
				UserID:        userID,
				ScratchCardID: card.ID,
				TransactionID: transaction.ID,
				Positions:     encoded,
				Status:        SessionStatusActive,
			}
			if err := s.sessions.CreateSession(ctx, tx, session); err != nil {
				return err
			}

			result = &PlayResult{
				GameID:        session.ID,
				TransactionID: transaction.ID,
				Prizes:        card.Prizes,
				Positions:     positions,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("game purchased: game=%s user=%s card=%s amount=%s",
		result.GameID, userID, cardID, card.Amount.String())
	return result, nil
}

// Claim settles an active game. The submitted grid must match the stored one
// cell for cell; the win is recomputed server-side and never taken from the
// client's claimed prize id alone.
func (s *Service) Claim(ctx context.Context, userID, gameID string, req ClaimRequest) (*ClaimResult, error) {
	session, err := s.sessions.GetSession(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, ErrNotOwner
	}
	if session.Status != SessionStatusActive {
		return nil, ErrAlreadySettled
	}
	if session.TransactionID != req.TransactionID {
		return nil, ErrTransactionMismatch
	}

	purchase, err := s.ledger.GetTransaction(ctx, session.TransactionID)
	if err != nil {
		return nil, err
	}
	if purchase.Status != ledger.StatusPending {
		return nil, ErrAlreadySettled
	}

	stored, err := DecodePositions(session.Positions)
	if err != nil {
		return nil, err
	}
	if err := validatePositions(stored, req.Positions); err != nil {
		log.Printf("integrity violation: game=%s user=%s submitted positions differ from stored grid", gameID, userID)
		return nil, err
	}

	hasWon, prize, err := s.determineWin(ctx, session, stored, req.PrizeID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	err = s.withConflictRetry(ctx, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.sessions.CompleteSession(ctx, tx, gameID, req.PrizeID, now); err != nil {
				return err
			}

			if err := s.ledger.TransitionTransaction(ctx, tx, purchase.ID, ledger.StatusPending, ledger.StatusCompleted, &now); err != nil {
				if errors.Is(err, ledger.ErrTransitionConflict) {
					return ErrAlreadySettled
				}
				return err
			}

			if hasWon {
				if err := s.ledger.Credit(ctx, tx, userID, prize.Value); err != nil {
					return err
				}
				payout := &ledger.Transaction{
					ID:            uuid.NewString(),
					ExternalID:    fmt.Sprintf("PRIZE_%s", uuid.NewString()),
					AccountID:     userID,
					ScratchCardID: &session.ScratchCardID,
					Type:          ledger.TypePrize,
					Amount:        prize.Value,
					Description:   fmt.Sprintf("Prize won: %s", prize.Name),
					Status:        ledger.StatusCompleted,
					PaidAt:        &now,
				}
				if err := s.ledger.CreateTransaction(ctx, tx, payout); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	account, err := s.ledger.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	log.Printf("game settled: game=%s user=%s won=%t", gameID, userID, hasWon)
	return &ClaimResult{
		Success:    true,
		HasWon:     hasWon,
		Prize:      prize,
		NewBalance: account.Balance,
	}, nil
}

// determineWin recomputes the outcome from the stored grid. A nil claimed
// prize id settles as a loss even on a winning grid: the player is allowed to
// concede.
func (s *Service) determineWin(ctx context.Context, session *Session, stored []string, claimedPrizeID *string) (bool, *catalog.Prize, error) {
	if claimedPrizeID == nil {
		return false, nil, nil
	}

	counts := outcome.CountOccurrences(stored)
	if counts[*claimedPrizeID] < outcome.MatchCount {
		return false, nil, ErrInvalidClaim
	}

	card, err := s.cards.GetCard(ctx, session.ScratchCardID)
	if err != nil {
		return false, nil, err
	}
	for i := range card.Prizes {
		if card.Prizes[i].ID == *claimedPrizeID {
			return true, &card.Prizes[i], nil
		}
	}
	return false, nil, ErrPrizeNotFound
}

// validatePositions is the anti-tamper check: the client must echo the
// server-issued grid back unmodified, in order.
func validatePositions(stored, submitted []string) error {
	if len(submitted) != len(stored) {
		return ErrPositionsTampered
	}
	for i := range stored {
		if submitted[i] != stored[i] {
			return ErrPositionsTampered
		}
	}
	return nil
}

// withConflictRetry retries optimistic lock conflicts a bounded number of
// times. Everything else surfaces on the first attempt.
func (s *Service) withConflictRetry(ctx context.Context, fn func(context.Context) error) error {
	backoff := retry.WithMaxRetries(maxSettlementRetries, retry.NewConstant(settlementRetryDelay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if errors.Is(err, ledger.ErrOptimisticLock) {
			return retry.RetryableError(err)
		}
		return err
	})
}
