package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/user-provisioning/internal/domain"
	"github.com/spec-kit/user-provisioning/internal/events"
	"github.com/spec-kit/user-provisioning/internal/repository"
)

const (
	accountNumberPrefix = "1000"
	accountRandomSpace  = 1000000 // 6 random digits
	maxGenerateAttempts = 10
)

// ErrExhaustedRetries is returned when no unique account number was found
// within the attempt limit. It is a hard fault for the call; the caller may
// retry the whole operation.
var ErrExhaustedRetries = errors.New("account number generation attempts exhausted")

// AccountService generates globally unique account numbers without a central
// sequence allocator: random candidates, existence check, bounded retry.
type AccountService struct {
	sequences  repository.SequenceRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// AccountDependencies bundles collaborators for the account service.
type AccountDependencies struct {
	SequenceRepo repository.SequenceRepository
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
}

// NewAccountService constructs the service.
func NewAccountService(deps AccountDependencies) *AccountService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{
		sequences:  deps.SequenceRepo,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// Generate produces a unique 10-digit account number and persists its
// Sequence record. Each attempt draws a fresh candidate and asks the store
// whether it exists; a write-time duplicate (a concurrent caller claimed the
// same candidate between check and insert) consumes an attempt the same way
// a failed existence check does. Failed attempts leave no rows behind.
func (s *AccountService) Generate(ctx context.Context) (*domain.Sequence, error) {
	for attempt := 1; attempt <= maxGenerateAttempts; attempt++ {
		candidate, err := randomAccountNumber()
		if err != nil {
			return nil, err
		}

		exists, err := s.sequences.ExistsByAccountNumber(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}

		seq := &domain.Sequence{AccountNumber: candidate}
		if err := s.sequences.Create(ctx, seq); err != nil {
			if errors.Is(err, domain.ErrDuplicateAccountNumber) {
				continue
			}
			return nil, err
		}

		s.logger.Info("generated account number",
			zap.String("account_number", candidate),
			zap.Int("attempts", attempt))
		s.publish(ctx, events.Event{
			Type: events.EventAccountNumberGenerated,
			Payload: events.AccountNumberGeneratedPayload{
				AccountNumber: candidate,
				Attempts:      attempt,
			},
		})
		return seq, nil
	}

	return nil, fmt.Errorf("%w: no unique candidate after %d attempts", ErrExhaustedRetries, maxGenerateAttempts)
}

// randomAccountNumber builds a candidate: the fixed prefix followed by six
// digits from a cryptographically strong source. Account numbers are
// sensitive identifiers, so a statistically weak PRNG is not acceptable.
func randomAccountNumber() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(accountRandomSpace))
	if err != nil {
		return "", fmt.Errorf("draw random digits: %w", err)
	}
	return fmt.Sprintf("%s%06d", accountNumberPrefix, n.Int64()), nil
}

// Lookup returns the sequence record for an account number.
func (s *AccountService) Lookup(ctx context.Context, accountNumber string) (*domain.Sequence, error) {
	return s.sequences.GetByAccountNumber(ctx, accountNumber)
}

func (s *AccountService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = time.Now()
	_ = s.dispatcher.Publish(ctx, event)
}
