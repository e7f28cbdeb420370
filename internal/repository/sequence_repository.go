package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/user-provisioning/internal/domain"
)

// SequenceRepository persists generated account numbers.
type SequenceRepository interface {
	Create(ctx context.Context, seq *domain.Sequence) error
	GetByAccountNumber(ctx context.Context, accountNumber string) (*domain.Sequence, error)
	ExistsByAccountNumber(ctx context.Context, accountNumber string) (bool, error)
}

type sequenceRepository struct {
	pool *pgxpool.Pool
}

// NewSequenceRepository returns a Postgres-backed implementation.
func NewSequenceRepository(pool *pgxpool.Pool) SequenceRepository {
	return &sequenceRepository{pool: pool}
}

func (r *sequenceRepository) Create(ctx context.Context, seq *domain.Sequence) error {
	const query = `
        INSERT INTO sequences (account_number)
        VALUES ($1)
        RETURNING id, created_at`

	if err := r.pool.QueryRow(ctx, query, seq.AccountNumber).Scan(&seq.ID, &seq.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return domain.ErrDuplicateAccountNumber
		}
		return err
	}
	return nil
}

func (r *sequenceRepository) GetByAccountNumber(ctx context.Context, accountNumber string) (*domain.Sequence, error) {
	const query = `
        SELECT id, account_number, created_at
        FROM sequences WHERE account_number=$1`

	var seq domain.Sequence
	if err := r.pool.QueryRow(ctx, query, accountNumber).Scan(&seq.ID, &seq.AccountNumber, &seq.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSequenceNotFound
		}
		return nil, err
	}
	return &seq, nil
}

func (r *sequenceRepository) ExistsByAccountNumber(ctx context.Context, accountNumber string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS(SELECT 1 FROM sequences WHERE account_number=$1)`
	if err := r.pool.QueryRow(ctx, query, accountNumber).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
