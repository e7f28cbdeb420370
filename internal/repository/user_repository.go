package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/user-provisioning/internal/domain"
)

const uniqueViolationCode = "23505"

// UserRepository defines persistence access for provisioned users. It doubles
// as the uniqueness oracle: the Exists* reads back the orchestrator's
// pre-checks, while the unique indexes behind Create/Update are the actual
// guarantee under concurrency.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByAuthID(ctx context.Context, authID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByContactNo(ctx context.Context, contactNo string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByIdentificationNumber(ctx context.Context, idNumber string) (bool, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `
        u.id, u.auth_id, u.email, u.contact_no, u.identification_number, u.status,
        u.created_at, u.updated_at,
        p.first_name, p.last_name, p.date_of_birth, p.address, p.city, p.state, p.country, p.postal_code`

// Create writes the user and its profile in a single transaction. The pair is
// atomic within the local store only; the identity-provider registration that
// precedes it is not covered.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const insertUser = `
        INSERT INTO users (auth_id, email, contact_no, identification_number, status)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at, updated_at`

	if err := tx.QueryRow(ctx, insertUser,
		user.AuthID,
		user.Email,
		user.ContactNo,
		user.IdentificationNumber,
		user.Status,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return translateUserError(err)
	}

	const insertProfile = `
        INSERT INTO user_profiles (user_id, first_name, last_name, date_of_birth, address, city, state, country, postal_code)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	if _, err := tx.Exec(ctx, insertProfile,
		user.ID,
		user.Profile.FirstName,
		user.Profile.LastName,
		user.Profile.DateOfBirth,
		user.Profile.Address,
		user.Profile.City,
		user.Profile.State,
		user.Profile.Country,
		user.Profile.PostalCode,
	); err != nil {
		return translateUserError(err)
	}

	return tx.Commit(ctx)
}

// Update rewrites the user row and its profile atomically.
func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const updateUser = `
        UPDATE users SET email=$1, contact_no=$2, status=$3, updated_at=NOW()
        WHERE id=$4
        RETURNING updated_at`

	if err := tx.QueryRow(ctx, updateUser,
		user.Email,
		user.ContactNo,
		user.Status,
		user.ID,
	).Scan(&user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrUserNotFound
		}
		return translateUserError(err)
	}

	const updateProfile = `
        UPDATE user_profiles SET first_name=$1, last_name=$2, date_of_birth=$3,
            address=$4, city=$5, state=$6, country=$7, postal_code=$8
        WHERE user_id=$9`

	if _, err := tx.Exec(ctx, updateProfile,
		user.Profile.FirstName,
		user.Profile.LastName,
		user.Profile.DateOfBirth,
		user.Profile.Address,
		user.Profile.City,
		user.Profile.State,
		user.Profile.Country,
		user.Profile.PostalCode,
		user.ID,
	); err != nil {
		return translateUserError(err)
	}

	return tx.Commit(ctx)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.fetchSingle(ctx, "u.id", id)
}

func (r *userRepository) GetByAuthID(ctx context.Context, authID string) (*domain.User, error) {
	return r.fetchSingle(ctx, "u.auth_id", authID)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.fetchSingle(ctx, "u.email", email)
}

func (r *userRepository) GetByContactNo(ctx context.Context, contactNo string) (*domain.User, error) {
	return r.fetchSingle(ctx, "u.contact_no", contactNo)
}

func (r *userRepository) fetchSingle(ctx context.Context, column, arg string) (*domain.User, error) {
	query := `
        SELECT` + userColumns + `
        FROM users u
        JOIN user_profiles p ON p.user_id = u.id
        WHERE ` + column + `=$1`

	var user domain.User
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.AuthID,
		&user.Email,
		&user.ContactNo,
		&user.IdentificationNumber,
		&user.Status,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.Profile.FirstName,
		&user.Profile.LastName,
		&user.Profile.DateOfBirth,
		&user.Profile.Address,
		&user.Profile.City,
		&user.Profile.State,
		&user.Profile.Country,
		&user.Profile.PostalCode,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context) ([]domain.User, error) {
	query := `
        SELECT` + userColumns + `
        FROM users u
        JOIN user_profiles p ON p.user_id = u.id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(
			&user.ID,
			&user.AuthID,
			&user.Email,
			&user.ContactNo,
			&user.IdentificationNumber,
			&user.Status,
			&user.CreatedAt,
			&user.UpdatedAt,
			&user.Profile.FirstName,
			&user.Profile.LastName,
			&user.Profile.DateOfBirth,
			&user.Profile.Address,
			&user.Profile.City,
			&user.Profile.State,
			&user.Profile.Country,
			&user.Profile.PostalCode,
		); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email=$1)`, email)
}

func (r *userRepository) ExistsByIdentificationNumber(ctx context.Context, idNumber string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE identification_number=$1)`, idNumber)
}

func (r *userRepository) exists(ctx context.Context, query, arg string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, query, arg).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// translateUserError maps unique-constraint violations onto the duplicate
// taxonomy so a write-time race reads the same as a failed pre-check.
func translateUserError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolationCode {
		return err
	}
	switch {
	case strings.Contains(pgErr.ConstraintName, "email"):
		return domain.ErrDuplicateEmail
	case strings.Contains(pgErr.ConstraintName, "identification"):
		return domain.ErrDuplicateIdentification
	case strings.Contains(pgErr.ConstraintName, "contact"):
		return domain.ErrDuplicateContactNo
	default:
		return err
	}
}
