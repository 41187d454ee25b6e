package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/fileteluss/internal/directory"
	"github.com/hitoshi/fileteluss/internal/model"
	"github.com/lib/pq"
)

// PostgresCredentialRepo はPostgreSQLを使用した資格情報リポジトリ。
type PostgresCredentialRepo struct {
	db *sql.DB
}

// NewPostgresCredentialRepo はPostgresCredentialRepoを生成する。
func NewPostgresCredentialRepo(db *sql.DB) *PostgresCredentialRepo {
	return &PostgresCredentialRepo{db: db}
}

// Create は資格情報を作成する。
func (r *PostgresCredentialRepo) Create(ctx context.Context, cred *CredentialRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO credentials (user_id, email, password_hash, created_at)
		 VALUES ($1, $2, $3, now())`,
		cred.UserID, model.NormalizeEmail(cred.Email), cred.PasswordHash,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return directory.ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create credential: %w", err)
	}
	return nil
}

// FindByEmail はメールアドレスで資格情報を検索する。
func (r *PostgresCredentialRepo) FindByEmail(ctx context.Context, email string) (*CredentialRecord, error) {
	cred := &CredentialRecord{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, email, password_hash FROM credentials WHERE email = $1`,
		model.NormalizeEmail(email),
	).Scan(&cred.UserID, &cred.Email, &cred.PasswordHash)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find credential: %w", err)
	}
	return cred, nil
}

// DeleteByUserID は資格情報を削除する。
func (r *PostgresCredentialRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM credentials WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// compile-time interface check
var _ CredentialRepository = (*PostgresCredentialRepo)(nil)
