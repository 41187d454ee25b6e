package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/fileteluss/internal/directory"
	"github.com/hitoshi/fileteluss/internal/model"
	"github.com/hitoshi/fileteluss/internal/security"
)

// DefaultSessionMaxAge はログインセッションの既定の有効期間（7日）。
const DefaultSessionMaxAge = 7 * 24 * time.Hour

// PostgresAuthenticator は資格情報とセッションのリポジトリを組み合わせた認証サービス。
type PostgresAuthenticator struct {
	credentials   CredentialRepository
	sessions      SessionRepository
	hasher        *security.PasswordHasher
	signer        *security.TokenSigner
	sessionMaxAge time.Duration
	now           func() time.Time
}

// NewPostgresAuthenticator はPostgresAuthenticatorを生成する。
// sessionMaxAgeが0以下の場合はDefaultSessionMaxAgeを使用する。
func NewPostgresAuthenticator(
	credentials CredentialRepository,
	sessions SessionRepository,
	hasher *security.PasswordHasher,
	signer *security.TokenSigner,
	sessionMaxAge time.Duration,
) *PostgresAuthenticator {
	if sessionMaxAge <= 0 {
		sessionMaxAge = DefaultSessionMaxAge
	}
	return &PostgresAuthenticator{
		credentials:   credentials,
		sessions:      sessions,
		hasher:        hasher,
		signer:        signer,
		sessionMaxAge: sessionMaxAge,
		now:           time.Now,
	}
}

// RegisterCredential はパスワードをハッシュ化して資格情報を作成し、新しいユーザーIDを返す。
func (a *PostgresAuthenticator) RegisterCredential(ctx context.Context, email, password string) (string, error) {
	hash, err := a.hasher.Hash(password)
	if err != nil {
		return "", err
	}

	userID := uuid.New().String()
	if err := a.credentials.Create(ctx, &CredentialRecord{
		UserID:       userID,
		Email:        model.NormalizeEmail(email),
		PasswordHash: hash,
	}); err != nil {
		return "", err
	}
	return userID, nil
}

// RemoveCredential はユーザーの資格情報を削除する。
func (a *PostgresAuthenticator) RemoveCredential(ctx context.Context, userID string) error {
	return a.credentials.DeleteByUserID(ctx, userID)
}

// Authenticate はメールアドレスとパスワードを照合してユーザーIDを返す。
func (a *PostgresAuthenticator) Authenticate(ctx context.Context, email, password string) (string, error) {
	cred, err := a.credentials.FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if cred == nil {
		return "", directory.ErrInvalidCredentials
	}

	if err := a.hasher.Compare(cred.PasswordHash, password); err != nil {
		if errors.Is(err, security.ErrPasswordMismatch) {
			return "", directory.ErrInvalidCredentials
		}
		return "", err
	}
	return cred.UserID, nil
}

// IssueCredential はセッションを永続化し、そのIDを含む署名付きトークンを返す。
func (a *PostgresAuthenticator) IssueCredential(ctx context.Context, userID string) (*model.Credential, error) {
	now := a.now()
	session := &model.AuthSession{
		ID:        uuid.New().String(),
		UserID:    userID,
		ExpiresAt: now.Add(a.sessionMaxAge),
		CreatedAt: now,
	}
	if err := a.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	token, err := a.signer.Sign(session.ID, userID, session.ExpiresAt)
	if err != nil {
		// 署名に失敗したセッションは使われないため削除する
		_ = a.sessions.DeleteByID(ctx, session.ID)
		return nil, fmt.Errorf("failed to issue credential: %w", err)
	}

	return &model.Credential{
		UserID:    userID,
		SessionID: session.ID,
		Token:     token,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// ResolveCredential はトークンを検証し、対応する有効なセッションを返す。
func (a *PostgresAuthenticator) ResolveCredential(ctx context.Context, token string) (*model.AuthSession, error) {
	if token == "" {
		return nil, nil
	}
	claims, err := a.signer.Parse(token)
	if err != nil {
		return nil, nil
	}

	session, err := a.sessions.FindByID(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.UserID != claims.Subject {
		return nil, nil
	}
	return session, nil
}

// Deauthenticate はセッションを削除する。
func (a *PostgresAuthenticator) Deauthenticate(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return a.sessions.DeleteByID(ctx, sessionID)
}

// compile-time interface check
var _ directory.Authenticator = (*PostgresAuthenticator)(nil)
