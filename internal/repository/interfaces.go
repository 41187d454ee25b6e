// Package repository はユーザーディレクトリのデータ永続化を提供する。
package repository

import (
	"context"

	"github.com/hitoshi/fileteluss/internal/directory"
	"github.com/hitoshi/fileteluss/internal/model"
)

// UserRepository はユーザーレコードの永続化インターフェース。
type UserRepository interface {
	directory.Directory
}

// CredentialRecord は保存されたパスワード資格情報。
type CredentialRecord struct {
	UserID       string
	Email        string
	PasswordHash string
}

// CredentialRepository はパスワード資格情報の永続化インターフェース。
type CredentialRepository interface {
	// Create は資格情報を作成する。メールアドレスが登録済みの場合はdirectory.ErrDuplicateEmailを返す。
	Create(ctx context.Context, cred *CredentialRecord) error
	// FindByEmail はメールアドレスで資格情報を検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*CredentialRecord, error)
	// DeleteByUserID は資格情報を削除する。関連するセッションはCASCADE削除される。
	DeleteByUserID(ctx context.Context, userID string) error
}

// SessionRepository はログインセッションの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.AuthSession) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.AuthSession, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}
