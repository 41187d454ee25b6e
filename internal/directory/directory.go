// Package directory はリモートのユーザーディレクトリと認証サービスの契約を定義する。
// 実装はrepositoryパッケージ（PostgreSQL）が提供する。
package directory

import (
	"context"
	"errors"

	"github.com/hitoshi/fileteluss/internal/model"
)

var (
	// ErrDuplicateEmail は登録済みのメールアドレスで資格情報を作成しようとした場合のエラー。
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidCredentials はメールアドレスまたはパスワードが一致しない場合のエラー。
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Directory はユーザーレコードの保存先。
// 見つからない場合の取得系メソッドは (nil, nil) を返す。
type Directory interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	CreateUser(ctx context.Context, user *model.User) error
	// UpdateUserFields はpatchに含まれるフィールドのみを1文で更新し、更新後のレコードを返す。
	// 同一フィールドへの同時更新は後勝ちとなる。
	UpdateUserFields(ctx context.Context, id string, patch model.UserPatch) (*model.User, error)
	ListUsers(ctx context.Context, filter model.UserFilter) ([]*model.User, error)
}

// Authenticator はパスワード資格情報とログインセッションを管理する。
type Authenticator interface {
	// RegisterCredential はメールアドレスとパスワードの資格情報を作成し、新しいユーザーIDを返す。
	// 登録済みの場合はErrDuplicateEmailを返す。
	RegisterCredential(ctx context.Context, email, password string) (string, error)
	// RemoveCredential はユーザーの資格情報を削除する。登録処理の巻き戻しに使用する。
	RemoveCredential(ctx context.Context, userID string) error
	// Authenticate はパスワードを照合してユーザーIDを返す。
	// 一致しない場合はErrInvalidCredentialsを返す。
	Authenticate(ctx context.Context, email, password string) (string, error)
	// IssueCredential はユーザーのログインセッションを作成し、署名付きトークンを返す。
	IssueCredential(ctx context.Context, userID string) (*model.Credential, error)
	// ResolveCredential はトークンから有効なセッションを取得する。
	// 署名不正・期限切れ・失効済みの場合は (nil, nil) を返す。
	ResolveCredential(ctx context.Context, token string) (*model.AuthSession, error)
	// Deauthenticate はセッションを失効させる。存在しないセッションも成功として扱う。
	Deauthenticate(ctx context.Context, sessionID string) error
}
