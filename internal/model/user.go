// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strings"
	"time"
)

// Role はユーザーのロールを表す。
type Role string

const (
	RoleUser    Role = "user"
	RoleEditor  Role = "editor"
	RolePremium Role = "premium"
	RoleAdmin   Role = "admin"
)

// RoleCatalog は有効なロールの一覧。
var RoleCatalog = []Role{RoleUser, RoleEditor, RolePremium, RoleAdmin}

// ParseRole は文字列をRoleに変換する。カタログ外の値はエラーを返す。
func ParseRole(s string) (Role, error) {
	for _, r := range RoleCatalog {
		if string(r) == s {
			return r, nil
		}
	}
	return "", NewInvalidRoleError(s)
}

// Status はユーザーの承認状態を表す。
// 登録時はpendingで作成され、管理者操作によってのみapproved/rejectedへ遷移する。
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// StatusCatalog は有効な承認状態の一覧。
var StatusCatalog = []Status{StatusPending, StatusApproved, StatusRejected}

// ParseStatus は文字列をStatusに変換する。カタログ外の値はエラーを返す。
func ParseStatus(s string) (Status, error) {
	for _, st := range StatusCatalog {
		if string(st) == s {
			return st, nil
		}
	}
	return "", NewInvalidStatusError(s)
}

// User はディレクトリに登録されたユーザーレコードを表す。
type User struct {
	ID           string
	Name         string
	Email        string
	Role         Role
	Status       Status
	Features     []Feature
	AccessExpiry *time.Time
	RegisteredAt time.Time
	UpdatedAt    time.Time
}

// NewUser は登録直後のユーザーレコードを生成する。
// メールアドレスは正規化され、role=user、status=pending、機能なし、期限なしで作成される。
func NewUser(id, name, email string, now time.Time) (*User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("user id is required")
	}
	email = NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("user email is required")
	}

	return &User{
		ID:           id,
		Name:         strings.TrimSpace(name),
		Email:        email,
		Role:         RoleUser,
		Status:       StatusPending,
		Features:     []Feature{},
		AccessExpiry: nil,
		RegisteredAt: now,
		UpdatedAt:    now,
	}, nil
}

// NormalizeEmail はメールアドレスの前後の空白を除去し小文字化する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserPatch はユーザーレコードの部分更新内容を表す。
// nilのフィールドは変更しない。
type UserPatch struct {
	Name     *string
	Role     *Role
	Status   *Status
	Features *[]Feature

	// AccessExpiryが非nilの場合は期限を設定する。
	// ClearAccessExpiryがtrueの場合は期限を削除する（AccessExpiryより優先）。
	AccessExpiry      *time.Time
	ClearAccessExpiry bool
}

// IsEmpty は更新対象のフィールドが1つもない場合にtrueを返す。
func (p UserPatch) IsEmpty() bool {
	return p.Name == nil && p.Role == nil && p.Status == nil &&
		p.Features == nil && p.AccessExpiry == nil && !p.ClearAccessExpiry
}

// UserFilter はユーザー一覧取得時の絞り込み条件。
type UserFilter struct {
	ExcludeAdmins bool
	Status        *Status
}

// Session はログイン中ユーザーのUserレコードから導出した読み取り専用の投影。
// 保護されたアクセスのたびに最新のUserから再構築する。
type Session struct {
	UserID       string
	Name         string
	Email        string
	Role         Role
	Status       Status
	Features     []Feature
	AccessExpiry *time.Time
}

// NewSession はUserからSessionを生成する。
// approved以外のユーザーはセッション化できない。
func NewSession(u *User) (*Session, error) {
	if u == nil {
		return nil, fmt.Errorf("user is required")
	}
	if u.Status != StatusApproved {
		return nil, fmt.Errorf("user %s is not approved: %s", u.ID, u.Status)
	}

	features := make([]Feature, len(u.Features))
	copy(features, u.Features)

	var expiry *time.Time
	if u.AccessExpiry != nil {
		t := *u.AccessExpiry
		expiry = &t
	}

	return &Session{
		UserID:       u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Role:         u.Role,
		Status:       u.Status,
		Features:     features,
		AccessExpiry: expiry,
	}, nil
}

// AuthSession は永続化されたログインセッションを表す。
type AuthSession struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Credential は認証成功時に発行される資格情報。
// Tokenは署名付きで、その中のセッションIDがAuthSessionを指す。
type Credential struct {
	UserID    string
	SessionID string
	Token     string
	ExpiresAt time.Time
}
