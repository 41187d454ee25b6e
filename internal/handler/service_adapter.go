package handler

import (
	"context"
	"time"

	"github.com/hitoshi/fileteluss/internal/admin"
	"github.com/hitoshi/fileteluss/internal/model"
)

// AdminServiceAdapter は admin.Service を AdminServiceInterface に適合させるアダプタ。
type AdminServiceAdapter struct {
	svc *admin.Service
}

// NewAdminServiceAdapter はAdminServiceAdapterを生成する。
func NewAdminServiceAdapter(svc *admin.Service) *AdminServiceAdapter {
	return &AdminServiceAdapter{svc: svc}
}

// ListUsers は管理者以外のユーザー一覧をhandlerレスポンス型で返す。
func (a *AdminServiceAdapter) ListUsers(ctx context.Context) ([]userResponse, error) {
	users, err := a.svc.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]userResponse, len(users))
	for i, u := range users {
		results[i] = toUserResponse(u)
	}
	return results, nil
}

// Stats は管理者以外のユーザーの承認状態ごとの件数を返す。
func (a *AdminServiceAdapter) Stats(ctx context.Context) (*admin.Stats, error) {
	users, err := a.svc.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	stats := admin.ComputeStats(users)
	return &stats, nil
}

// SetStatus はユーザーの承認状態を変更しhandlerレスポンス型で返す。
func (a *AdminServiceAdapter) SetStatus(ctx context.Context, email, status string) (*userResponse, error) {
	return userResult(a.svc.SetStatus(ctx, email, status))
}

// SetFeatures はユーザーの付与機能を置き換えhandlerレスポンス型で返す。
func (a *AdminServiceAdapter) SetFeatures(ctx context.Context, email string, features []string) (*userResponse, error) {
	return userResult(a.svc.SetFeatures(ctx, email, features))
}

// ToggleFeature はユーザーの機能を1つ切り替えhandlerレスポンス型で返す。
func (a *AdminServiceAdapter) ToggleFeature(ctx context.Context, email, feature string, enabled bool) (*userResponse, error) {
	return userResult(a.svc.ToggleFeature(ctx, email, feature, enabled))
}

// SetRole はユーザーのロールを変更しhandlerレスポンス型で返す。
func (a *AdminServiceAdapter) SetRole(ctx context.Context, email, role string) (*userResponse, error) {
	return userResult(a.svc.SetRole(ctx, email, role))
}

// SetExpiry はユーザーのアクセス期限を変更しhandlerレスポンス型で返す。
func (a *AdminServiceAdapter) SetExpiry(ctx context.Context, email string, expiry *time.Time) (*userResponse, error) {
	return userResult(a.svc.SetExpiry(ctx, email, expiry))
}

// userResult はドメインの更新結果をhandlerのレスポンス型に変換する。
func userResult(u *model.User, err error) (*userResponse, error) {
	if err != nil {
		return nil, err
	}
	resp := toUserResponse(u)
	return &resp, nil
}

var _ AdminServiceInterface = (*AdminServiceAdapter)(nil)
