// Package admin は管理者によるユーザー管理のドメインロジックを提供する。
// 全操作は正規化したメールアドレスでユーザーを特定する。
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/fileteluss/internal/access"
	"github.com/hitoshi/fileteluss/internal/directory"
	"github.com/hitoshi/fileteluss/internal/model"
)

// SessionRevoker はユーザーのログインセッションを一括失効させるインターフェース。
type SessionRevoker interface {
	DeleteByUserID(ctx context.Context, userID string) error
}

// Stats は管理画面に表示するユーザー数の集計。
type Stats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// Service はユーザー管理のサービス層。
type Service struct {
	directory directory.Directory
	revoker   SessionRevoker
	logger    *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。revokerはnilでもよい。
func NewService(dir directory.Directory, revoker SessionRevoker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		directory: dir,
		revoker:   revoker,
		logger:    logger,
	}
}

// ListUsers は管理者以外のユーザーを登録順に返す。
func (s *Service) ListUsers(ctx context.Context) ([]*model.User, error) {
	users, err := s.directory.ListUsers(ctx, model.UserFilter{ExcludeAdmins: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// ComputeStats はユーザー一覧から承認状態ごとの件数を集計する。
func ComputeStats(users []*model.User) Stats {
	st := Stats{Total: len(users)}
	for _, u := range users {
		switch u.Status {
		case model.StatusPending:
			st.Pending++
		case model.StatusApproved:
			st.Approved++
		case model.StatusRejected:
			st.Rejected++
		}
	}
	return st
}

// findByEmail はメールアドレスでユーザーを取得する。見つからない場合はUSER_NOT_FOUNDを返す。
func (s *Service) findByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := s.directory.FindUserByEmail(ctx, model.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// update はpatchを適用し、更新後のユーザーを返す。
func (s *Service) update(ctx context.Context, user *model.User, patch model.UserPatch) (*model.User, error) {
	updated, err := s.directory.UpdateUserFields(ctx, user.ID, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	if updated == nil {
		return nil, model.NewUserNotFoundError()
	}
	return updated, nil
}

// SetStatus はユーザーの承認状態を変更する。
// approved以外になったユーザーのセッションは失効させる。
func (s *Service) SetStatus(ctx context.Context, email, status string) (*model.User, error) {
	next, err := model.ParseStatus(status)
	if err != nil {
		return nil, err
	}

	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !access.CanTransition(user.Status, next, access.ActorAdmin) {
		return nil, model.NewValidationError(fmt.Sprintf("Cannot change status from %s to %s", user.Status, next))
	}

	updated, err := s.update(ctx, user, model.UserPatch{Status: &next})
	if err != nil {
		return nil, err
	}

	if next != model.StatusApproved && s.revoker != nil {
		if err := s.revoker.DeleteByUserID(ctx, updated.ID); err != nil {
			return nil, fmt.Errorf("failed to revoke sessions: %w", err)
		}
	}

	s.logger.Info("user status changed",
		slog.String("user_id", updated.ID),
		slog.String("from", string(user.Status)),
		slog.String("to", string(next)),
	)
	return updated, nil
}

// SetFeatures はユーザーの機能付与を置き換える。カタログ外の機能はエラーとする。
func (s *Service) SetFeatures(ctx context.Context, email string, features []string) (*model.User, error) {
	parsed, err := model.ParseFeatures(features)
	if err != nil {
		return nil, err
	}

	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	updated, err := s.update(ctx, user, model.UserPatch{Features: &parsed})
	if err != nil {
		return nil, err
	}
	s.logger.Info("user features changed",
		slog.String("user_id", updated.ID),
		slog.Any("features", model.FeatureStrings(parsed)),
	)
	return updated, nil
}

// ToggleFeature は機能を1つ付与または剥奪する。
func (s *Service) ToggleFeature(ctx context.Context, email, feature string, enabled bool) (*model.User, error) {
	f, err := model.ParseFeature(feature)
	if err != nil {
		return nil, err
	}

	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	features := make([]model.Feature, 0, len(user.Features)+1)
	for _, existing := range user.Features {
		if existing != f {
			features = append(features, existing)
		}
	}
	if enabled {
		features = append(features, f)
	}
	return s.update(ctx, user, model.UserPatch{Features: &features})
}

// SetRole はユーザーのロールを変更する。
func (s *Service) SetRole(ctx context.Context, email, role string) (*model.User, error) {
	r, err := model.ParseRole(role)
	if err != nil {
		return nil, err
	}

	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	updated, err := s.update(ctx, user, model.UserPatch{Role: &r})
	if err != nil {
		return nil, err
	}
	s.logger.Info("user role changed",
		slog.String("user_id", updated.ID),
		slog.String("role", string(r)),
	)
	return updated, nil
}

// SetExpiry はユーザーのアクセス期限を設定する。expiryがnilの場合は期限を削除する。
func (s *Service) SetExpiry(ctx context.Context, email string, expiry *time.Time) (*model.User, error) {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	patch := model.UserPatch{ClearAccessExpiry: true}
	if expiry != nil {
		t := expiry.UTC()
		patch = model.UserPatch{AccessExpiry: &t}
	}
	return s.update(ctx, user, patch)
}

// GrantAdmin はユーザーを承認済みの管理者にする。初期管理者の作成に使用する。
func (s *Service) GrantAdmin(ctx context.Context, email string) (*model.User, error) {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	role := model.RoleAdmin
	status := model.StatusApproved
	updated, err := s.update(ctx, user, model.UserPatch{Role: &role, Status: &status})
	if err != nil {
		return nil, err
	}
	s.logger.Info("admin granted", slog.String("user_id", updated.ID))
	return updated, nil
}
