// Package access はユーザーレコードとセッションに対するアクセス可否の判定を提供する。
// すべての関数は副作用を持たず、現在時刻は呼び出し側から渡す。
package access

import (
	"time"

	"github.com/hitoshi/fileteluss/internal/model"
)

// Decision はルートへのアクセス判定結果を表す。
type Decision int

const (
	// Allow はアクセスを許可する。
	Allow Decision = iota
	// RedirectLogin はログイン画面へ誘導する。
	RedirectLogin
	// RedirectHome はホーム画面へ誘導する。
	RedirectHome
)

// String はDecisionの文字列表現を返す。メトリクスのラベルにも使用する。
func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case RedirectHome:
		return "redirect_home"
	default:
		return "unknown"
	}
}

// IsApproved はユーザーが承認済みかを返す。
func IsApproved(u *model.User) bool {
	return u != nil && u.Status == model.StatusApproved
}

// IsAdmin はユーザーが管理者かを返す。
func IsAdmin(u *model.User) bool {
	return u != nil && u.Role == model.RoleAdmin
}

// IsExpired はアクセス期限が設定されていて、かつnowがそれを過ぎているかを返す。
// 期限のないレコードは期限切れにならない。
func IsExpired(u *model.User, now time.Time) bool {
	if u == nil || u.AccessExpiry == nil {
		return false
	}
	return now.After(*u.AccessExpiry)
}

// AccessibleFeatures はユーザーが利用できる機能の一覧を返す。
// 管理者は機能カタログ全体、それ以外は付与された機能のみ。
func AccessibleFeatures(u *model.User) []model.Feature {
	if IsAdmin(u) {
		out := make([]model.Feature, len(model.FeatureCatalog))
		copy(out, model.FeatureCatalog)
		return out
	}
	if u == nil || u.Features == nil {
		return []model.Feature{}
	}
	out := make([]model.Feature, len(u.Features))
	copy(out, u.Features)
	return out
}

// CanAccessFeature はユーザーが指定機能を利用できるかを判定する。
//
// 判定順序:
//   - 未承認 → false（管理者も例外ではない）
//   - 期限切れかつ非管理者 → false
//   - 管理者 → true
//   - それ以外 → 付与機能に含まれるか
func CanAccessFeature(u *model.User, feature model.Feature, now time.Time) bool {
	if !IsApproved(u) {
		return false
	}
	if IsExpired(u, now) && !IsAdmin(u) {
		return false
	}
	if IsAdmin(u) {
		return true
	}
	for _, f := range AccessibleFeatures(u) {
		if f == feature {
			return true
		}
	}
	return false
}

// CanAccessRoute は保護ルートへのアクセス判定を行う。
// 機能制限付きのルートは、この判定に加えてCanAccessFeatureを適用する。
// 利用期限はルート単位では判定せず、期限切れのユーザーもホームには到達できる。
func CanAccessRoute(s *model.Session, requireAdmin bool, now time.Time) Decision {
	if s == nil {
		return RedirectLogin
	}
	if s.Status != model.StatusApproved {
		return RedirectLogin
	}
	if requireAdmin && s.Role != model.RoleAdmin {
		return RedirectHome
	}
	return Allow
}

// FeatureDenial は機能アクセスが拒否された理由を返す。
// 許可される場合は空文字列を返す。
func FeatureDenial(u *model.User, feature model.Feature, now time.Time) string {
	switch {
	case CanAccessFeature(u, feature, now):
		return ""
	case !IsApproved(u):
		return model.ErrCodeUnauthorized
	case IsExpired(u, now) && !IsAdmin(u):
		return model.ErrCodeAccessExpired
	default:
		return model.ErrCodeFeatureDenied
	}
}

// Actor は承認状態を変更しようとする主体を表す。
type Actor int

const (
	// ActorSelf は本人による操作。
	ActorSelf Actor = iota
	// ActorAdmin は管理者による操作。
	ActorAdmin
)

// CanTransition は承認状態の遷移が許可されるかを返す。
// 状態遷移は管理者操作でのみ発生し、pendingへ戻す操作は行わない。
func CanTransition(from, to model.Status, actor Actor) bool {
	if actor != ActorAdmin {
		return false
	}
	if from == to {
		return true
	}
	switch to {
	case model.StatusApproved, model.StatusRejected:
		return true
	default:
		return false
	}
}
