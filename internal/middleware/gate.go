package middleware

import (
	"net/http"
	"time"

	"github.com/hitoshi/fileteluss/internal/access"
	"github.com/hitoshi/fileteluss/internal/metrics"
	"github.com/hitoshi/fileteluss/internal/model"
)

// リダイレクト先のクライアントルート
const (
	loginPath = "/login"
	homePath  = "/"
)

// GateConfig はアクセス判定ミドルウェアの依存関係。
type GateConfig struct {
	Now     func() time.Time
	Metrics metrics.MetricsCollector
}

func (c GateConfig) normalize() GateConfig {
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Metrics == nil {
		c.Metrics = metrics.NopCollector{}
	}
	return c
}

// RequireRoute は保護ルートの判定を行うミドルウェアを返す。
// RedirectLoginは401、RedirectHomeは403で応答し、クライアントの遷移先をredirectに含める。
func RequireRoute(requireAdmin bool, config GateConfig) func(next http.Handler) http.Handler {
	config = config.normalize()
	scope := "route"
	if requireAdmin {
		scope = "admin_route"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := access.CanAccessRoute(SessionFromContext(r.Context()), requireAdmin, config.Now())
			config.Metrics.RecordAccessDecision(scope, decision.String())

			switch decision {
			case access.Allow:
				next.ServeHTTP(w, r)
			case access.RedirectHome:
				WriteRedirectResponse(w, http.StatusForbidden, model.NewAdminRequiredError(), homePath)
			default:
				WriteRedirectResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError(), loginPath)
			}
		})
	}
}

// RequireFeature は機能単位のアクセス判定を行うミドルウェアを返す。
// RequireRouteの後に配置する。判定はリクエストごとに現在時刻で評価する。
func RequireFeature(feature model.Feature, config GateConfig) func(next http.Handler) http.Handler {
	config = config.normalize()
	scope := "feature:" + string(feature)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := SessionFromContext(r.Context())
			if session == nil {
				config.Metrics.RecordAccessDecision(scope, access.RedirectLogin.String())
				WriteRedirectResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError(), loginPath)
				return
			}

			switch access.FeatureDenial(sessionUser(session), feature, config.Now()) {
			case "":
				config.Metrics.RecordAccessDecision(scope, access.Allow.String())
				next.ServeHTTP(w, r)
			case model.ErrCodeAccessExpired:
				config.Metrics.RecordAccessDecision(scope, "expired")
				WriteErrorResponse(w, http.StatusForbidden, model.NewAccessExpiredError())
			case model.ErrCodeUnauthorized:
				config.Metrics.RecordAccessDecision(scope, access.RedirectLogin.String())
				WriteRedirectResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError(), loginPath)
			default:
				config.Metrics.RecordAccessDecision(scope, "denied")
				WriteErrorResponse(w, http.StatusForbidden, model.NewFeatureDeniedError(feature))
			}
		})
	}
}

// RequireAdmin は管理者ロールを要求するミドルウェアを返す。
// 機能ゲート配下の一部の操作（動画カタログの変更など）に使用する。
func RequireAdmin(config GateConfig) func(next http.Handler) http.Handler {
	config = config.normalize()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := SessionFromContext(r.Context())
			if session == nil || session.Role != model.RoleAdmin {
				config.Metrics.RecordAccessDecision("admin_action", "denied")
				WriteErrorResponse(w, http.StatusForbidden, model.NewAdminRequiredError())
				return
			}
			config.Metrics.RecordAccessDecision("admin_action", access.Allow.String())
			next.ServeHTTP(w, r)
		})
	}
}

// sessionUser はアクセス判定のためにSessionをUserとして扱う。
func sessionUser(s *model.Session) *model.User {
	return &model.User{
		ID:           s.UserID,
		Name:         s.Name,
		Email:        s.Email,
		Role:         s.Role,
		Status:       s.Status,
		Features:     s.Features,
		AccessExpiry: s.AccessExpiry,
	}
}
