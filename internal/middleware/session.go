// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/fileteluss/internal/model"
)

// SessionCookieName はログイン資格情報トークンを保持するCookieの名前。
const SessionCookieName = "fileteluss_session"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	sessionContextKey     = contextKey("session")
	authSessionContextKey = contextKey("auth_session")
)

// SessionResolver はトークンから現在のセッションを解決する。
// auth.Serviceがこれを満たす。無効なトークンは (nil, nil, nil) を返す。
type SessionResolver interface {
	CurrentSession(ctx context.Context, token string) (*model.Session, *model.AuthSession, error)
}

// NewSessionMiddleware はHTTP Only Cookieから資格情報を読み取り、
// 最新のユーザーレコードから導出したSessionをリクエストコンテキストに注入するミドルウェアを返す。
// 未認証のリクエストもそのまま通過させる。拒否はRequireRoute/RequireFeatureが行う。
func NewSessionMiddleware(resolver SessionResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Cookieからトークンを取得
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			// 2. トークンを検証し、ユーザーレコードを再取得
			session, authSession, err := resolver.CurrentSession(r.Context(), cookie.Value)
			if err != nil {
				slog.Error("failed to resolve session",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if session == nil {
				next.ServeHTTP(w, r)
				return
			}

			// 3. セッションをコンテキストに注入
			annotateUserID(r.Context(), session.UserID)
			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), session, authSession)))
		})
	}
}

// SessionFromContext はリクエストコンテキストからSessionを取得する。
// 未認証の場合はnilを返す。
func SessionFromContext(ctx context.Context) *model.Session {
	s, _ := ctx.Value(sessionContextKey).(*model.Session)
	return s
}

// AuthSessionFromContext はリクエストコンテキストから永続化セッションを取得する。
func AuthSessionFromContext(ctx context.Context) *model.AuthSession {
	s, _ := ctx.Value(authSessionContextKey).(*model.AuthSession)
	return s
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 未認証の場合は空文字列を返す。
func UserIDFromContext(ctx context.Context) string {
	if s := SessionFromContext(ctx); s != nil {
		return s.UserID
	}
	return ""
}

// ContextWithSession はコンテキストにSessionを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, session *model.Session, authSession *model.AuthSession) context.Context {
	ctx = context.WithValue(ctx, sessionContextKey, session)
	if authSession != nil {
		ctx = context.WithValue(ctx, authSessionContextKey, authSession)
	}
	return ctx
}
