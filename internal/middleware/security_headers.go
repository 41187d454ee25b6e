package middleware

import (
	"net/http"
	"strings"
)

// YouTubeEmbedOrigin は動画ライブラリの埋め込みプレイヤーのオリジン。
const YouTubeEmbedOrigin = "https://www.youtube.com"

// NewSecurityHeadersMiddleware はセキュリティ関連のHTTPレスポンスヘッダーを付与するミドルウェアを返す。
// frameOriginsはContent-Security-Policyのframe-srcに追加で許可する埋め込み元（ポートフォリオなど）。
func NewSecurityHeadersMiddleware(frameOrigins ...string) func(next http.Handler) http.Handler {
	frames := []string{"'self'", YouTubeEmbedOrigin}
	for _, o := range frameOrigins {
		if o = strings.TrimSpace(o); o != "" {
			frames = append(frames, o)
		}
	}
	csp := "default-src 'self'; frame-src " + strings.Join(frames, " ") +
		"; media-src 'self' blob: https:; img-src 'self' data: https:; frame-ancestors 'none'"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			w.Header().Set("Content-Security-Policy", csp)
			next.ServeHTTP(w, r)
		})
	}
}
