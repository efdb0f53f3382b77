package middleware

import "net/http"

// apiSecurityHeaders はJSON APIのレスポンスに常に付与するヘッダー。
// 漏洩チェック結果を含むレスポンスは中間キャッシュに残さない。
var apiSecurityHeaders = map[string]string{
	"X-Content-Type-Options":  "nosniff",
	"X-Frame-Options":         "DENY",
	"Referrer-Policy":         "strict-origin-when-cross-origin",
	"Content-Security-Policy": "default-src 'none'",
	"Cache-Control":           "no-store",
}

// NewSecurityHeadersMiddleware は全レスポンスにセキュリティヘッダーを付与するミドルウェアを返す。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := w.Header()
			for name, value := range apiSecurityHeaders {
				header.Set(name, value)
			}
			next.ServeHTTP(w, r)
		})
	}
}
