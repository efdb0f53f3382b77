package middleware

import "net/http"

// corsAllowedMethods はAPIが受け付けるメソッド。PUT/PATCHは存在しない。
const corsAllowedMethods = "GET, POST, DELETE, OPTIONS"

// corsAllowedHeaders はBearerトークン認証に必要なヘッダーを含む。
const corsAllowedHeaders = "Content-Type, Authorization"

// NewCORSMiddleware は設定された単一オリジンを許可するCORSミドルウェアを返す。
// credentials送信と共存するため、ワイルドカード(*)は使用しない。
// プリフライトリクエストはここで終端し、204で応答する。
func NewCORSMiddleware(allowedOrigin string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := w.Header()
			header.Set("Access-Control-Allow-Origin", allowedOrigin)
			header.Set("Access-Control-Allow-Methods", corsAllowedMethods)
			header.Set("Access-Control-Allow-Headers", corsAllowedHeaders)
			header.Set("Access-Control-Allow-Credentials", "true")
			header.Set("Access-Control-Max-Age", "86400")
			header.Add("Vary", "Origin")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
