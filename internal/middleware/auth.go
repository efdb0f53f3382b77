// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey はリクエストコンテキストに認証情報を格納するためのキー。
var identityContextKey = contextKey("identity")

// Identity は外部IDプロバイダが検証した認証済みユーザーの情報。
type Identity struct {
	UserID      string
	Email       string
	DisplayName string
}

// TokenVerifier はIDトークンの検証インターフェース。
// 検証の実体は外部IDプロバイダのSDKに委ねる。
type TokenVerifier interface {
	// Verify はトークンを検証し、認証済みユーザーの情報を返す。
	Verify(ctx context.Context, token string) (*Identity, error)
}

// ProfileEnsurer は認証済みユーザーのプロフィール行を保証するインターフェース。
// 最初のリクエストがどのエンドポイントであってもプロフィールが存在する状態にする。
type ProfileEnsurer interface {
	EnsureProfile(ctx context.Context, userID, email, displayName string) error
}

// NewAuthMiddleware はAuthorizationヘッダのBearerトークンを検証し、
// 認証済みユーザーの情報をリクエストコンテキストに注入するミドルウェアを返す。
// 検証に成功した場合はensurerでプロフィール行の存在を保証する。
// 未認証リクエストには401 Unauthorizedを返す。
func NewAuthMiddleware(verifier TokenVerifier, ensurer ProfileEnsurer) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			identity, err := verifier.Verify(r.Context(), token)
			if err != nil {
				slog.Warn("トークンの検証に失敗しました",
					slog.String("error", err.Error()),
				)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			if ensurer != nil {
				if err := ensurer.EnsureProfile(r.Context(), identity.UserID, identity.Email, identity.DisplayName); err != nil {
					slog.Error("プロフィールの保証に失敗しました",
						slog.String("user_id", identity.UserID),
						slog.String("error", err.Error()),
					)
					WriteInternalServerError(w)
					return
				}
			}

			ctx := context.WithValue(r.Context(), identityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken はAuthorizationヘッダからBearerトークンを取り出す。
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// IdentityFromContext はリクエストコンテキストから認証情報を取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func IdentityFromContext(ctx context.Context) (*Identity, error) {
	identity, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok || identity == nil {
		return nil, fmt.Errorf("認証情報がコンテキストにありません")
	}
	return identity, nil
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	identity, err := IdentityFromContext(ctx)
	if err != nil {
		return "", err
	}
	return identity.UserID, nil
}

// ContextWithIdentity はコンテキストに認証情報を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}
