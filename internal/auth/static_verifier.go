// Package auth はAPIトークンの検証を提供する。
package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/hitoshi/sentinelx/internal/middleware"
)

// StaticTokenVerifier は環境変数で設定された固定トークンを検証するTokenVerifier実装。
// セルフホスト運用向け。外部IDプロバイダを使う場合はTokenVerifierを差し替える。
type StaticTokenVerifier struct {
	identities map[string]*middleware.Identity
}

// NewStaticTokenVerifier は設定文字列からStaticTokenVerifierを生成する。
// 設定は "トークン:ユーザーID:通知先アドレス[:表示名]" のカンマ区切り。
// 空の設定は有効（すべてのリクエストを拒否する）。
func NewStaticTokenVerifier(config string) (*StaticTokenVerifier, error) {
	identities := make(map[string]*middleware.Identity)

	for _, entry := range strings.Split(config, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.SplitN(entry, ":", 4)
		if len(parts) < 3 {
			return nil, fmt.Errorf("トークン設定の形式が不正です（token:user_id:email[:display_name]）: %q", entry)
		}

		identity := &middleware.Identity{
			UserID: parts[1],
			Email:  parts[2],
		}
		if len(parts) == 4 {
			identity.DisplayName = parts[3]
		}
		identities[parts[0]] = identity
	}

	return &StaticTokenVerifier{identities: identities}, nil
}

// Verify はトークンを検証し、対応するIDを返す。
func (v *StaticTokenVerifier) Verify(ctx context.Context, token string) (*middleware.Identity, error) {
	identity, ok := v.identities[token]
	if !ok {
		return nil, fmt.Errorf("無効なトークンです")
	}
	// 呼び出し元が書き換えてもマップ内の値に影響しないようコピーを返す
	copied := *identity
	return &copied, nil
}

var _ middleware.TokenVerifier = (*StaticTokenVerifier)(nil)
