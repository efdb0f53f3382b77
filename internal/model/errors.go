// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, lookup, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidEmail       = "INVALID_EMAIL"
	ErrCodeEmailRequired      = "EMAIL_REQUIRED"
	ErrCodeDuplicateEmail     = "DUPLICATE_EMAIL"
	ErrCodeEmailNotMonitored  = "EMAIL_NOT_MONITORED"
	ErrCodeLookupFailed       = "LOOKUP_FAILED"
	ErrCodeLookupRateLimited  = "LOOKUP_RATE_LIMITED"
	ErrCodeLookupUnauthorized = "LOOKUP_UNAUTHORIZED"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeScanAlreadyRunning = "SCAN_ALREADY_RUNNING"
)

// NewInvalidEmailError は不正なメールアドレス形式のエラーを生成する。
func NewInvalidEmailError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEmail,
		Message:  fmt.Sprintf("メールアドレスの形式が不正です: %s", email),
		Category: "validation",
		Action:   "正しい形式のメールアドレスを入力してください。",
	}
}

// NewEmailRequiredError はメールアドレス未指定のエラーを生成する。
func NewEmailRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailRequired,
		Message:  "メールアドレスが指定されていません。",
		Category: "validation",
		Action:   "監視対象のメールアドレスを指定してください。",
	}
}

// NewDuplicateEmailError は既に監視中のアドレスを再登録しようとした場合のエラーを生成する。
func NewDuplicateEmailError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEmail,
		Message:  fmt.Sprintf("このメールアドレスは既に監視対象です: %s", email),
		Category: "validation",
		Action:   "監視対象一覧から該当アドレスを確認してください。",
	}
}

// NewEmailNotMonitoredError は監視対象に存在しないアドレスを指定した場合のエラーを生成する。
func NewEmailNotMonitoredError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeEmailNotMonitored,
		Message:  fmt.Sprintf("このメールアドレスは監視対象に登録されていません: %s", email),
		Category: "validation",
		Action:   "監視対象一覧を確認してください。",
	}
}

// NewLookupFailedError は漏洩検索サービスの呼び出し失敗エラーを生成する。
func NewLookupFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeLookupFailed,
		Message:  fmt.Sprintf("漏洩データの検索に失敗しました: %s", reason),
		Category: "lookup",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewLookupRateLimitedError は漏洩検索サービスのレート制限エラーを生成する。
func NewLookupRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeLookupRateLimited,
		Message:  "漏洩データの検索がレート制限されました。",
		Category: "lookup",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewLookupUnauthorizedError はAPIキー無効のエラーを生成する。
// アドレス単位ではなくシステム全体の問題を示す。
func NewLookupUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeLookupUnauthorized,
		Message:  "漏洩検索サービスのAPIキーが無効です。",
		Category: "system",
		Action:   "HIBP_API_KEYの設定を確認してください。",
	}
}

// NewScanAlreadyRunningError はフルスキャンの多重起動エラーを生成する。
func NewScanAlreadyRunningError() *APIError {
	return &APIError{
		Code:     ErrCodeScanAlreadyRunning,
		Message:  "フルスキャンは既に実行中です。",
		Category: "system",
		Action:   "実行中のスキャンの完了を待ってください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}
