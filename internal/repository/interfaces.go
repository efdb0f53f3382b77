// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/sentinelx/internal/model"
)

// UserRepository はユーザープロフィールの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// Upsert はユーザープロフィールを冪等にUPSERTする。
	// 初回アクセス時のプロフィール確立と、表示名・通知先の更新に使用する。
	Upsert(ctx context.Context, user *model.User) error

	// ListWithMonitoredEmails は監視対象アドレスを1件以上持つ全ユーザーを、
	// アドレス一覧付きで返す。フルスキャンの走査単位。
	ListWithMonitoredEmails(ctx context.Context) ([]*model.UserWithEmails, error)
}

// UserEmailRepository はユーザーごとの監視対象アドレスの永続化インターフェース。
type UserEmailRepository interface {
	// ListByUserID はユーザーの監視対象アドレス一覧を登録順で返す。
	ListByUserID(ctx context.Context, userID string) ([]string, error)

	// Exists はユーザーが指定アドレスを監視しているかを返す。
	Exists(ctx context.Context, userID, email string) (bool, error)

	// Add は監視対象アドレスを追加する。重複はExistsで事前に検出する。
	Add(ctx context.Context, userID, email string) error

	// Delete は監視対象アドレスを削除する。削除対象が存在した場合trueを返す。
	Delete(ctx context.Context, userID, email string) (bool, error)

	// CountByEmail は指定アドレスを監視しているユーザー数を返す。
	// 0になった場合、呼び出し元はグローバル登録簿のエントリを非活性化する。
	CountByEmail(ctx context.Context, email string) (int, error)
}

// CheckCommitOutcome はチェック結果のコミット処理の結果を表す。
type CheckCommitOutcome struct {
	// Baseline は初回チェック（比較対象の履歴なし）であることを示す。
	Baseline bool
	// NewBreaches は前回チェック結果に存在しなかった漏洩レコード。
	NewBreaches []model.BreachRecord
	// Alert は台帳に書き込まれたマージ後アラート。書き込みがなかった場合はnil。
	Alert *model.Alert
}

// CheckRepository はチェック結果履歴とアラート台帳の永続化インターフェース。
type CheckRepository interface {
	// LatestByEmail は指定アドレスの最新チェック結果を取得する。
	// 履歴がない場合はnilを返す。
	LatestByEmail(ctx context.Context, email string) (*model.CheckResult, error)

	// ListByEmail は指定アドレスのチェック履歴を新しい順に最大limit件返す。
	ListByEmail(ctx context.Context, email string, limit int) ([]*model.CheckResult, error)

	// CommitCheck はチェック結果の記録、前回結果との差分判定、アラート台帳への
	// マージ書き込みを単一トランザクションで行う。同一アドレスに対する並行実行は
	// グローバル登録簿の行ロックで直列化される。
	CommitCheck(ctx context.Context, userID string, result *model.CheckResult) (*CheckCommitOutcome, error)

	// DeleteOlderThan は指定時刻より古いチェック履歴を削除し、削除件数を返す。
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// AlertRepository はアラート台帳の読み取り・削除インターフェース。
// 台帳への書き込みはCheckRepository.CommitCheckのトランザクション内でのみ行う。
type AlertRepository interface {
	// FindByUserAndEmail はユーザーと監視対象アドレスの組のアラートを取得する。
	// 見つからない場合はnilを返す。
	FindByUserAndEmail(ctx context.Context, userID, email string) (*model.Alert, error)

	// ListByUserID はユーザーの全アラートを検出日時の新しい順に返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Alert, error)

	// ExistsByEmail は指定アドレスに対するアラートが存在するかを返す。
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// DeleteByUserAndEmail はユーザーと監視対象アドレスの組のアラートを削除する。
	// 監視解除時のクリーンアップに使用する。
	DeleteByUserAndEmail(ctx context.Context, userID, email string) error
}

// MonitoredEmailRepository は監視対象アドレスのグローバル登録簿のインターフェース。
// 登録（UPSERT）はCheckRepository.CommitCheckのトランザクション内で行う。
type MonitoredEmailRepository interface {
	// FindByEmail は登録簿のエントリを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.MonitoredEmail, error)

	// Deactivate は登録簿のエントリを非活性化する。
	// 監視するユーザーがいなくなったアドレスに対して呼ばれる。
	Deactivate(ctx context.Context, email string) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
