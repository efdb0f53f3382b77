package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/sentinelx/internal/alert"
	"github.com/hitoshi/sentinelx/internal/model"
)

// PostgresCheckRepo はPostgreSQLを使用したチェック履歴リポジトリ。
// アラート台帳への書き込みはCommitCheckのトランザクション内でのみ行う。
type PostgresCheckRepo struct {
	db *sql.DB
}

// NewPostgresCheckRepo はPostgresCheckRepoを生成する。
func NewPostgresCheckRepo(db *sql.DB) *PostgresCheckRepo {
	return &PostgresCheckRepo{db: db}
}

// LatestByEmail は指定アドレスの最新チェック結果を取得する。履歴がない場合はnilを返す。
func (r *PostgresCheckRepo) LatestByEmail(ctx context.Context, email string) (*model.CheckResult, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT payload_json FROM checks
		 WHERE email = $1
		 ORDER BY checked_at DESC
		 LIMIT 1`,
		email,
	).Scan(&payload)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("最新チェック結果の取得に失敗しました: %w", err)
	}

	result := &model.CheckResult{}
	if err := json.Unmarshal(payload, result); err != nil {
		return nil, fmt.Errorf("チェック結果のパースに失敗しました: %w", err)
	}
	return result, nil
}

// ListByEmail は指定アドレスのチェック履歴を新しい順に最大limit件返す。
func (r *PostgresCheckRepo) ListByEmail(ctx context.Context, email string, limit int) ([]*model.CheckResult, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT payload_json FROM checks
		 WHERE email = $1
		 ORDER BY checked_at DESC
		 LIMIT $2`,
		email, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("チェック履歴の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var results []*model.CheckResult
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("チェック履歴の読み取りに失敗しました: %w", err)
		}
		result := &model.CheckResult{}
		if err := json.Unmarshal(payload, result); err != nil {
			return nil, fmt.Errorf("チェック結果のパースに失敗しました: %w", err)
		}
		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("チェック履歴の走査に失敗しました: %w", err)
	}

	return results, nil
}

// CommitCheck はチェック結果の記録、前回結果との差分判定、アラート台帳への
// マージ書き込みを単一トランザクションで行う。
// 最初にグローバル登録簿の行をUPSERTして行ロックを取得するため、
// 同一アドレスに対する並行コミットはアドレス単位で直列化される。
func (r *PostgresCheckRepo) CommitCheck(ctx context.Context, userID string, result *model.CheckResult) (*CheckCommitOutcome, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	// グローバル登録簿へのUPSERT。この行ロックがアドレス単位の直列化点となる。
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO monitored_emails (email, active, created_at)
		 VALUES ($1, true, now())
		 ON CONFLICT (email) DO UPDATE SET active = true`,
		result.Email,
	); err != nil {
		return nil, fmt.Errorf("グローバル登録簿のUPSERTに失敗しました: %w", err)
	}

	// 新しい行を挿入する前に、比較対象となる前回結果を読む
	previous, err := latestByEmailTx(ctx, tx, result.Email)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("チェック結果のシリアライズに失敗しました: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO checks (id, email, checked_at, breach_count, risk_score, risk_category, payload_json)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New().String(), result.Email, result.CheckedAt,
		result.BreachCount, result.RiskScore, result.RiskCategory, payload,
	); err != nil {
		return nil, fmt.Errorf("チェック結果の記録に失敗しました: %w", err)
	}

	outcome := &CheckCommitOutcome{}

	if previous == nil {
		// 初回チェックはベースライン確立。アラート対象にはならない。
		outcome.Baseline = true
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
		}
		return outcome, nil
	}

	outcome.NewBreaches = alert.DiffNewBreaches(previous.Breaches, result.Breaches)
	if len(outcome.NewBreaches) > 0 {
		existing, err := findAlertForUpdateTx(ctx, tx, userID, result.Email)
		if err != nil {
			return nil, err
		}

		merged := alert.Merge(existing, userID, result.Email, outcome.NewBreaches, result.RiskCategory, result.CheckedAt)
		if merged != nil {
			if err := upsertAlertTx(ctx, tx, merged); err != nil {
				return nil, err
			}
			outcome.Alert = merged
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return outcome, nil
}

// DeleteOlderThan は指定時刻より古いチェック履歴を削除し、削除件数を返す。
func (r *PostgresCheckRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM checks WHERE checked_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("チェック履歴の削除に失敗しました: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return deleted, nil
}

// latestByEmailTx はトランザクション内で最新チェック結果を取得する。
func latestByEmailTx(ctx context.Context, tx *sql.Tx, email string) (*model.CheckResult, error) {
	var payload []byte
	err := tx.QueryRowContext(ctx,
		`SELECT payload_json FROM checks
		 WHERE email = $1
		 ORDER BY checked_at DESC
		 LIMIT 1`,
		email,
	).Scan(&payload)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("前回チェック結果の取得に失敗しました: %w", err)
	}

	result := &model.CheckResult{}
	if err := json.Unmarshal(payload, result); err != nil {
		return nil, fmt.Errorf("前回チェック結果のパースに失敗しました: %w", err)
	}
	return result, nil
}

// findAlertForUpdateTx はトランザクション内で既存アラートを排他取得する。
func findAlertForUpdateTx(ctx context.Context, tx *sql.Tx, userID, email string) (*model.Alert, error) {
	a := &model.Alert{}
	var breachesJSON []byte

	err := tx.QueryRowContext(ctx,
		`SELECT id, user_id, monitored_email, breach_count, breaches_json,
		        severity, risk_score, detected_at
		 FROM alerts
		 WHERE user_id = $1 AND monitored_email = $2
		 FOR UPDATE`,
		userID, email,
	).Scan(
		&a.ID, &a.UserID, &a.MonitoredEmail, &a.BreachCount, &breachesJSON,
		&a.Severity, &a.RiskScore, &a.DetectedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("既存アラートの取得に失敗しました: %w", err)
	}

	if err := json.Unmarshal(breachesJSON, &a.Breaches); err != nil {
		return nil, fmt.Errorf("アラートの漏洩一覧のパースに失敗しました: %w", err)
	}
	return a, nil
}

// upsertAlertTx はトランザクション内でマージ後アラートを書き込む。
// マージは新しい値で置き換える形で行い、部分更新はしない。
func upsertAlertTx(ctx context.Context, tx *sql.Tx, a *model.Alert) error {
	breachesJSON, err := json.Marshal(a.Breaches)
	if err != nil {
		return fmt.Errorf("アラートの漏洩一覧のシリアライズに失敗しました: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO alerts (id, user_id, monitored_email, breach_count, breaches_json,
		                     severity, risk_score, detected_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		 ON CONFLICT (user_id, monitored_email) DO UPDATE SET
		    breach_count = EXCLUDED.breach_count,
		    breaches_json = EXCLUDED.breaches_json,
		    severity = EXCLUDED.severity,
		    risk_score = EXCLUDED.risk_score,
		    detected_at = EXCLUDED.detected_at`,
		a.ID, a.UserID, a.MonitoredEmail, a.BreachCount, breachesJSON,
		a.Severity, a.RiskScore, a.DetectedAt,
	); err != nil {
		return fmt.Errorf("アラートの書き込みに失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ CheckRepository = (*PostgresCheckRepo)(nil)
