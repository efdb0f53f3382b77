package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/sentinelx/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	var displayName sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, created_at, updated_at
		 FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.Email, &displayName, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}

	user.DisplayName = nullStringValue(displayName)
	return user, nil
}

// Upsert はユーザープロフィールを冪等にUPSERTする。
func (r *PostgresUserRepo) Upsert(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, display_name, created_at, updated_at)
		 VALUES ($1, $2, $3, now(), now())
		 ON CONFLICT (id) DO UPDATE SET
		    email = EXCLUDED.email,
		    display_name = EXCLUDED.display_name,
		    updated_at = now()`,
		user.ID, user.Email, user.DisplayName,
	)
	if err != nil {
		return fmt.Errorf("ユーザーのUPSERTに失敗しました: %w", err)
	}
	return nil
}

// ListWithMonitoredEmails は監視対象アドレスを1件以上持つ全ユーザーを返す。
func (r *PostgresUserRepo) ListWithMonitoredEmails(ctx context.Context) ([]*model.UserWithEmails, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT u.id, u.email, u.display_name, u.created_at, u.updated_at, ue.email
		 FROM users u
		 INNER JOIN user_emails ue ON u.id = ue.user_id
		 ORDER BY u.id, ue.created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("スキャン対象ユーザーの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var users []*model.UserWithEmails
	var current *model.UserWithEmails
	for rows.Next() {
		var u model.User
		var displayName sql.NullString
		var monitoredEmail string

		if err := rows.Scan(&u.ID, &u.Email, &displayName, &u.CreatedAt, &u.UpdatedAt, &monitoredEmail); err != nil {
			return nil, fmt.Errorf("スキャン対象ユーザーの読み取りに失敗しました: %w", err)
		}
		u.DisplayName = nullStringValue(displayName)

		if current == nil || current.ID != u.ID {
			current = &model.UserWithEmails{User: u}
			users = append(users, current)
		}
		current.MonitoredEmails = append(current.MonitoredEmails, monitoredEmail)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("スキャン対象ユーザーの走査に失敗しました: %w", err)
	}

	return users, nil
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
