package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// PostgresUserEmailRepo はPostgreSQLを使用した監視対象アドレスリポジトリ。
type PostgresUserEmailRepo struct {
	db *sql.DB
}

// NewPostgresUserEmailRepo はPostgresUserEmailRepoを生成する。
func NewPostgresUserEmailRepo(db *sql.DB) *PostgresUserEmailRepo {
	return &PostgresUserEmailRepo{db: db}
}

// ListByUserID はユーザーの監視対象アドレス一覧を登録順で返す。
func (r *PostgresUserEmailRepo) ListByUserID(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT email FROM user_emails WHERE user_id = $1 ORDER BY created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("監視対象アドレス一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("監視対象アドレスの読み取りに失敗しました: %w", err)
		}
		emails = append(emails, email)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("監視対象アドレスの走査に失敗しました: %w", err)
	}

	return emails, nil
}

// Exists はユーザーが指定アドレスを監視しているかを返す。
func (r *PostgresUserEmailRepo) Exists(ctx context.Context, userID, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM user_emails WHERE user_id = $1 AND email = $2)`,
		userID, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("監視対象アドレスの存在確認に失敗しました: %w", err)
	}
	return exists, nil
}

// Add は監視対象アドレスを追加する。
func (r *PostgresUserEmailRepo) Add(ctx context.Context, userID, email string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_emails (id, user_id, email, created_at)
		 VALUES ($1, $2, $3, now())`,
		uuid.New().String(), userID, email,
	)
	if err != nil {
		return fmt.Errorf("監視対象アドレスの追加に失敗しました: %w", err)
	}
	return nil
}

// Delete は監視対象アドレスを削除する。削除対象が存在した場合trueを返す。
func (r *PostgresUserEmailRepo) Delete(ctx context.Context, userID, email string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM user_emails WHERE user_id = $1 AND email = $2`,
		userID, email,
	)
	if err != nil {
		return false, fmt.Errorf("監視対象アドレスの削除に失敗しました: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return affected > 0, nil
}

// CountByEmail は指定アドレスを監視しているユーザー数を返す。
func (r *PostgresUserEmailRepo) CountByEmail(ctx context.Context, email string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_emails WHERE email = $1`,
		email,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("監視ユーザー数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ UserEmailRepository = (*PostgresUserEmailRepo)(nil)
