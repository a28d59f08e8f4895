package database

import (
	"context"
	"database/sql"
	"fmt"
)

// RequiredTables はダッシュボードの動作に必要なテーブル。
var RequiredTables = []string{
	"profiles",
	"youtube_channels",
	"videos",
	"comment_replies",
	"usage_stats",
	"subscription_events",
	"reply_templates",
}

// TableStatus はテーブルの存在確認結果。
type TableStatus struct {
	Table  string
	Exists bool
}

// CheckSchema は必須テーブルがpublicスキーマに存在するかを確認する。
// 1件でも欠けていても全テーブルの結果を返す。問い合わせ自体の失敗のみエラーとする。
func CheckSchema(ctx context.Context, db *sql.DB) ([]TableStatus, error) {
	statuses := make([]TableStatus, 0, len(RequiredTables))
	for _, table := range RequiredTables {
		var exists bool
		err := db.QueryRowContext(ctx,
			`SELECT EXISTS (
				SELECT FROM information_schema.tables
				WHERE table_schema = 'public' AND table_name = $1
			)`,
			table,
		).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("failed to check table %s: %w", table, err)
		}
		statuses = append(statuses, TableStatus{Table: table, Exists: exists})
	}
	return statuses, nil
}

// MissingTables はstatusesのうち存在しないテーブル名を返す。
func MissingTables(statuses []TableStatus) []string {
	var missing []string
	for _, st := range statuses {
		if !st.Exists {
			missing = append(missing, st.Table)
		}
	}
	return missing
}
