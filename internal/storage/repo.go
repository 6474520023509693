package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

var ErrNotFound = errors.New("not found")

func (s *Store) UpsertProviderKey(ctx context.Context, k ProviderKey) error {
	q := s.sql.Insert("provider_keys").
		Columns("workspace_id", "provider", "enc_key", "updated_at").
		Values(k.WorkspaceID, k.Provider, k.EncKey, nowExpr(s.driver)).
		Suffix("ON CONFLICT(workspace_id, provider) DO UPDATE SET enc_key=excluded.enc_key, updated_at=excluded.updated_at")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build provider key upsert query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("upsert provider key: %w", err)
	}
	return nil
}

func (s *Store) GetProviderKey(ctx context.Context, workspaceID, provider string) (ProviderKey, error) {
	q := s.sql.Select("workspace_id", "provider", "enc_key", "updated_at").
		From("provider_keys").
		Where(sq.Eq{"workspace_id": workspaceID, "provider": provider})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return ProviderKey{}, fmt.Errorf("build provider key query: %w", err)
	}

	var k ProviderKey
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&k.WorkspaceID, &k.Provider, &k.EncKey, &k.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ProviderKey{}, ErrNotFound
		}
		return ProviderKey{}, fmt.Errorf("get provider key: %w", err)
	}
	return k, nil
}

// ListProviderKeys lists keys of one workspace, or of all workspaces when
// workspaceID is empty.
func (s *Store) ListProviderKeys(ctx context.Context, workspaceID string) ([]ProviderKey, error) {
	q := s.sql.Select("workspace_id", "provider", "enc_key", "updated_at").
		From("provider_keys").
		OrderBy("workspace_id ASC", "provider ASC")
	if workspaceID != "" {
		q = q.Where(sq.Eq{"workspace_id": workspaceID})
	}
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list provider keys query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list provider keys: %w", err)
	}
	defer rows.Close()

	out := make([]ProviderKey, 0)
	for rows.Next() {
		var k ProviderKey
		if err := rows.Scan(&k.WorkspaceID, &k.Provider, &k.EncKey, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan provider key: %w", err)
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate provider keys: %w", err)
	}
	return out, nil
}

func (s *Store) DeleteProviderKey(ctx context.Context, workspaceID, provider string) error {
	q := s.sql.Delete("provider_keys").Where(sq.Eq{"workspace_id": workspaceID, "provider": provider})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete provider key query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("delete provider key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ResealProviderKeys passes every stored envelope through reseal and writes
// back the ones it changed. It returns the number of rewritten rows.
func (s *Store) ResealProviderKeys(ctx context.Context, reseal func(string) (string, bool, error)) (int, error) {
	keys, err := s.ListProviderKeys(ctx, "")
	if err != nil {
		return 0, err
	}
	n := 0
	for _, k := range keys {
		out, changed, err := reseal(k.EncKey)
		if err != nil {
			return n, fmt.Errorf("reseal %s/%s: %w", k.WorkspaceID, k.Provider, err)
		}
		if !changed {
			continue
		}
		k.EncKey = out
		if err := s.UpsertProviderKey(ctx, k); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (s *Store) UpsertFeatureSettings(ctx context.Context, f FeatureSettings) error {
	q := s.sql.Insert("feature_settings").
		Columns("workspace_id", "feature", "model", "max_tokens", "prompt", "updated_at").
		Values(f.WorkspaceID, f.Feature, f.Model, f.MaxTokens, f.Prompt, nowExpr(s.driver)).
		Suffix("ON CONFLICT(workspace_id, feature) DO UPDATE SET model=excluded.model, max_tokens=excluded.max_tokens, prompt=excluded.prompt, updated_at=excluded.updated_at")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build feature settings upsert query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("upsert feature settings: %w", err)
	}
	return nil
}

func (s *Store) GetFeatureSettings(ctx context.Context, workspaceID, feature string) (FeatureSettings, error) {
	q := s.sql.Select("workspace_id", "feature", "model", "max_tokens", "prompt", "updated_at").
		From("feature_settings").
		Where(sq.Eq{"workspace_id": workspaceID, "feature": feature})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return FeatureSettings{}, fmt.Errorf("build feature settings query: %w", err)
	}

	var f FeatureSettings
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(
		&f.WorkspaceID,
		&f.Feature,
		&f.Model,
		&f.MaxTokens,
		&f.Prompt,
		&f.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return FeatureSettings{}, ErrNotFound
		}
		return FeatureSettings{}, fmt.Errorf("get feature settings: %w", err)
	}
	return f, nil
}

func (s *Store) ListFeatureSettings(ctx context.Context, workspaceID string) ([]FeatureSettings, error) {
	q := s.sql.Select("workspace_id", "feature", "model", "max_tokens", "prompt", "updated_at").
		From("feature_settings").
		Where(sq.Eq{"workspace_id": workspaceID}).
		OrderBy("feature ASC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list feature settings query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list feature settings: %w", err)
	}
	defer rows.Close()

	out := make([]FeatureSettings, 0)
	for rows.Next() {
		var f FeatureSettings
		if err := rows.Scan(&f.WorkspaceID, &f.Feature, &f.Model, &f.MaxTokens, &f.Prompt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan feature settings: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feature settings: %w", err)
	}
	return out, nil
}

func (s *Store) AppendActivity(ctx context.Context, e ActivityEntry) error {
	q := s.sql.Insert("activity_log").
		Columns("workspace_id", "message", "severity").
		Values(e.WorkspaceID, e.Message, e.Severity)
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build activity insert query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("insert activity entry: %w", err)
	}
	return nil
}

// ListActivity returns the newest entries first.
func (s *Store) ListActivity(ctx context.Context, workspaceID string, limit uint64) ([]ActivityEntry, error) {
	q := s.sql.Select("id", "workspace_id", "message", "severity", "created_at").
		From("activity_log").
		Where(sq.Eq{"workspace_id": workspaceID}).
		OrderBy("id DESC").
		Limit(limit)
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list activity query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	out := make([]ActivityEntry, 0)
	for rows.Next() {
		var e ActivityEntry
		if err := rows.Scan(&e.ID, &e.WorkspaceID, &e.Message, &e.Severity, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity: %w", err)
	}
	return out, nil
}

func nowExpr(driver string) any {
	if driver == "postgres" {
		return sq.Expr("NOW()")
	}
	return sq.Expr("CURRENT_TIMESTAMP")
}
