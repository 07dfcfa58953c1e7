package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"astra/internal/astro"
	"astra/internal/storage"
)

// SaveUser upserts the user's record. An existing record keeps its
// CreatedAt; everything else is replaced.
func (s *Store) SaveUser(ctx context.Context, rec storage.UserRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	userID := strings.TrimSpace(rec.UserID)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	if rec.BirthDate.IsZero() {
		return fmt.Errorf("birth date is required")
	}

	now := toMillis(s.now())
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO users (
		   user_id, birth_day, birth_month, birth_year,
		   zodiac_sign, life_path, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   birth_day   = excluded.birth_day,
		   birth_month = excluded.birth_month,
		   birth_year  = excluded.birth_year,
		   zodiac_sign = excluded.zodiac_sign,
		   life_path   = excluded.life_path,
		   updated_at  = excluded.updated_at`,
		userID,
		rec.BirthDate.Day(),
		rec.BirthDate.Month(),
		rec.BirthDate.Year(),
		string(rec.Sign),
		rec.LifePath,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// GetUser returns the user's record, or storage.ErrNotFound.
func (s *Store) GetUser(ctx context.Context, userID string) (storage.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.UserRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.UserRecord{}, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return storage.UserRecord{}, fmt.Errorf("user id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT user_id, birth_day, birth_month, birth_year,
		        zodiac_sign, life_path, created_at, updated_at
		   FROM users
		  WHERE user_id = ?`,
		userID,
	)

	var rec storage.UserRecord
	var day, month, year int
	var sign string
	var createdAt, updatedAt int64
	err := row.Scan(&rec.UserID, &day, &month, &year, &sign, &rec.LifePath, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.UserRecord{}, storage.ErrNotFound
		}
		return storage.UserRecord{}, fmt.Errorf("get user: %w", err)
	}

	rec.BirthDate, err = astro.FromFields(day, month, year)
	if err != nil {
		return storage.UserRecord{}, fmt.Errorf("decode user %s birth date: %w", userID, err)
	}
	rec.Sign = astro.Sign(sign)
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	return rec, nil
}

// ListUserIDs returns every stored user ID in insertion-independent order.
func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, "SELECT user_id FROM users ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list user ids: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	return ids, nil
}
