package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"astra/internal/storage"
)

// seedFactRows are inserted on first run so the fact commands have material
// before an operator adds their own.
var seedFactRows = []storage.Fact{
	{Day: 1, Kind: "psychology", Text: "People born on the 1st of any month tend to be natural leaders with strong independence."},
	{Day: 7, Kind: "psychology", Text: "The 7th is associated with deep thinkers and those drawn to spirituality and analysis."},
	{Day: 15, Kind: "science", Text: "The 15th day of the month is exactly halfway through most lunar cycles."},
	{Day: 21, Kind: "numerology", Text: "21 reduces to 3 (2+1), the number of creativity and self-expression."},
	{Kind: "general", Text: "Your birth date holds unique patterns that influence your personality traits."},
	{Kind: "numerology", Text: "Master numbers 11, 22, and 33 are not reduced in numerology calculations."},
	{Kind: "psychology", Text: "Birth order and date can create interesting correlations with personality development."},
	{Kind: "science", Text: "Statistical studies show slight personality variations based on birth seasons."},
	{Day: 11, Kind: "numerology", Text: "11 is a master number representing intuition and spiritual enlightenment."},
	{Day: 22, Kind: "numerology", Text: "22 is the master builder number, representing the manifestation of dreams."},
	{Day: 3, Kind: "psychology", Text: "Those born on the 3rd often possess strong communication skills and creativity."},
	{Day: 9, Kind: "numerology", Text: "9 is the number of completion and humanitarian service in numerology."},
}

func (s *Store) seedFacts(ctx context.Context) error {
	var n int
	if err := s.sqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM facts").Scan(&n); err != nil {
		return fmt.Errorf("count facts: %w", err)
	}
	if n > 0 {
		return nil
	}
	for _, fact := range seedFactRows {
		if _, err := s.AddFact(ctx, fact); err != nil {
			return err
		}
	}
	return nil
}

// AddFact stores a new fact and returns its ID. Day and Month are optional;
// zero means the fact is not tied to a specific day or month.
func (s *Store) AddFact(ctx context.Context, fact storage.Fact) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	text := strings.TrimSpace(fact.Text)
	if text == "" {
		return 0, fmt.Errorf("fact text is required")
	}
	kind := strings.TrimSpace(fact.Kind)
	if kind == "" {
		kind = "general"
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		"INSERT INTO facts (day, month, kind, fact_text, created_at) VALUES (?, ?, ?, ?, ?)",
		nullableDay(fact.Day),
		nullableDay(fact.Month),
		kind,
		text,
		toMillis(s.now()),
	)
	if err != nil {
		return 0, fmt.Errorf("add fact: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("add fact: %w", err)
	}
	return id, nil
}

// RandomFact returns any stored fact, or storage.ErrNotFound when the table
// is empty.
func (s *Store) RandomFact(ctx context.Context) (storage.Fact, error) {
	if err := ctx.Err(); err != nil {
		return storage.Fact{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Fact{}, fmt.Errorf("storage is not configured")
	}
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT id, day, month, kind, fact_text FROM facts ORDER BY RANDOM() LIMIT 1")
	return scanFact(row)
}

// FactForDay returns a fact for the given day of month. Day-specific facts
// win; otherwise general facts rotate by day so consecutive days differ.
func (s *Store) FactForDay(ctx context.Context, day int) (storage.Fact, error) {
	if err := ctx.Err(); err != nil {
		return storage.Fact{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Fact{}, fmt.Errorf("storage is not configured")
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, day, month, kind, fact_text
		   FROM facts
		  WHERE day = ? OR (day IS NULL AND ? % 7 = id % 7)
		  ORDER BY RANDOM() LIMIT 1`,
		day, day,
	)
	fact, err := scanFact(row)
	if errors.Is(err, storage.ErrNotFound) {
		// No modulo match either; fall back to anything.
		return s.RandomFact(ctx)
	}
	return fact, err
}

// FactsByKind returns up to limit facts of one kind.
func (s *Store) FactsByKind(ctx context.Context, kind string, limit int) ([]storage.Fact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		limit = 2
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		"SELECT id, day, month, kind, fact_text FROM facts WHERE kind = ? ORDER BY RANDOM() LIMIT ?",
		strings.TrimSpace(kind), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("facts by kind: %w", err)
	}
	defer rows.Close()

	var facts []storage.Fact
	for rows.Next() {
		fact, err := scanFactRow(rows)
		if err != nil {
			return nil, err
		}
		facts = append(facts, fact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("facts by kind: %w", err)
	}
	return facts, nil
}

func scanFact(row *sql.Row) (storage.Fact, error) {
	var fact storage.Fact
	var day, month sql.NullInt64
	err := row.Scan(&fact.ID, &day, &month, &fact.Kind, &fact.Text)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Fact{}, storage.ErrNotFound
		}
		return storage.Fact{}, fmt.Errorf("scan fact: %w", err)
	}
	fact.Day = int(day.Int64)
	fact.Month = int(month.Int64)
	return fact, nil
}

func scanFactRow(rows *sql.Rows) (storage.Fact, error) {
	var fact storage.Fact
	var day, month sql.NullInt64
	if err := rows.Scan(&fact.ID, &day, &month, &fact.Kind, &fact.Text); err != nil {
		return storage.Fact{}, fmt.Errorf("scan fact: %w", err)
	}
	fact.Day = int(day.Int64)
	fact.Month = int(month.Int64)
	return fact, nil
}

func nullableDay(n int) sql.NullInt64 {
	if n <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(n), Valid: true}
}
