// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/daverunner/reflectd/internal/continuity"
)

// reflectionRow maps the reflections table for bun queries.
type reflectionRow struct {
	bun.BaseModel `bun:"table:reflections"`

	ID         int64      `bun:"id,pk,autoincrement"`
	UserID     string     `bun:"user_id"`
	ThreadID   string     `bun:"thread_id"`
	SessionID  string     `bun:"session_id"`
	SlideID    string     `bun:"slide_id"`
	GlyphEcho  string     `bun:"glyph_echo"`
	DriftScore float64    `bun:"drift_score"`
	Seal       string     `bun:"seal"`
	Content    string     `bun:"content"`
	Checksum   string     `bun:"checksum"`
	VerifiedAt *time.Time `bun:"verified_at,nullzero"`
	CreatedAt  time.Time  `bun:"created_at"`
}

func (r reflectionRow) toReflection() continuity.Reflection {
	return continuity.Reflection{
		ID:         r.ID,
		UserID:     r.UserID,
		ThreadID:   r.ThreadID,
		SessionID:  r.SessionID,
		SlideID:    r.SlideID,
		GlyphEcho:  r.GlyphEcho,
		DriftScore: r.DriftScore,
		Seal:       r.Seal,
		Content:    r.Content,
		Checksum:   r.Checksum,
		VerifiedAt: r.VerifiedAt,
		CreatedAt:  r.CreatedAt,
	}
}

func rowFromReflection(r *continuity.Reflection) reflectionRow {
	return reflectionRow{
		ID:         r.ID,
		UserID:     r.UserID,
		ThreadID:   r.ThreadID,
		SessionID:  r.SessionID,
		SlideID:    r.SlideID,
		GlyphEcho:  r.GlyphEcho,
		DriftScore: r.DriftScore,
		Seal:       r.Seal,
		Content:    r.Content,
		Checksum:   r.Checksum,
		VerifiedAt: r.VerifiedAt,
		CreatedAt:  r.CreatedAt,
	}
}

// bunStore implements Store on top of a *bun.DB.
type bunStore struct {
	db *bun.DB
}

func (s *bunStore) SaveReflection(ctx context.Context, r *continuity.Reflection) (int64, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	row := rowFromReflection(r)
	row.ID = 0
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return 0, fmt.Errorf("save reflection: %w", err)
	}
	r.ID = row.ID
	return row.ID, nil
}

func (s *bunStore) GetReflection(ctx context.Context, id int64) (*continuity.Reflection, error) {
	var row reflectionRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get reflection %d: %w", id, err)
	}
	out := row.toReflection()
	return &out, nil
}

func (s *bunStore) RecallWindow(ctx context.Context, userID, threadID, sessionID string, limit int) ([]continuity.Reflection, error) {
	var rows []reflectionRow
	q := s.db.NewSelect().Model(&rows).Where("user_id = ?", userID)
	if threadID != "" {
		q = q.Where("thread_id = ?", threadID)
	}
	if sessionID != "" {
		q = q.Where("session_id = ?", sessionID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.OrderExpr("created_at DESC").OrderExpr("id DESC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("recall window for %s: %w", userID, err)
	}
	return rowsToReflections(rows), nil
}

func (s *bunStore) ListByUser(ctx context.Context, userID string) ([]continuity.Reflection, error) {
	var rows []reflectionRow
	err := s.db.NewSelect().Model(&rows).
		Where("user_id = ?", userID).
		OrderExpr("created_at DESC").OrderExpr("id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reflections for %s: %w", userID, err)
	}
	return rowsToReflections(rows), nil
}

func (s *bunStore) MarkVerified(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.NewUpdate().Model((*reflectionRow)(nil)).
		Set("verified_at = ?", at).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	return nil
}

func (s *bunStore) CountReflections(ctx context.Context) (int64, error) {
	count, err := s.db.NewSelect().Model((*reflectionRow)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count reflections: %w", err)
	}
	return int64(count), nil
}

func (s *bunStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *bunStore) Close() error {
	return s.db.Close()
}

func rowsToReflections(rows []reflectionRow) []continuity.Reflection {
	out := make([]continuity.Reflection, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toReflection())
	}
	return out
}
