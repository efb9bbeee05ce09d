// internal/database/game.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/wordparty/internal/models"
)

// Archive stores session events and final standings in Postgres.
type Archive struct {
	pool *pgxpool.Pool
}

// NewArchive wraps an open pool.
func NewArchive(pool *pgxpool.Pool) *Archive {
	return &Archive{pool: pool}
}

// InsertEvents writes a batch of event records in one transaction. Records already
// stored (same session and sequence) are skipped, so a replayed batch is harmless.
func (a *Archive) InsertEvents(ctx context.Context, records []models.EventRecord) error {
	if len(records) == 0 {
		return nil
	}
	return beginTxFunc(ctx, a.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		seen := make(map[uuid.UUID]bool)
		for _, rec := range records {
			if !seen[rec.SessionID] {
				seen[rec.SessionID] = true
				batch.Queue(`
					INSERT INTO sessions (id, game_type, status, started_at)
					VALUES ($1, $2, 'in_progress', $3)
					ON CONFLICT (id) DO NOTHING
				`, rec.SessionID, rec.GameType, time.UnixMilli(rec.Timestamp))
			}

			payload, err := json.Marshal(rec.Payload)
			if err != nil {
				return fmt.Errorf("marshal payload of %s #%d: %w", rec.Type, rec.Seq, err)
			}
			var actor *uuid.UUID
			if rec.ActorID != uuid.Nil {
				actor = &rec.ActorID
			}
			batch.Queue(`
				INSERT INTO session_events (session_id, seq, actor_id, event_type, payload, occurred_at)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (session_id, seq) DO NOTHING
			`, rec.SessionID, rec.Seq, actor, rec.Type, payload, time.UnixMilli(rec.Timestamp))
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

// FinishMatch marks a session completed and upserts its final standings.
func (a *Archive) FinishMatch(ctx context.Context, sessionID uuid.UUID, gameType int, standings []models.Standing) error {
	err := beginTxFunc(ctx, a.pool, func(tx pgx.Tx) error {
		upsertSession := `
			INSERT INTO sessions (id, game_type, status, ended_at)
			VALUES ($1, $2, 'completed', NOW())
			ON CONFLICT (id) DO UPDATE SET status = 'completed', ended_at = NOW()
		`
		if _, err := tx.Exec(ctx, upsertSession, sessionID, gameType); err != nil {
			return err
		}
		for _, s := range standings {
			q := `
				INSERT INTO match_results (session_id, player_id, name, score, place)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (session_id, player_id)
				DO UPDATE SET name = $3, score = $4, place = $5
			`
			if _, err := tx.Exec(ctx, q, sessionID, s.PlayerID, s.Name, s.Score, s.Place); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx upsert match results: %w", err)
	}
	return nil
}

// MarkAbandoned flags a session that stopped producing events before it finished.
func (a *Archive) MarkAbandoned(ctx context.Context, sessionID uuid.UUID) error {
	_, err := a.pool.Exec(ctx, `
		UPDATE sessions
		SET status = 'abandoned', ended_at = NOW()
		WHERE id = $1 AND status = 'in_progress'
	`, sessionID)
	return err
}

// MatchResults returns the stored standings of a session ordered by place.
func (a *Archive) MatchResults(ctx context.Context, sessionID uuid.UUID) ([]models.Standing, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT player_id, name, score, place
		FROM match_results
		WHERE session_id = $1
		ORDER BY place, name
	`, sessionID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Standing, error) {
		var s models.Standing
		err := row.Scan(&s.PlayerID, &s.Name, &s.Score, &s.Place)
		return s, err
	})
}

// SessionStatus returns the archived status of a session.
func (a *Archive) SessionStatus(ctx context.Context, sessionID uuid.UUID) (string, error) {
	var status string
	err := a.pool.QueryRow(ctx, `SELECT status FROM sessions WHERE id = $1`, sessionID).Scan(&status)
	return status, err
}

// EventCount returns how many events are stored for a session.
func (a *Archive) EventCount(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var n int
	err := a.pool.QueryRow(ctx, `SELECT COUNT(*) FROM session_events WHERE session_id = $1`, sessionID).Scan(&n)
	return n, err
}
