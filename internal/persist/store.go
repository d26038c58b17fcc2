// Package persist stores stream snapshots in SQLite so spike history
// survives restarts.
package persist

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Minthug/chzzk-chat-analyzer/internal/analyzer"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS streams (
	stream_id   TEXT    PRIMARY KEY,
	mode        TEXT    NOT NULL,
	started_at  INTEGER NOT NULL,
	total_count INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS spikes (
	stream_id     TEXT    NOT NULL REFERENCES streams(stream_id) ON DELETE CASCADE,
	seq           INTEGER NOT NULL,
	keyword       TEXT    NOT NULL DEFAULT '',
	window_index  INTEGER NOT NULL,
	anchor_time   REAL    NOT NULL,
	count         INTEGER NOT NULL,
	z_score       REAL    NOT NULL,
	baseline_mean REAL    NOT NULL,
	baseline_std  REAL    NOT NULL,
	ratio         REAL,
	note          TEXT    NOT NULL DEFAULT '',
	PRIMARY KEY (stream_id, seq)
);`

// SQLiteStore persists analyzer snapshots via modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// New opens (or creates) a SQLite database at path, applies pragmas and
// creates the schema.
func New(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	// SQLite performs best with a single write connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %q: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// tx executes fn within a transaction, committing if fn returns nil.
func (s *SQLiteStore) tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original: %w)", rbErr, err)
		}
		return err
	}
	return tx.Commit()
}

// Save replaces the stored snapshot of snap.StreamID. Spikes are written
// rounded; the rounded values are what Load returns from then on.
func (s *SQLiteStore) Save(ctx context.Context, snap analyzer.Snapshot) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO streams (stream_id, mode, started_at, total_count, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(stream_id) DO UPDATE SET
				mode = excluded.mode,
				started_at = excluded.started_at,
				total_count = excluded.total_count,
				updated_at = excluded.updated_at`,
			string(snap.StreamID), string(snap.Mode), snap.StartedAt.UnixMilli(),
			snap.TotalCount, s.now().UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("upsert stream: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM spikes WHERE stream_id = ?`, string(snap.StreamID)); err != nil {
			return fmt.Errorf("clear spikes: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO spikes (
				stream_id, seq, keyword, window_index, anchor_time, count,
				z_score, baseline_mean, baseline_std, ratio, note
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare spike insert: %w", err)
		}
		defer stmt.Close()

		all := make([]analyzer.SpikeRecord, 0, len(snap.Spikes)+len(snap.KeywordSpikes))
		all = append(all, snap.Spikes...)
		all = append(all, snap.KeywordSpikes...)
		for i, sp := range all {
			sp = analyzer.RoundSpike(sp)
			var ratio sql.NullFloat64
			if sp.Ratio != nil {
				ratio = sql.NullFloat64{Float64: *sp.Ratio, Valid: true}
			}
			if _, err := stmt.ExecContext(ctx,
				string(snap.StreamID), i, sp.Keyword, sp.WindowIndex, sp.AnchorTime, sp.Count,
				sp.ZScore, sp.BaselineMean, sp.BaselineStd, ratio, sp.Note,
			); err != nil {
				return fmt.Errorf("insert spike %d: %w", i, err)
			}
		}
		return nil
	})
}

// Delete removes the stored snapshot of id. Deleting an absent id is a no-op.
func (s *SQLiteStore) Delete(ctx context.Context, id analyzer.StreamID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM streams WHERE stream_id = ?`, string(id)); err != nil {
		return fmt.Errorf("delete stream %q: %w", id, err)
	}
	return nil
}

// Load returns every stored snapshot ordered by stream id.
func (s *SQLiteStore) Load(ctx context.Context) ([]analyzer.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stream_id, mode, started_at, total_count FROM streams ORDER BY stream_id`)
	if err != nil {
		return nil, fmt.Errorf("query streams: %w", err)
	}
	var snaps []analyzer.Snapshot
	for rows.Next() {
		var (
			snap      analyzer.Snapshot
			id, mode  string
			startedMs int64
		)
		if err := rows.Scan(&id, &mode, &startedMs, &snap.TotalCount); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan stream row: %w", err)
		}
		snap.StreamID = analyzer.StreamID(id)
		snap.Mode = analyzer.Mode(mode)
		snap.StartedAt = time.UnixMilli(startedMs).UTC()
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range snaps {
		if err := s.loadSpikes(ctx, &snaps[i]); err != nil {
			return nil, err
		}
	}
	return snaps, nil
}

func (s *SQLiteStore) loadSpikes(ctx context.Context, snap *analyzer.Snapshot) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT keyword, window_index, anchor_time, count, z_score,
		       baseline_mean, baseline_std, ratio, note
		FROM spikes WHERE stream_id = ? ORDER BY seq`, string(snap.StreamID))
	if err != nil {
		return fmt.Errorf("query spikes: %w", err)
	}
	defer rows.Close()

	snap.Spikes = []analyzer.SpikeRecord{}
	snap.KeywordSpikes = []analyzer.SpikeRecord{}
	for rows.Next() {
		var (
			sp    analyzer.SpikeRecord
			ratio sql.NullFloat64
		)
		if err := rows.Scan(&sp.Keyword, &sp.WindowIndex, &sp.AnchorTime, &sp.Count,
			&sp.ZScore, &sp.BaselineMean, &sp.BaselineStd, &ratio, &sp.Note); err != nil {
			return fmt.Errorf("scan spike row: %w", err)
		}
		if ratio.Valid {
			r := ratio.Float64
			sp.Ratio = &r
		}
		if sp.Keyword == "" {
			snap.Spikes = append(snap.Spikes, sp)
		} else {
			snap.KeywordSpikes = append(snap.KeywordSpikes, sp)
		}
	}
	return rows.Err()
}
