package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/glebarez/go-sqlite" // registers the "sqlite" driver

	"github.com/okian/powerrank/internal/domain/model"
	"github.com/okian/powerrank/pkg/logger"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS records (
		kind      TEXT NOT NULL,
		rec_key   TEXT NOT NULL,
		season_id TEXT NOT NULL,
		scope     TEXT NOT NULL DEFAULT '',
		data      TEXT NOT NULL,
		PRIMARY KEY (kind, rec_key)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_records_scope ON records (season_id, kind, scope)`,
}

const sqliteUpsert = `
INSERT INTO records (kind, rec_key, season_id, scope, data) VALUES (?, ?, ?, ?, ?)
ON CONFLICT (kind, rec_key) DO UPDATE SET
	season_id = excluded.season_id,
	scope     = excluded.scope,
	data      = excluded.data`

// SQLiteStore persists records in a SQLite file through database/sql.
type SQLiteStore struct {
	db   *sql.DB
	opts options
	log  logger.Logger
}

// NewSQLiteStore opens (and migrates) the database at path. Use ":memory:"
// for a throwaway database.
func NewSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	if path == "" {
		return nil, ErrMissingDSN
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One writer at a time; also keeps ":memory:" to a single database.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, opts: o, log: o.log.Named("sqlite")}
	ctx, cancel := s.bound(ctx)
	defer cancel()
	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate sqlite %s: %w", path, err)
		}
	}
	s.log.Debug(ctx, "sqlite store ready", logger.String("path", path))
	return s, nil
}

func (s *SQLiteStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.queryTimeout)
}

func (s *SQLiteStore) upsert(ctx context.Context, recs []record) (st UpsertStats, err error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return st, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	get, err := tx.PrepareContext(ctx, `SELECT data FROM records WHERE kind = ? AND rec_key = ?`)
	if err != nil {
		return st, fmt.Errorf("prepare select: %w", err)
	}
	defer get.Close()
	put, err := tx.PrepareContext(ctx, sqliteUpsert)
	if err != nil {
		return st, fmt.Errorf("prepare upsert: %w", err)
	}
	defer put.Close()

	for _, r := range recs {
		var prev string
		found := true
		switch qerr := get.QueryRowContext(ctx, r.Kind, r.Key).Scan(&prev); {
		case errors.Is(qerr, sql.ErrNoRows):
			found = false
		case qerr != nil:
			return UpsertStats{}, fmt.Errorf("read %s %s: %w", r.Kind, r.Key, qerr)
		}
		op := classify([]byte(prev), found, r.Data)
		if op != opSame {
			if _, err = put.ExecContext(ctx, r.Kind, r.Key, r.SeasonID, r.Scope, string(r.Data)); err != nil {
				return UpsertStats{}, fmt.Errorf("write %s %s: %w", r.Kind, r.Key, err)
			}
		}
		st.count(op)
	}
	if err = tx.Commit(); err != nil {
		return UpsertStats{}, fmt.Errorf("commit: %w", err)
	}
	return st, nil
}

func (s *SQLiteStore) scan(ctx context.Context, seasonID, scope string, kinds ...string) ([]record, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	q := `SELECT kind, rec_key, season_id, scope, data FROM records WHERE season_id = ? AND kind IN (?` +
		strings.Repeat(", ?", len(kinds)-1) + `)`
	args := []any{seasonID}
	for _, k := range kinds {
		args = append(args, k)
	}
	if scope != "" {
		q += ` AND scope = ?`
		args = append(args, scope)
	}
	q += ` ORDER BY kind, rec_key`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query season %s: %w", seasonID, err)
	}
	defer rows.Close()

	var out []record
	for rows.Next() {
		var r record
		var data string
		if err := rows.Scan(&r.Kind, &r.Key, &r.SeasonID, &r.Scope, &data); err != nil {
			return nil, fmt.Errorf("scan season %s: %w", seasonID, err)
		}
		r.Data = []byte(data)
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadSeason reads the season's input records from the records table.
func (s *SQLiteStore) LoadSeason(ctx context.Context, seasonID string) (*model.SeasonData, error) {
	defer observe("load_season", time.Now())
	rows, err := s.scan(ctx, seasonID, "", kindTeam, kindWeek, kindMatchup, kindTeamStat, kindPlayerStat)
	if err != nil {
		return nil, err
	}
	return decodeSeason(seasonID, rows)
}

// UpsertMatchups writes matchups in one transaction.
func (s *SQLiteStore) UpsertMatchups(ctx context.Context, rows []model.Matchup) (UpsertStats, error) {
	defer observe("upsert_matchups", time.Now())
	recs, err := matchupRecords(rows)
	if err != nil {
		return UpsertStats{}, err
	}
	return s.upsert(ctx, recs)
}

// UpsertTeamWeeks writes power snapshots in one transaction.
func (s *SQLiteStore) UpsertTeamWeeks(ctx context.Context, rows []model.PowerWeekSnapshot) (UpsertStats, error) {
	defer observe("upsert_team_weeks", time.Now())
	recs, err := powerRecords(rows)
	if err != nil {
		return UpsertStats{}, err
	}
	return s.upsert(ctx, recs)
}

// UpsertStandings writes standings in one transaction.
func (s *SQLiteStore) UpsertStandings(ctx context.Context, rows []model.TeamSeasonStanding) (UpsertStats, error) {
	defer observe("upsert_standings", time.Now())
	recs, err := standingRecords(rows)
	if err != nil {
		return UpsertStats{}, err
	}
	return s.upsert(ctx, recs)
}

// Standings returns the segment's standings in overall order.
func (s *SQLiteStore) Standings(ctx context.Context, seasonID string, segment model.Segment) ([]model.TeamSeasonStanding, error) {
	rows, err := s.scan(ctx, seasonID, string(segment), kindStanding)
	if err != nil {
		return nil, err
	}
	return decodeStandings(rows)
}

// PowerWeek returns one week's snapshots by power rank.
func (s *SQLiteStore) PowerWeek(ctx context.Context, seasonID, weekID string) ([]model.PowerWeekSnapshot, error) {
	rows, err := s.scan(ctx, seasonID, weekID, kindPowerWeek)
	if err != nil {
		return nil, err
	}
	return decodePower(rows)
}

// Import loads input records and logs how many were created or updated.
func (s *SQLiteStore) Import(ctx context.Context, data *model.SeasonData) error {
	if data == nil {
		return nil
	}
	recs, err := seasonRecords(data)
	if err != nil {
		return err
	}
	st, err := s.upsert(ctx, recs)
	if err != nil {
		return fmt.Errorf("import season %s: %w", data.SeasonID, err)
	}
	s.log.Info(ctx, "season imported",
		logger.String("season", data.SeasonID),
		logger.Int("created", st.Created),
		logger.Int("updated", st.Updated),
	)
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
