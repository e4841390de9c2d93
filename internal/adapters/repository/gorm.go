package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/okian/powerrank/internal/domain/model"
	"github.com/okian/powerrank/pkg/logger"
)

const gormBatchSize = 200

// recordRow is the gorm model of a stored record.
type recordRow struct {
	Kind     string `gorm:"primaryKey;size:32"`
	RecKey   string `gorm:"primaryKey;column:rec_key"`
	SeasonID string `gorm:"not null;index:idx_records_scope,priority:1"`
	Scope    string `gorm:"not null;default:'';index:idx_records_scope,priority:2"`
	Data     string `gorm:"type:text;not null"`
}

func (recordRow) TableName() string { return "records" }

func toRow(r record) recordRow {
	return recordRow{Kind: r.Kind, RecKey: r.Key, SeasonID: r.SeasonID, Scope: r.Scope, Data: string(r.Data)}
}

func fromRow(r recordRow) record {
	return record{Kind: r.Kind, Key: r.RecKey, SeasonID: r.SeasonID, Scope: r.Scope, Data: []byte(r.Data)}
}

// GormStore persists records in Postgres through gorm.
type GormStore struct {
	db   *gorm.DB
	opts options
	log  logger.Logger
}

// NewGormStore connects to Postgres and migrates the records table.
func NewGormStore(ctx context.Context, dsn string, opts ...Option) (*GormStore, error) {
	if dsn == "" {
		return nil, ErrMissingDSN
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	level := gormlogger.Silent
	if o.debugSQL {
		level = gormlogger.Info
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(level)})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(o.maxOpenConns)

	s := &GormStore{db: db, opts: o, log: o.log.Named("postgres")}
	ctx, cancel := s.bound(ctx)
	defer cancel()
	if err := db.WithContext(ctx).AutoMigrate(&recordRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	return s, nil
}

func (s *GormStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.queryTimeout)
}

func (s *GormStore) upsert(ctx context.Context, recs []record) (UpsertStats, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	byKind := make(map[string][]record)
	var kinds []string
	for _, r := range recs {
		if _, ok := byKind[r.Kind]; !ok {
			kinds = append(kinds, r.Kind)
		}
		byKind[r.Kind] = append(byKind[r.Kind], r)
	}

	var st UpsertStats
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, kind := range kinds {
			batch := byKind[kind]
			keys := make([]string, len(batch))
			for i, r := range batch {
				keys[i] = r.Key
			}
			var existing []recordRow
			if err := tx.Where("kind = ? AND rec_key IN ?", kind, keys).Find(&existing).Error; err != nil {
				return fmt.Errorf("read %s: %w", kind, err)
			}
			prev := make(map[string]string, len(existing))
			for _, e := range existing {
				prev[e.RecKey] = e.Data
			}

			var changed []recordRow
			for _, r := range batch {
				data, found := prev[r.Key]
				op := classify([]byte(data), found, r.Data)
				st.count(op)
				if op != opSame {
					changed = append(changed, toRow(r))
				}
			}
			if len(changed) == 0 {
				continue
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "kind"}, {Name: "rec_key"}},
				DoUpdates: clause.AssignmentColumns([]string{"season_id", "scope", "data"}),
			}).CreateInBatches(changed, gormBatchSize).Error
			if err != nil {
				return fmt.Errorf("write %s: %w", kind, err)
			}
		}
		return nil
	})
	if err != nil {
		return UpsertStats{}, err
	}
	return st, nil
}

func (s *GormStore) scan(ctx context.Context, seasonID, scope string, kinds ...string) ([]record, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	q := s.db.WithContext(ctx).Where("season_id = ? AND kind IN ?", seasonID, kinds)
	if scope != "" {
		q = q.Where("scope = ?", scope)
	}
	var rows []recordRow
	if err := q.Order("kind, rec_key").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query season %s: %w", seasonID, err)
	}
	out := make([]record, len(rows))
	for i, r := range rows {
		out[i] = fromRow(r)
	}
	return out, nil
}

// LoadSeason reads the season's input records.
func (s *GormStore) LoadSeason(ctx context.Context, seasonID string) (*model.SeasonData, error) {
	defer observe("load_season", time.Now())
	rows, err := s.scan(ctx, seasonID, "", kindTeam, kindWeek, kindMatchup, kindTeamStat, kindPlayerStat)
	if err != nil {
		return nil, err
	}
	return decodeSeason(seasonID, rows)
}

// UpsertMatchups writes matchups with ON CONFLICT updates.
func (s *GormStore) UpsertMatchups(ctx context.Context, rows []model.Matchup) (UpsertStats, error) {
	defer observe("upsert_matchups", time.Now())
	recs, err := matchupRecords(rows)
	if err != nil {
		return UpsertStats{}, err
	}
	return s.upsert(ctx, recs)
}

// UpsertTeamWeeks writes power snapshots with ON CONFLICT updates.
func (s *GormStore) UpsertTeamWeeks(ctx context.Context, rows []model.PowerWeekSnapshot) (UpsertStats, error) {
	defer observe("upsert_team_weeks", time.Now())
	recs, err := powerRecords(rows)
	if err != nil {
		return UpsertStats{}, err
	}
	return s.upsert(ctx, recs)
}

// UpsertStandings writes standings with ON CONFLICT updates.
func (s *GormStore) UpsertStandings(ctx context.Context, rows []model.TeamSeasonStanding) (UpsertStats, error) {
	defer observe("upsert_standings", time.Now())
	recs, err := standingRecords(rows)
	if err != nil {
		return UpsertStats{}, err
	}
	return s.upsert(ctx, recs)
}

// Standings returns the segment's standings in overall order.
func (s *GormStore) Standings(ctx context.Context, seasonID string, segment model.Segment) ([]model.TeamSeasonStanding, error) {
	rows, err := s.scan(ctx, seasonID, string(segment), kindStanding)
	if err != nil {
		return nil, err
	}
	return decodeStandings(rows)
}

// PowerWeek returns one week's snapshots by power rank.
func (s *GormStore) PowerWeek(ctx context.Context, seasonID, weekID string) ([]model.PowerWeekSnapshot, error) {
	rows, err := s.scan(ctx, seasonID, weekID, kindPowerWeek)
	if err != nil {
		return nil, err
	}
	return decodePower(rows)
}

// Import loads input records and logs how many were created or updated.
func (s *GormStore) Import(ctx context.Context, data *model.SeasonData) error {
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

// Close closes the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
