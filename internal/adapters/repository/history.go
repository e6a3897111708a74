package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/okian/riskdiag/internal/domain/model"
	"github.com/okian/riskdiag/internal/domain/scoring"
)

const (
	defaultAlertThreshold = 10
	defaultMovers         = 3
)

// Change descriptors.
const (
	ChangeStable     = "stable"
	ChangeMajorRise  = "major_rise"
	ChangeLevelRise  = "level_rise"
	ChangeSlightRise = "slight_rise"
	ChangeMajorFall  = "major_fall"
	ChangeLevelFall  = "level_fall"
	ChangeSlightFall = "slight_fall"
)

// Record is one stored assessment.
type Record struct {
	ID         uint      `gorm:"primaryKey" json:"-"`
	RunID      string    `gorm:"type:varchar(36);uniqueIndex" json:"run_id"`
	Company    string    `gorm:"size:200;not null;index:idx_history_company_created" json:"company"`
	Profile    string    `gorm:"size:20;not null" json:"profile"`
	Composite  float64   `json:"composite_score"`
	Level      string    `gorm:"size:20" json:"risk_level"`
	Dimensions string    `gorm:"type:text" json:"-"`
	Delta      float64   `json:"delta"`
	Descriptor string    `gorm:"size:20" json:"descriptor"`
	Alert      bool      `json:"alert"`
	CreatedAt  time.Time `gorm:"index:idx_history_company_created" json:"created_at"`
}

// TableName pins the table name.
func (Record) TableName() string { return "assessment_history" }

// DimensionScores decodes the stored per-dimension totals.
func (r Record) DimensionScores() map[string]float64 {
	out := map[string]float64{}
	_ = json.Unmarshal([]byte(r.Dimensions), &out)
	return out
}

// History keeps assessment history in SQLite.
type History struct {
	db        *gorm.DB
	threshold float64
	movers    int
}

// OpenHistory opens (and migrates) the SQLite database at dsn.
// ":memory:" gives a throwaway database.
func OpenHistory(dsn string, opts ...HistoryOption) (*History, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrHistory, dsn, err)
	}
	// one connection: SQLite has a single writer and ":memory:" is per-connection
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHistory, err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("%w: migrate: %w", ErrHistory, err)
	}
	h := &History{db: db, threshold: defaultAlertThreshold, movers: defaultMovers}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Close releases the underlying connection.
func (h *History) Close() error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Append stores a and returns its change against the previous run for the
// same company, or nil when this is the first run.
func (h *History) Append(ctx context.Context, a model.Assessment) (*model.Change, error) {
	db := h.db.WithContext(ctx)

	var prev Record
	err := db.Where("company = ?", a.Company).Order("created_at desc, id desc").First(&prev).Error
	hasPrev := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: previous run: %w", ErrHistory, err)
	}

	current := make(map[string]float64, len(a.Dimensions))
	for _, d := range a.Dimensions {
		current[d.Name] = d.Total
	}
	dims, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("%w: encode dimensions: %w", ErrHistory, err)
	}

	rec := Record{
		RunID:      a.RunID,
		Company:    a.Company,
		Profile:    a.Profile,
		Composite:  a.Composite,
		Level:      a.Level,
		Dimensions: string(dims),
		CreatedAt:  a.GeneratedAt,
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	var change *model.Change
	if hasPrev {
		delta := scoring.Round1(a.Composite - prev.Composite)
		change = &model.Change{
			PreviousRunID: prev.RunID,
			PreviousScore: prev.Composite,
			Delta:         delta,
			Descriptor:    Describe(delta),
			Alert:         math.Abs(delta) >= h.threshold,
			Movers:        Movers(prev.DimensionScores(), current, h.movers),
		}
		rec.Delta = delta
		rec.Descriptor = change.Descriptor
		rec.Alert = change.Alert
	}

	if err := db.Create(&rec).Error; err != nil {
		return nil, fmt.Errorf("%w: insert: %w", ErrHistory, err)
	}
	return change, nil
}

// List returns up to limit records for company, newest first. limit <= 0 returns all.
func (h *History) List(ctx context.Context, company string, limit int) ([]Record, error) {
	q := h.db.WithContext(ctx).Where("company = ?", company).Order("created_at desc, id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []Record
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("%w: list: %w", ErrHistory, err)
	}
	return out, nil
}

// Describe labels a composite change.
func Describe(delta float64) string {
	switch {
	case math.Abs(delta) < 5:
		return ChangeStable
	case delta > 15:
		return ChangeMajorRise
	case delta > 10:
		return ChangeLevelRise
	case delta > 0:
		return ChangeSlightRise
	case delta < -15:
		return ChangeMajorFall
	case delta < -10:
		return ChangeLevelFall
	default:
		return ChangeSlightFall
	}
}

// Movers returns the n dimensions with the largest absolute change.
// Dimensions absent from prev are skipped.
func Movers(prev, current map[string]float64, n int) []model.DimensionMove {
	moves := make([]model.DimensionMove, 0, len(current))
	for name, cur := range current {
		p, ok := prev[name]
		if !ok {
			continue
		}
		moves = append(moves, model.DimensionMove{Name: name, Previous: p, Current: cur, Delta: scoring.Round1(cur - p)})
	}
	sort.Slice(moves, func(i, j int) bool {
		ai, aj := math.Abs(moves[i].Delta), math.Abs(moves[j].Delta)
		if ai != aj {
			return ai > aj
		}
		return moves[i].Name < moves[j].Name
	})
	if len(moves) > n {
		moves = moves[:n]
	}
	return moves
}
