package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/BaSui01/finagent/agent"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrRecordNotFound is returned by Get for an unknown id.
var ErrRecordNotFound = errors.New("query record not found")

// Listing bounds for HistoryStore.List.
const (
	DefaultListLimit = 20
	MaxListLimit     = 200
)

// QueryRecord is the query_history row.
type QueryRecord struct {
	ID         string    `gorm:"primaryKey;size:36"`
	RequestID  string    `gorm:"size:64;index"`
	Query      string    `gorm:"type:text;not null"`
	FilePath   string    `gorm:"size:1024"`
	Response   string    `gorm:"type:text"`
	Source     string    `gorm:"size:32"`
	Steps      string    `gorm:"type:text"`
	StepCount  int       `gorm:"not null;default:0"`
	Error      string    `gorm:"type:text"`
	DurationMS int64     `gorm:"not null;default:0"`
	CreatedAt  time.Time `gorm:"index"`
}

// TableName pins the table name used by the SQL migrations.
func (QueryRecord) TableName() string { return "query_history" }

// HistoryStore persists agent.Record values.
type HistoryStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

var _ agent.HistoryRecorder = (*HistoryStore)(nil)

// NewHistoryStore creates a store over db.
func NewHistoryStore(db *gorm.DB, logger *zap.Logger) *HistoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryStore{db: db, logger: logger.With(zap.String("component", "query_history"))}
}

// AutoMigrate creates or updates the query_history table from the model.
func (s *HistoryStore) AutoMigrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&QueryRecord{}); err != nil {
		return fmt.Errorf("migrate query_history: %w", err)
	}
	return nil
}

// RecordQuery implements agent.HistoryRecorder. A missing ID or CreatedAt is
// filled in.
func (s *HistoryStore) RecordQuery(ctx context.Context, rec agent.Record) error {
	row, err := toRow(rec)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert query record: %w", err)
	}
	s.logger.Debug("query recorded", zap.String("id", row.ID), zap.Int("steps", row.StepCount))
	return nil
}

// List returns the newest records first. limit is clamped to
// [1, MaxListLimit]; zero means DefaultListLimit.
func (s *HistoryStore) List(ctx context.Context, limit int) ([]agent.Record, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}

	var rows []QueryRecord
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list query records: %w", err)
	}

	out := make([]agent.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Get returns one record or ErrRecordNotFound.
func (s *HistoryStore) Get(ctx context.Context, id string) (agent.Record, error) {
	var row QueryRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return agent.Record{}, ErrRecordNotFound
	}
	if err != nil {
		return agent.Record{}, fmt.Errorf("get query record: %w", err)
	}
	return fromRow(row)
}

// DeleteBefore removes records created before cutoff and reports how many.
func (s *HistoryStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&QueryRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune query records: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func toRow(rec agent.Record) (QueryRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	steps := rec.Steps
	if steps == nil {
		steps = []agent.Step{}
	}
	encoded, err := json.Marshal(steps)
	if err != nil {
		return QueryRecord{}, fmt.Errorf("encode steps: %w", err)
	}
	return QueryRecord{
		ID:         rec.ID,
		RequestID:  rec.RequestID,
		Query:      rec.Query,
		FilePath:   rec.FilePath,
		Response:   rec.Response,
		Source:     rec.Source,
		Steps:      string(encoded),
		StepCount:  len(rec.Steps),
		Error:      rec.Error,
		DurationMS: rec.Duration.Milliseconds(),
		CreatedAt:  rec.CreatedAt.UTC(),
	}, nil
}

func fromRow(row QueryRecord) (agent.Record, error) {
	var steps []agent.Step
	if row.Steps != "" {
		if err := json.Unmarshal([]byte(row.Steps), &steps); err != nil {
			return agent.Record{}, fmt.Errorf("decode steps of %s: %w", row.ID, err)
		}
	}
	return agent.Record{
		ID:        row.ID,
		RequestID: row.RequestID,
		Query:     row.Query,
		FilePath:  row.FilePath,
		Response:  row.Response,
		Source:    row.Source,
		Steps:     steps,
		Error:     row.Error,
		Duration:  time.Duration(row.DurationMS) * time.Millisecond,
		CreatedAt: row.CreatedAt,
	}, nil
}
