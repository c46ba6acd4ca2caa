// Package gormstore implements storage.Store on a relational database via
// GORM, matching the hosted Postgres backend the site builder runs on.
package gormstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/clubsitehq/schedkit/recurrence"
	"github.com/clubsitehq/schedkit/storage"
)

// Store implements storage.Store on a *gorm.DB.
type Store struct {
	db *gorm.DB
}

var _ storage.Store = (*Store)(nil)

// New wraps an existing GORM handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Open connects to Postgres with the given DSN and runs migrations.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, &storage.Error{Type: storage.ErrUnavailable, Message: "open database", Err: err}
	}
	s := New(db)
	if err := s.AutoMigrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// AutoMigrate creates or updates the schedule tables.
func (s *Store) AutoMigrate() error {
	err := s.db.AutoMigrate(&ruleRecord{}, &exceptionRecord{}, &manualOccurrenceRecord{})
	if err != nil {
		return &storage.Error{Type: storage.ErrUnavailable, Message: "migrate schedule tables", Err: err}
	}
	return nil
}

func wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &storage.Error{Type: storage.ErrNotFound, Message: message, Err: err}
	}
	return &storage.Error{Type: storage.ErrUnavailable, Message: message, Err: err}
}

// Rule operations

func (s *Store) GetRule(ctx context.Context, id string) (*recurrence.Rule, error) {
	var rec ruleRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, wrap(err, "get rule")
	}
	rule := rec.toRule()
	return &rule, nil
}

func (s *Store) ListRules(ctx context.Context, scope storage.Scope) ([]recurrence.Rule, error) {
	q := s.db.WithContext(ctx).Order("id")
	if scope.ProgramNodeID != "" {
		q = q.Where("program_node_id = ?", scope.ProgramNodeID)
	}
	var recs []ruleRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, wrap(err, "list rules")
	}
	rules := make([]recurrence.Rule, 0, len(recs))
	for _, rec := range recs {
		rules = append(rules, rec.toRule())
	}
	return rules, nil
}

func (s *Store) PutRule(ctx context.Context, rule recurrence.Rule) error {
	if rule.ID == "" {
		return &storage.Error{Type: storage.ErrInvalidInput, Message: "rule id required"}
	}
	rec := newRuleRecord(rule)
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&rec).Error
	return wrap(err, "put rule")
}

func (s *Store) DeleteRule(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&ruleRecord{}, "id = ?", id)
	if res.Error != nil {
		return wrap(res.Error, "delete rule")
	}
	if res.RowsAffected == 0 {
		return &storage.Error{Type: storage.ErrNotFound, Message: "rule not found"}
	}
	return nil
}

// Exception operations

func (s *Store) ListExceptions(ctx context.Context, ruleIDs []string) ([]recurrence.Exception, error) {
	if len(ruleIDs) == 0 {
		return nil, nil
	}
	var recs []exceptionRecord
	err := s.db.WithContext(ctx).
		Where("rule_id IN ?", ruleIDs).
		Order("source_key").
		Find(&recs).Error
	if err != nil {
		return nil, wrap(err, "list exceptions")
	}
	exceptions := make([]recurrence.Exception, 0, len(recs))
	for _, rec := range recs {
		exceptions = append(exceptions, rec.toException())
	}
	return exceptions, nil
}

// UpsertException is idempotent on (rule_id, source_key); a conflicting row
// keeps its id and gets the new payload.
func (s *Store) UpsertException(ctx context.Context, ex recurrence.Exception) error {
	if ex.RuleID == "" || ex.SourceKey == "" {
		return &storage.Error{Type: storage.ErrInvalidInput, Message: "rule id and source key required"}
	}
	rec := newExceptionRecord(ex)
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "rule_id"}, {Name: "source_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"kind", "title", "start_time", "end_time", "updated_at"}),
		}).
		Create(&rec).Error
	return wrap(err, "upsert exception")
}

func (s *Store) DeleteException(ctx context.Context, ruleID, sourceKey string) error {
	res := s.db.WithContext(ctx).
		Where("rule_id = ? AND source_key = ?", ruleID, sourceKey).
		Delete(&exceptionRecord{})
	if res.Error != nil {
		return wrap(res.Error, "delete exception")
	}
	if res.RowsAffected == 0 {
		return &storage.Error{Type: storage.ErrNotFound, Message: "exception not found"}
	}
	return nil
}

// Manual occurrence operations

func (s *Store) ListManualOccurrences(ctx context.Context, scope storage.Scope) ([]recurrence.Occurrence, error) {
	q := s.db.WithContext(ctx).Order("starts_at_utc")
	if scope.ProgramNodeID != "" {
		q = q.Where("program_node_id = ?", scope.ProgramNodeID)
	}
	var recs []manualOccurrenceRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, wrap(err, "list manual occurrences")
	}
	occs := make([]recurrence.Occurrence, 0, len(recs))
	for _, rec := range recs {
		occs = append(occs, rec.toOccurrence())
	}
	return occs, nil
}

func (s *Store) PutManualOccurrence(ctx context.Context, occ recurrence.Occurrence) error {
	if occ.SourceKey == "" {
		return &storage.Error{Type: storage.ErrInvalidInput, Message: "source key required"}
	}
	rec := newManualOccurrenceRecord(occ)
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_key"}},
			UpdateAll: true,
		}).
		Create(&rec).Error
	return wrap(err, "put manual occurrence")
}

func (s *Store) DeleteManualOccurrence(ctx context.Context, sourceKey string) error {
	res := s.db.WithContext(ctx).Delete(&manualOccurrenceRecord{}, "source_key = ?", sourceKey)
	if res.Error != nil {
		return wrap(res.Error, "delete manual occurrence")
	}
	if res.RowsAffected == 0 {
		return &storage.Error{Type: storage.ErrNotFound, Message: "manual occurrence not found"}
	}
	return nil
}

// ruleRecord is the relational shape of recurrence.Rule. Set-valued fields
// are stored as jsonb.
type ruleRecord struct {
	ID             string    `gorm:"primaryKey;type:text"`
	ProgramNodeID  string    `gorm:"index"`
	Title          string
	Timezone       string
	Active         bool
	Mode           string
	StartDate      string
	EndDate        string
	StartTime      string
	EndTime        string
	IntervalCount  int
	IntervalUnit   string
	ByWeekday      []int     `gorm:"type:jsonb;serializer:json"`
	ByMonthday     []int     `gorm:"type:jsonb;serializer:json"`
	EndMode        string
	UntilDate      string
	MaxOccurrences int
	SpecificDates  []string  `gorm:"type:jsonb;serializer:json"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (ruleRecord) TableName() string { return "schedule_rules" }

func newRuleRecord(rule recurrence.Rule) ruleRecord {
	return ruleRecord{
		ID:             rule.ID,
		ProgramNodeID:  rule.ProgramNodeID,
		Title:          rule.Title,
		Timezone:       rule.Timezone,
		Active:         rule.Active,
		Mode:           string(rule.Mode),
		StartDate:      rule.StartDate,
		EndDate:        rule.EndDate,
		StartTime:      rule.StartTime,
		EndTime:        rule.EndTime,
		IntervalCount:  rule.IntervalCount,
		IntervalUnit:   string(rule.IntervalUnit),
		ByWeekday:      rule.ByWeekday,
		ByMonthday:     rule.ByMonthday,
		EndMode:        string(rule.EndMode),
		UntilDate:      rule.UntilDate,
		MaxOccurrences: rule.MaxOccurrences,
		SpecificDates:  rule.SpecificDates,
	}
}

func (r ruleRecord) toRule() recurrence.Rule {
	return recurrence.Rule{
		ID:             r.ID,
		ProgramNodeID:  r.ProgramNodeID,
		Title:          r.Title,
		Timezone:       r.Timezone,
		Active:         r.Active,
		Mode:           recurrence.Mode(r.Mode),
		StartDate:      r.StartDate,
		EndDate:        r.EndDate,
		StartTime:      r.StartTime,
		EndTime:        r.EndTime,
		IntervalCount:  r.IntervalCount,
		IntervalUnit:   recurrence.IntervalUnit(r.IntervalUnit),
		ByWeekday:      r.ByWeekday,
		ByMonthday:     r.ByMonthday,
		EndMode:        recurrence.EndMode(r.EndMode),
		UntilDate:      r.UntilDate,
		MaxOccurrences: r.MaxOccurrences,
		SpecificDates:  r.SpecificDates,
	}
}

type exceptionRecord struct {
	ID        string `gorm:"primaryKey;type:text"`
	RuleID    string `gorm:"uniqueIndex:idx_schedule_exceptions_rule_key;not null"`
	SourceKey string `gorm:"uniqueIndex:idx_schedule_exceptions_rule_key;not null"`
	Kind      string `gorm:"not null"`
	Title     string
	StartTime string
	EndTime   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (exceptionRecord) TableName() string { return "schedule_exceptions" }

func newExceptionRecord(ex recurrence.Exception) exceptionRecord {
	return exceptionRecord{
		ID:        ex.ID,
		RuleID:    ex.RuleID,
		SourceKey: ex.SourceKey,
		Kind:      string(ex.Kind),
		Title:     ex.Title,
		StartTime: ex.StartTime,
		EndTime:   ex.EndTime,
	}
}

func (r exceptionRecord) toException() recurrence.Exception {
	return recurrence.Exception{
		ID:        r.ID,
		RuleID:    r.RuleID,
		SourceKey: r.SourceKey,
		Kind:      recurrence.ExceptionKind(r.Kind),
		Title:     r.Title,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
	}
}

type manualOccurrenceRecord struct {
	SourceKey      string              `gorm:"primaryKey;type:text"`
	ProgramNodeID  string              `gorm:"index"`
	Title          string
	Timezone       string
	LocalDate      string
	LocalStartTime string
	LocalEndTime   string
	StartsAtUTC    time.Time           `gorm:"column:starts_at_utc;index"`
	EndsAtUTC      time.Time           `gorm:"column:ends_at_utc"`
	Status         string
	Metadata       recurrence.Metadata `gorm:"type:jsonb;serializer:json"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (manualOccurrenceRecord) TableName() string { return "manual_occurrences" }

func newManualOccurrenceRecord(occ recurrence.Occurrence) manualOccurrenceRecord {
	return manualOccurrenceRecord{
		SourceKey:      occ.SourceKey,
		ProgramNodeID:  occ.ProgramNodeID,
		Title:          occ.Title,
		Timezone:       occ.Timezone,
		LocalDate:      occ.LocalDate,
		LocalStartTime: occ.LocalStartTime,
		LocalEndTime:   occ.LocalEndTime,
		StartsAtUTC:    occ.StartsAtUTC,
		EndsAtUTC:      occ.EndsAtUTC,
		Status:         occ.Status,
		Metadata:       occ.Metadata,
	}
}

func (r manualOccurrenceRecord) toOccurrence() recurrence.Occurrence {
	return recurrence.Occurrence{
		SourceKey:      r.SourceKey,
		SourceType:     recurrence.SourceManual,
		ProgramNodeID:  r.ProgramNodeID,
		Title:          r.Title,
		Timezone:       r.Timezone,
		LocalDate:      r.LocalDate,
		LocalStartTime: r.LocalStartTime,
		LocalEndTime:   r.LocalEndTime,
		StartsAtUTC:    r.StartsAtUTC,
		EndsAtUTC:      r.EndsAtUTC,
		Status:         r.Status,
		Metadata:       r.Metadata,
	}
}
