package store

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vistorias/pkg/apperr"
)

// Store is the persistence layer for every entity, backed by gorm.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the handle for migrations and health checks.
func (s *Store) DB() *gorm.DB { return s.db }

// Ping reports readiness for the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Page bounds a list query.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) apply(q *gorm.DB) *gorm.DB {
	limit := p.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}
	return q.Limit(limit).Offset(offset)
}

// lockingUpdate is SELECT ... FOR UPDATE on MySQL; the SQLite dialect drops it.
var lockingUpdate = clause.Locking{Strength: "UPDATE"}

func (s *Store) ctx(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// mapErr converts gorm errors into apperr codes; what names the entity.
func mapErr(err error, what string) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound(what)
	case isDuplicate(err):
		return apperr.AlreadyExists(what + " já cadastrado(a)")
	default:
		return apperr.Database(err)
	}
}

// isDuplicate recognizes unique violations from both MySQL and the modernc
// SQLite driver, whose errors gorm does not translate.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "Duplicate entry")
}

func like(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}
