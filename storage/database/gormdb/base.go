package gormrepos

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"

	"github.com/ecolehub/backend/core"
)

type txKey struct{}

// Transactor opens gorm transactions. Repositories called with the ctx given to
// fn use the transaction; nested calls join the outer one.
type Transactor struct {
	db *gorm.DB
}

var _ core.Transactor = (*Transactor)(nil)

func NewTransactor(db *gorm.DB) *Transactor {
	return &Transactor{db: db}
}

func (t *Transactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// repo is embedded by every repository.
type repo struct {
	db *gorm.DB
}

func (r repo) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

// trapNotFound maps gorm's "record not found" to notFound.
func trapNotFound(err error, notFound error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// updated fails with notFound when res touched no row.
func updated(res *gorm.DB, notFound error, msg string) error {
	if res.Error != nil {
		return errors.Wrap(res.Error, msg)
	}
	if res.RowsAffected == 0 {
		return notFound
	}
	return nil
}

// orderBy renders the allowed orderings as an ORDER BY clause, or def when none is left.
func orderBy(ordering []core.DBOrdering, allowed map[string]string, def string) string {
	cleaned := core.CleanOrdering(ordering, allowed)
	if len(cleaned) == 0 {
		return def
	}
	orderList := make([]string, 0, len(cleaned))
	for _, ord := range cleaned {
		orderList = append(orderList, ord.String())
	}
	return strings.Join(orderList, ", ")
}

func ilike(s string) string {
	return "%" + s + "%"
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

func date(s string) time.Time {
	t, _ := core.ParseDate(s)
	return t
}

func nullDate(s string) null.Time {
	t, err := core.ParseDate(s)
	return null.NewTime(t, err == nil)
}

func dateString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(core.DateLayout)
}

func nullDateString(t null.Time) string {
	if !t.Valid {
		return ""
	}
	return dateString(t.Time)
}

func nullTime(t *time.Time) null.Time {
	if t == nil {
		return null.Time{}
	}
	return null.TimeFrom(t.UTC())
}
