// internal/datastore/query.go
//
// Table-scoped query builder. A Table[T] value carries filters, ordering
// and limit; each terminal call (Select, Single, Count, Insert, Update,
// Delete) runs one statement (Update runs its re-read in the same
// transaction) and returns a Result.
//
// Builders are values: chaining never mutates the receiver, so a base
// table can be reused across calls.

package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Table is a typed view over one table.
type Table[T any] struct {
	db      *gorm.DB
	name    string
	filters []clause.Expression
	order   []clause.OrderByColumn
	limit   int
}

// From starts a query against table name, scanning rows into T.
func From[T any](c *Client, name string) Table[T] {
	return Table[T]{db: c.db, name: name}
}

func (t Table[T]) with(e clause.Expression) Table[T] {
	filters := make([]clause.Expression, len(t.filters), len(t.filters)+1)
	copy(filters, t.filters)
	t.filters = append(filters, e)
	return t
}

// Eq filters on column = value.
func (t Table[T]) Eq(column string, value any) Table[T] {
	return t.with(clause.Eq{Column: clause.Column{Name: column}, Value: value})
}

// In filters on column IN (values...). An empty list matches nothing.
func (t Table[T]) In(column string, values ...any) Table[T] {
	return t.with(clause.IN{Column: clause.Column{Name: column}, Values: values})
}

// Order appends a sort key.
func (t Table[T]) Order(column string, desc bool) Table[T] {
	order := make([]clause.OrderByColumn, len(t.order), len(t.order)+1)
	copy(order, t.order)
	t.order = append(order, clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: desc})
	return t
}

// Limit caps the number of rows returned by Select.
func (t Table[T]) Limit(n int) Table[T] {
	t.limit = n
	return t
}

func (t Table[T]) scope(db *gorm.DB) *gorm.DB {
	q := db.Table(t.name)
	for _, f := range t.filters {
		q = q.Where(f)
	}
	for _, o := range t.order {
		q = q.Order(o)
	}
	if t.limit > 0 {
		q = q.Limit(t.limit)
	}
	return q
}

// Select returns all matching rows (an empty slice when none match).
func (t Table[T]) Select(ctx context.Context) Result[[]T] {
	rows := []T{}
	if err := t.scope(t.db.WithContext(ctx)).Find(&rows).Error; err != nil {
		return Fail[[]T](translate(err))
	}
	return Ok(rows)
}

// Single returns the first matching row or ErrNotFound.
func (t Table[T]) Single(ctx context.Context) Result[T] {
	return t.single(t.db.WithContext(ctx))
}

func (t Table[T]) single(db *gorm.DB) Result[T] {
	var rows []T
	if err := t.Limit(1).scope(db).Find(&rows).Error; err != nil {
		return Fail[T](translate(err))
	}
	if len(rows) == 0 {
		return Fail[T](ErrNotFound)
	}
	return Ok(rows[0])
}

// Count returns the number of matching rows.
func (t Table[T]) Count(ctx context.Context) Result[int64] {
	var n int64
	if err := t.scope(t.db.WithContext(ctx)).Count(&n).Error; err != nil {
		return Fail[int64](translate(err))
	}
	return Ok(n)
}

// Insert writes row and returns it with generated fields filled in.
func (t Table[T]) Insert(ctx context.Context, row *T) Result[T] {
	if err := t.db.WithContext(ctx).Table(t.name).Create(row).Error; err != nil {
		return Fail[T](translate(err))
	}
	return Ok(*row)
}

// Update sets values on every row matching the filters and returns the
// first matching row as stored afterwards. Zero matched rows yield
// ErrNotFound and nothing is written. An empty values map only re-reads.
// updated_at is always bumped when something is written.
func (t Table[T]) Update(ctx context.Context, values map[string]any) Result[T] {
	if len(t.filters) == 0 {
		return Fail[T](ErrUnfiltered)
	}
	var out Result[T]
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(values) > 0 {
			set := make(map[string]any, len(values)+1)
			for k, v := range values {
				set[k] = v
			}
			set["updated_at"] = time.Now().UTC()
			res := t.scope(tx).Updates(set)
			if res.Error != nil {
				return translate(res.Error)
			}
			if res.RowsAffected == 0 {
				return ErrNotFound
			}
		}
		out = t.single(tx)
		return out.Err()
	})
	if err != nil {
		return Fail[T](err)
	}
	return out
}

// Delete removes matching rows and returns how many went.
func (t Table[T]) Delete(ctx context.Context) Result[int64] {
	if len(t.filters) == 0 {
		return Fail[int64](ErrUnfiltered)
	}
	res := t.scope(t.db.WithContext(ctx)).Delete(new(T))
	if res.Error != nil {
		return Fail[int64](translate(res.Error))
	}
	return Ok(res.RowsAffected)
}
