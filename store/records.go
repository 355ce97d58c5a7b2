package store

import (
	"fmt"
	"maps"
	"reflect"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bonkers-airdrop/models"
)

// Tx is the record API available inside a MutateUser callback. Every call
// joins the callback's database transaction.
type Tx interface {
	CreateRecord(rec models.Record) error
	FindRecord(collection models.Collection, filter map[string]any, out models.Record) error
	ListRecords(collection models.Collection, q Query, out any) error
	UpdateRecord(collection models.Collection, id string, fields map[string]any) error
}

// records implements the collection operations on top of one *gorm.DB
// handle, either a plain session or an open transaction.
type records struct {
	db *gorm.DB
}

func (r records) CreateRecord(rec models.Record) error {
	if rec == nil {
		return fmt.Errorf("%w: nil record", ErrInvalidQuery)
	}
	if _, err := schemaFor(rec.Collection()); err != nil {
		return err
	}
	if rec.Collection() == models.CollectionUser {
		return fmt.Errorf("%w: users are created on first authentication", ErrFieldNotWritable)
	}
	return classify(r.db.Create(rec).Error)
}

func (r records) FindRecord(collection models.Collection, filter map[string]any, out models.Record) error {
	schema, err := schemaFor(collection)
	if err != nil {
		return err
	}
	if out.Collection() != collection {
		return fmt.Errorf("%w: %T is not a %s record", ErrInvalidQuery, out, collection)
	}
	if len(filter) == 0 {
		return fmt.Errorf("%w: empty filter", ErrInvalidQuery)
	}
	if err := schema.validate(Query{Filter: filter}); err != nil {
		return err
	}
	return classify(r.db.Where(maps.Clone(filter)).Take(out).Error)
}

func (r records) ListRecords(collection models.Collection, q Query, out any) error {
	schema, err := schemaFor(collection)
	if err != nil {
		return err
	}
	if err := schema.validate(q); err != nil {
		return err
	}
	if err := checkSliceOf(out, schema.model()); err != nil {
		return err
	}

	tx := r.db.Model(schema.model())
	if len(q.Filter) > 0 {
		tx = tx.Where(maps.Clone(q.Filter))
	}
	switch {
	case q.AfterID != "":
		tx = tx.Where("created_date > ? OR (created_date = ? AND id > ?)", q.CreatedAfter, q.CreatedAfter, q.AfterID)
	case !q.CreatedAfter.IsZero():
		tx = tx.Where("created_date >= ?", q.CreatedAfter)
	}
	if !q.CreatedBefore.IsZero() {
		tx = tx.Where("created_date < ?", q.CreatedBefore)
	}
	if q.Sort != "" {
		column, desc := ParseSort(q.Sort)
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: desc})
	}
	tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}})
	return classify(tx.Limit(q.limit()).Find(out).Error)
}

func (r records) UpdateRecord(collection models.Collection, id string, fields map[string]any) error {
	schema, err := schemaFor(collection)
	if err != nil {
		return err
	}
	if schema.immutable {
		return fmt.Errorf("%w: %s", ErrImmutable, collection)
	}
	if collection == models.CollectionUser {
		return fmt.Errorf("%w: use UpdateUser", ErrFieldNotWritable)
	}
	if len(fields) == 0 {
		return nil
	}
	for key := range fields {
		if !schema.writable[key] {
			return fmt.Errorf("%w: %s.%s", ErrFieldNotWritable, collection, key)
		}
	}
	res := r.db.Model(schema.model()).Where("id = ?", id).Updates(maps.Clone(fields))
	if res.Error != nil {
		return classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func checkSliceOf(out any, model any) error {
	v := reflect.ValueOf(out)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("%w: out must be a pointer to a slice", ErrInvalidQuery)
	}
	elem := v.Elem().Type().Elem()
	if elem.Kind() == reflect.Pointer {
		elem = elem.Elem()
	}
	if elem != reflect.TypeOf(model).Elem() {
		return fmt.Errorf("%w: cannot list into %s", ErrInvalidQuery, v.Elem().Type())
	}
	return nil
}

var _ Tx = records{}
