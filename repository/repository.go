package repository

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/homerly/rental_backend/utils"
	"gorm.io/gorm"
)

// Scope narrows a query. Scopes compose left to right.
type Scope = func(*gorm.DB) *gorm.DB

// Repository is the persistence port every entity is read and written through.
type Repository[T any] interface {
	GetById(ctx context.Context, id uuid.UUID) (*T, error)
	First(ctx context.Context, scopes ...Scope) (*T, error)
	Find(ctx context.Context, scopes ...Scope) ([]T, error)
	Page(ctx context.Context, p Pagination, scopes ...Scope) (*Page[T], error)
	Count(ctx context.Context, scopes ...Scope) (int64, error)
	Insert(ctx context.Context, entity *T) error
	Update(ctx context.Context, entity *T) error
	SoftDelete(ctx context.Context, entity *T, actor uuid.UUID) error
	BulkUpdate(ctx context.Context, ids []uuid.UUID, values map[string]any, scopes ...Scope) (int64, error)
	Restore(ctx context.Context, id uuid.UUID, actor uuid.UUID) (*T, error)
}

// SoftDeleter is implemented by entities that keep deletion audit columns.
type SoftDeleter interface {
	MarkDeleted(actor uuid.UUID, at time.Time)
}

type gormRepository[T any] struct {
	db   *gorm.DB
	name string
}

// New returns the gorm implementation of Repository for T.
func New[T any](db *gorm.DB) Repository[T] {
	return &gormRepository[T]{db: db, name: entityName[T]()}
}

func (r *gormRepository[T]) query(ctx context.Context, scopes ...Scope) *gorm.DB {
	return r.db.WithContext(ctx).Model(new(T)).Scopes(scopes...)
}

func (r *gormRepository[T]) GetById(ctx context.Context, id uuid.UUID) (*T, error) {
	if id == uuid.Nil {
		return nil, utils.NotFoundError("%s not found", r.name)
	}
	return r.First(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ?", id)
	})
}

func (r *gormRepository[T]) First(ctx context.Context, scopes ...Scope) (*T, error) {
	var result T
	err := r.query(ctx, scopes...).First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NotFoundError("%s not found", r.name)
	}
	if err != nil {
		return nil, utils.InternalError("failed to load "+r.name, err)
	}
	return &result, nil
}

func (r *gormRepository[T]) Find(ctx context.Context, scopes ...Scope) ([]T, error) {
	var results []T
	if err := r.query(ctx, scopes...).Find(&results).Error; err != nil {
		return nil, utils.InternalError("failed to query "+r.name, err)
	}
	return results, nil
}

func (r *gormRepository[T]) Count(ctx context.Context, scopes ...Scope) (int64, error) {
	var total int64
	if err := r.query(ctx, scopes...).Count(&total).Error; err != nil {
		return 0, utils.InternalError("failed to count "+r.name, err)
	}
	return total, nil
}

func (r *gormRepository[T]) Page(ctx context.Context, p Pagination, scopes ...Scope) (*Page[T], error) {
	p = p.Normalize()
	total, err := r.Count(ctx, scopes...)
	if err != nil {
		return nil, err
	}
	items := make([]T, 0)
	if total > 0 {
		if err := r.query(ctx, scopes...).Offset(p.Offset()).Limit(p.PageSize).Find(&items).Error; err != nil {
			return nil, utils.InternalError("failed to query "+r.name, err)
		}
	}
	return &Page[T]{Items: items, Page: p.Page, PageSize: p.PageSize, Total: total}, nil
}

func (r *gormRepository[T]) Insert(ctx context.Context, entity *T) error {
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return utils.ConflictError("%s already exists", r.name)
		}
		return utils.InternalError("failed to create "+r.name, err)
	}
	return nil
}

func (r *gormRepository[T]) Update(ctx context.Context, entity *T) error {
	if err := r.db.WithContext(ctx).Save(entity).Error; err != nil {
		return utils.InternalError("failed to update "+r.name, err)
	}
	return nil
}

func (r *gormRepository[T]) SoftDelete(ctx context.Context, entity *T, actor uuid.UUID) error {
	now := time.Now().UTC()
	err := r.db.WithContext(ctx).Model(entity).Updates(map[string]any{
		"is_deleted": true,
		"deleted_at": now,
		"deleted_by": actor,
		"updated_by": actor,
	}).Error
	if err != nil {
		return utils.InternalError("failed to delete "+r.name, err)
	}
	if d, ok := any(entity).(SoftDeleter); ok {
		d.MarkDeleted(actor, now)
	}
	return nil
}

// BulkUpdate writes values to the rows in ids that also match scopes. Rows
// changed elsewhere since they were read are skipped when scopes pin their state.
func (r *gormRepository[T]) BulkUpdate(ctx context.Context, ids []uuid.UUID, values map[string]any, scopes ...Scope) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.query(ctx, scopes...).Where("id IN ?", ids).Updates(values)
	if result.Error != nil {
		return 0, utils.InternalError("failed to update "+r.name, result.Error)
	}
	return result.RowsAffected, nil
}

// Restore clears the soft delete markers of id and returns the live row.
func (r *gormRepository[T]) Restore(ctx context.Context, id uuid.UUID, actor uuid.UUID) (*T, error) {
	result := r.db.WithContext(ctx).Unscoped().Model(new(T)).
		Where("id = ? AND is_deleted = ?", id, true).
		Updates(map[string]any{
			"is_deleted": false,
			"deleted_at": nil,
			"deleted_by": nil,
			"updated_by": actor,
		})
	if result.Error != nil {
		return nil, utils.InternalError("failed to restore "+r.name, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, utils.NotFoundError("deleted %s not found", r.name)
	}
	return r.GetById(ctx, id)
}

// entityName turns "UtilityReading" into "utility reading" for messages.
func entityName[T any]() string {
	name := reflect.TypeOf((*T)(nil)).Elem().Name()
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte(' ')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
