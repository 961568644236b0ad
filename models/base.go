package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/homerly/rental_backend/config"
	"github.com/homerly/rental_backend/repository"
	"github.com/homerly/rental_backend/utils"
	"gorm.io/gorm"
)

// BaseModel holds identity and audit columns. Every entity embeds it.
type BaseModel struct {
	ID        uuid.UUID      `gorm:"type:char(36);primaryKey" json:"id"`
	IsDeleted bool           `gorm:"not null;default:false" json:"is_deleted"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	CreatedBy uuid.UUID      `gorm:"type:char(36)" json:"created_by"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	UpdatedBy *uuid.UUID     `gorm:"type:char(36)" json:"updated_by,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	DeletedBy *uuid.UUID     `gorm:"type:char(36)" json:"-"`
}

func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

func (b *BaseModel) MarkDeleted(actor uuid.UUID, at time.Time) {
	b.IsDeleted = true
	b.DeletedAt = gorm.DeletedAt{Time: at, Valid: true}
	b.DeletedBy = &actor
	b.UpdatedBy = &actor
}

// touch records actor as the last writer. System writes pass uuid.Nil and
// leave the column untouched.
func (b *BaseModel) touch(actor uuid.UUID) {
	if actor == uuid.Nil {
		return
	}
	b.UpdatedBy = &actor
}

// caller is the authenticated account an operation runs for.
type caller struct {
	Id   uuid.UUID
	Role AccountRole
}

func (c caller) isAdmin() bool {
	return c.Role == AccountRoleAdmin
}

func callerFromContext(ctx context.Context) (caller, error) {
	id, role, err := utils.GetCallerFromContext(ctx)
	if err != nil {
		return caller{}, err
	}
	return caller{Id: id, Role: AccountRole(role)}, nil
}

// transact runs fn in a unit of work on the global connection.
func transact(ctx context.Context, fn func(uow *repository.UnitOfWork) error) error {
	return repository.Transact(ctx, config.GetDB(), fn)
}

func readRepo[T any]() repository.Repository[T] {
	return repository.New[T](config.GetDB())
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

func orderByNewest(db *gorm.DB) *gorm.DB {
	return db.Order("created_at desc")
}

func whereEq(column string, value any) repository.Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(column+" = ?", value)
	}
}
