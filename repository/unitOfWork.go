package repository

import (
	"context"

	"gorm.io/gorm"
)

// UnitOfWork is one database transaction. Changes become durable only when
// the function passed to Transact returns nil.
type UnitOfWork struct {
	tx *gorm.DB
}

func (u *UnitOfWork) DB() *gorm.DB {
	return u.tx
}

// Transact runs fn in a transaction. The commit is the last step; any error
// or panic rolls back every change made through uow.
func Transact(ctx context.Context, db *gorm.DB, fn func(uow *UnitOfWork) error) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&UnitOfWork{tx: tx})
	})
}

// For returns the repository of T bound to the unit of work.
func For[T any](uow *UnitOfWork) Repository[T] {
	return New[T](uow.tx)
}
