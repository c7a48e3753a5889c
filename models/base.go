package models

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LockForUpdate adds SELECT ... FOR UPDATE on dialects that support it.
// SQLite has a single writer, so the plain query is already serialized.
func LockForUpdate(tx *gorm.DB) *gorm.DB {
	switch tx.Dialector.Name() {
	case "mysql", "postgres":
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// LockForUpdateSkipLocked is LockForUpdate with SKIP LOCKED, for queue claims.
func LockForUpdateSkipLocked(tx *gorm.DB) *gorm.DB {
	switch tx.Dialector.Name() {
	case "mysql", "postgres":
		return tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}
	return tx
}

// lockOrCreate returns the row matching query under a row lock, inserting
// seed first when it does not exist. A concurrent insert of the same unique
// key is absorbed by ON CONFLICT DO NOTHING and the winner's row is locked.
func lockOrCreate[T any](tx *gorm.DB, seed *T, query string, args ...interface{}) (*T, error) {
	var row T
	err := LockForUpdate(tx).Where(query, args...).First(&row).Error
	if err == nil {
		return &row, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(seed).Error; err != nil {
		return nil, err
	}
	var created T
	if err := LockForUpdate(tx).Where(query, args...).First(&created).Error; err != nil {
		return nil, err
	}
	return &created, nil
}

// lockById loads a row by id under a row lock; missing rows become *NotFoundError.
func lockById[T any](tx *gorm.DB, entity string, id int) (*T, error) {
	var row T
	if err := LockForUpdate(tx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError(entity, id)
		}
		return nil, err
	}
	return &row, nil
}

// getById is the non-locking variant used for reads outside a transaction.
func getById[T any](db *gorm.DB, entity string, id int) (*T, error) {
	var row T
	if err := db.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError(entity, id)
		}
		return nil, err
	}
	return &row, nil
}
