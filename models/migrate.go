package models

import "gorm.io/gorm"

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Account{},
		&Property{},
		&Tenancy{},
		&UtilityReading{},
		&Invoice{},
		&Payment{},
		&PropertyReport{},
		&ChatMessage{},
	)
}
