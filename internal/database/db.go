package database

import (
	"log"

	"makan-backend/internal/config"
	"makan-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Init(cfg *config.Config) *gorm.DB {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("Cannot connect to database: %v", err)
	}

	if err := Migrate(db); err != nil {
		log.Fatalf("AutoMigrate failed: %v", err)
	}

	log.Println("Database connected. Migration complete.")
	return db
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Student{},
		&models.MenuItem{},
		&models.DayReservation{},
		&models.FulfillmentRecord{},
		&models.AuditLog{},
	)
	if err != nil {
		return err
	}

	// Rows imported before emails were normalized would break case-insensitive lookups.
	var mixedCase int64
	db.Raw("SELECT COUNT(*) FROM students WHERE email <> LOWER(email)").Scan(&mixedCase)
	if mixedCase > 0 {
		log.Printf("Lowercasing %d student emails...", mixedCase)
		if err := db.Exec("UPDATE students SET email = LOWER(email) WHERE email <> LOWER(email)").Error; err != nil {
			log.Printf("Student email normalization failed: %v", err)
		}
	}

	return nil
}
