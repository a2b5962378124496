package database

import (
	"fmt"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/imamnura/warung-enin-sub000/internal/database/models"
)

func NewConnection(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DSN is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Customer{},
		&models.Menu{},
		&models.StoreSetting{},
		&models.Promo{},
		&models.PromoUsage{},
		&models.Order{},
		&models.OrderItem{},
		&models.Payment{},
	)
}

// SeedAccount is a staff login created on first boot if missing.
type SeedAccount struct {
	Username string
	Password string
	Role     string
}

// Seed makes sure the store settings row and the bootstrap staff
// accounts exist. It never overwrites rows that are already there.
func Seed(db *gorm.DB, accounts []SeedAccount) error {
	var count int64
	if err := db.Model(&models.StoreSetting{}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		setting := models.StoreSetting{
			StoreName:            "Warung Enin",
			BaseDeliveryFee:      5000,
			NonMemberDeliveryFee: 2000,
			MemberDeliveryFee:    0,
		}
		if err := db.Create(&setting).Error; err != nil {
			return err
		}
	}

	for _, acc := range accounts {
		var existing int64
		if err := db.Model(&models.User{}).Where("username = ?", acc.Username).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(acc.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		user := models.User{Username: acc.Username, Password: string(hash), FullName: acc.Username, Role: acc.Role, IsActive: true}
		if err := db.Create(&user).Error; err != nil {
			return err
		}
		log.Printf("Seeded %s account %q", acc.Role, acc.Username)
	}
	return nil
}
