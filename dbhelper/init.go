package dbhelper

import (
	"fmt"
	"os"
	"time"

	"stylewiseapi/models"
	"stylewiseapi/services"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func SetupDB() *gorm.DB {

	db, err := gorm.Open(postgres.Open(
		fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s",
			services.GetEnv("DB_USERNAME", ""),
			services.GetEnv("DB_PASSWORD", ""),
			services.GetEnv("DB_HOST", ""),
			services.GetEnv("DB_PORT", ""),
			services.GetEnv("DB_NAME", ""),
		),
	), &gorm.Config{})
	sqlDB, err := db.DB()
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(300)
	sqlDB.SetConnMaxLifetime(time.Minute * 5)
	db.Logger.LogMode(logger.LogLevel(logger.Info))
	if err != nil {
		panic(err)
	}
	db.Raw("CREATE EXTENSION if not exists pgcrypto;")
	Migrate(db, &models.UserAccount{})
	Migrate(db, &models.UserPushToken{})
	Migrate(db, &models.ClothingItem{})
	Migrate(db, &models.GeneratedOutfit{})
	Migrate(db, &models.MannequinGeneration{})
	Migrate(db, &models.FeedPost{})
	Migrate(db, &models.FeedPostLike{})
	Migrate(db, &models.FeedPostSave{})

	return db
}

func SetupTestDB() *gorm.DB {
	os.Setenv("DB_USERNAME", "stylewise")
	os.Setenv("DB_PASSWORD", "stylewise")
	os.Setenv("DB_HOST", "localhost")
	os.Setenv("DB_NAME", "stylewise")
	os.Setenv("DB_PORT", "5432")
	os.Setenv("JWT_SECRET", "test-secret")
	os.Setenv("R2_BUCKET_NAME", "stylewise-test")
	return SetupDB()
}
