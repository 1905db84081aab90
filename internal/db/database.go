package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lyrix/internal/config"
	"lyrix/internal/models"
)

type Client struct {
	DB *gorm.DB
}

// Dialector picks the gorm driver for the configured database.
func Dialector(cfg *config.Config) (gorm.Dialector, error) {
	switch cfg.Database.Driver {
	case "", "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			cfg.Database.Host,
			cfg.Database.User,
			cfg.Database.Password,
			cfg.Database.Name,
			cfg.Database.Port,
		)
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(cfg.Database.Path), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

func New(cfg *config.Config) *Client {
	dialector, err := Dialector(cfg)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}

	// Connection Pool Settings
	sqlDB, _ := db.DB()
	if cfg.Database.Driver == "sqlite" {
		// sqlite serialises writers anyway; one connection avoids SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Printf("✅ Database Connected (%s)", dialector.Name())

	return &Client{DB: db}
}

// NewInMemory opens a private sqlite database in RAM and migrates it. Used by tests and
// the CLI replay tooling.
func NewInMemory(name string) (*Client, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open in-memory db: %w", err)
	}
	c := &Client{DB: db}
	if err := c.Migrate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Migrate creates/updates tables based on struct definitions
func (c *Client) Migrate() error {
	return c.DB.AutoMigrate(
		&models.Users{},
		&models.Song{},
		&models.LyricLine{},
		&models.TimecodeCorrection{},
		&models.TransportSnapshot{},
	)
}

// AutoMigrate runs Migrate and exits on failure.
func (c *Client) AutoMigrate() {
	log.Println("Running Database Migrations...")
	if err := c.Migrate(); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("✅ Migrations Complete")
}
