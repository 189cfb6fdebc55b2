// Package storage provides the wheel catalog using GORM and SQLite: a record
// of every archive published into the index and of every resolved build plan.
package storage

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Sentinel errors, defined as values so callers can compare with errors.Is.
var (
	ErrNotFound     = errors.New("catalog record not found")
	ErrEmptyPackage = errors.New("package name cannot be empty")
	ErrEmptyPlan    = errors.New("build plan cannot be empty")
)

// Wheel is one archive published into the index under one package name. An
// archive published under both its natural identity and an alias appears
// twice, once per published name, with identical hashes.
type Wheel struct {
	ID uint `gorm:"primaryKey"`

	Package  string `gorm:"not null;index:idx_wheel_package;uniqueIndex:idx_unique_wheel"`
	Filename string `gorm:"not null;uniqueIndex:idx_unique_wheel"`
	SHA256   string `gorm:"not null"`
	Size     int64  `gorm:"not null"`

	IndexedAt time.Time `gorm:"not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the table name for GORM.
func (Wheel) TableName() string {
	return "wheels"
}

// BuildPlan is a resolved, topologically ordered package list as handed to
// the build executor, stored as the emitted JSON.
type BuildPlan struct {
	ID           uint   `gorm:"primaryKey"`
	PackageCount int    `gorm:"not null"`
	Packages     string `gorm:"type:json;not null"` // JSON blob, the plan as emitted

	CreatedAt time.Time
}

// TableName overrides the table name for GORM.
func (BuildPlan) TableName() string {
	return "build_plans"
}

// Store defines the catalog operations.
type Store interface {
	Close() error
	RecordWheel(pkg, filename, sha256 string, size int64) error
	GetWheel(pkg, filename string) (*Wheel, error)
	ListWheels() ([]*Wheel, error)
	ListByPackage(pkg string) ([]*Wheel, error)
	RecordPlan(planJSON []byte, packageCount int) error
	LatestPlan() (*BuildPlan, error)
	GetStats() (map[string]interface{}, error)
}

// DB wraps gorm.DB with catalog operations.
type DB struct {
	db *gorm.DB
}

// Config holds database configuration.
type Config struct {
	DatabasePath string
	LogLevel     string // silent, error, warn, info
}

// InitDB opens the catalog database and runs migrations.
func InitDB(cfg Config) (*DB, error) {
	logLevel := logger.Silent
	switch cfg.LogLevel {
	case "error":
		logLevel = logger.Error
	case "warn":
		logLevel = logger.Warn
	case "info":
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(cfg.DatabasePath), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&Wheel{}, &BuildPlan{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	return sqlDB.Close()
}

// RecordWheel upserts a published archive keyed by (package, filename).
func (d *DB) RecordWheel(pkg, filename, sha256 string, size int64) error {
	if pkg == "" {
		return ErrEmptyPackage
	}
	if filename == "" {
		return fmt.Errorf("filename cannot be empty for package %s", pkg)
	}

	wheel := Wheel{
		Package:   pkg,
		Filename:  filename,
		SHA256:    sha256,
		Size:      size,
		IndexedAt: time.Now().UTC(),
	}

	err := d.db.Where(Wheel{Package: pkg, Filename: filename}).
		Assign(map[string]interface{}{
			"sha256":     sha256,
			"size":       size,
			"indexed_at": wheel.IndexedAt,
		}).
		FirstOrCreate(&wheel).Error
	if err != nil {
		return fmt.Errorf("failed to record wheel %s/%s: %w", pkg, filename, err)
	}
	return nil
}

// GetWheel returns a single catalog record, or ErrNotFound.
func (d *DB) GetWheel(pkg, filename string) (*Wheel, error) {
	var wheel Wheel
	err := d.db.Where("package = ? AND filename = ?", pkg, filename).First(&wheel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query wheel %s/%s: %w", pkg, filename, err)
	}
	return &wheel, nil
}

// ListWheels returns every catalog record ordered by package then filename.
func (d *DB) ListWheels() ([]*Wheel, error) {
	var wheels []*Wheel
	if err := d.db.Order("package, filename").Find(&wheels).Error; err != nil {
		return nil, fmt.Errorf("failed to list wheels: %w", err)
	}
	return wheels, nil
}

// ListByPackage returns the catalog records for one published package name.
func (d *DB) ListByPackage(pkg string) ([]*Wheel, error) {
	if pkg == "" {
		return nil, ErrEmptyPackage
	}
	var wheels []*Wheel
	if err := d.db.Where("package = ?", pkg).Order("filename").Find(&wheels).Error; err != nil {
		return nil, fmt.Errorf("failed to list wheels for %s: %w", pkg, err)
	}
	return wheels, nil
}

// RecordPlan stores an emitted build plan.
func (d *DB) RecordPlan(planJSON []byte, packageCount int) error {
	if len(planJSON) == 0 {
		return ErrEmptyPlan
	}
	plan := BuildPlan{
		PackageCount: packageCount,
		Packages:     string(planJSON),
	}
	if err := d.db.Create(&plan).Error; err != nil {
		return fmt.Errorf("failed to record build plan: %w", err)
	}
	return nil
}

// LatestPlan returns the most recently recorded build plan, or ErrNotFound.
func (d *DB) LatestPlan() (*BuildPlan, error) {
	var plan BuildPlan
	err := d.db.Order("id DESC").First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest build plan: %w", err)
	}
	return &plan, nil
}

// GetStats returns catalog summary counters.
func (d *DB) GetStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var wheelCount int64
	if err := d.db.Model(&Wheel{}).Count(&wheelCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count wheels: %w", err)
	}
	stats["total_wheels"] = wheelCount

	var packageCount int64
	if err := d.db.Model(&Wheel{}).Distinct("package").Count(&packageCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count packages: %w", err)
	}
	stats["total_packages"] = packageCount

	var planCount int64
	if err := d.db.Model(&BuildPlan{}).Count(&planCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count build plans: %w", err)
	}
	stats["total_plans"] = planCount

	return stats, nil
}
