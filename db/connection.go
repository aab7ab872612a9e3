package db

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type DatabaseConnection struct {
	db    *gorm.DB
	sqlDb *sql.DB
}

var Connection = InitDb()

// InitDb opens the configured database and auto-migrates every entity in
// the data model (spec.md §3). DATABASE_URL, when set, always wins over
// database.type=sqlite so a bare connection string is enough to point
// the whole subsystem at Postgres.
func InitDb() *DatabaseConnection {
	viper.AutomaticEnv()

	dsn := viper.GetString("DATABASE_URL")
	dbType := viper.GetString("database.type")
	if dsn != "" {
		dbType = "postgres"
	}
	if dbType == "" {
		dbType = "sqlite"
	}

	var dialector gorm.Dialector
	switch dbType {
	case "sqlite":
		path := viper.GetString("database.sqlite_path")
		if path == "" {
			path = "geogrid.db"
		}
		dialector = sqlite.Open(path)
	case "postgres":
		if dsn == "" {
			log.Fatalf("DATABASE_URL is required for database.type=postgres")
		}
		dialector = postgres.Open(dsn)
	default:
		log.Fatalf("Unknown database type: %s", dbType)
	}

	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
			Colorful:                  false,
		},
	)

	conn, err := newConnection(dialector, newLogger)
	if err != nil {
		panic(err.Error())
	}
	return conn
}

// newConnection opens dialector, auto-migrates every entity in the data
// model, and tunes pool limits. Split out of InitDb so tests can open an
// in-memory sqlite connection without going through viper.
func newConnection(dialector gorm.Dialector, gormLogger logger.Interface) (*DatabaseConnection, error) {
	gormDB, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, err
	}

	if err := gormDB.AutoMigrate(
		&ServiceArea{},
		&Category{},
		&Keyword{},
		&Business{},
		&Scan{},
		&ScanPoint{},
		&ScanRanking{},
		&ReviewSnapshot{},
		&ScanSchedule{},
		&EngineCookie{},
	); err != nil {
		return nil, err
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(80)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &DatabaseConnection{
		db:    gormDB,
		sqlDb: sqlDB,
	}, nil
}

// NewTestConnection opens a fresh, uniquely named in-memory sqlite
// database with the full schema migrated, for use by package tests that
// need a real DatabaseConnection without touching viper or the
// filesystem.
func NewTestConnection() (*DatabaseConnection, error) {
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", time.Now().UnixNano())
	return newConnection(sqlite.Open(dsn), logger.Default.LogMode(logger.Silent))
}

// DB exposes the underlying *gorm.DB for packages that need raw query
// building (queue claim statements, monitor batch updates).
func (d *DatabaseConnection) DB() *gorm.DB {
	return d.db
}

func (d *DatabaseConnection) Close() error {
	return d.sqlDb.Close()
}
