package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pingpoint/config"
	"pingpoint/logger"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
	"gorm.io/plugin/dbresolver"
)

const (
	DriverPostgres = config.DriverPostgres
	DriverSQLite   = config.DriverSQLite
)

// Options returns the gorm settings shared by every pool.
func Options(log *slog.Logger) *gorm.Config {
	return &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
		TranslateError: true,
		Logger:         logger.Gorm(log),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// SQLite opens a sqlite dialector with geo_distance available and foreign
// keys enforced on every connection.
func SQLite(dsn string) gorm.Dialector {
	registerSQLiteGeo()
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return sqlite.New(sqlite.Config{DriverName: SQLiteGeoDriver, DSN: dsn + sep + "_foreign_keys=on"})
}

// ConnectDB opens the pool described by conf. The caller owns the returned
// handle and closes it on shutdown with Close.
func ConnectDB(conf *config.ConfigSchema, log *slog.Logger) (*gorm.DB, error) {
	dbConf := conf.Database

	var dialector gorm.Dialector
	switch dbConf.Driver {
	case DriverPostgres:
		dialector = postgres.Open(dbConf.DSN())
	case DriverSQLite:
		dialector = SQLite(dbConf.File + "?_busy_timeout=5000")
	default:
		return nil, fmt.Errorf("unsupported db driver %q", dbConf.Driver)
	}

	orm, err := gorm.Open(dialector, Options(log))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dbConf.Driver, err)
	}

	if dbConf.Driver == DriverPostgres && len(dbConf.Replicas) > 0 {
		replicas := make([]gorm.Dialector, 0, len(dbConf.Replicas))
		for _, r := range dbConf.Replicas {
			replicas = append(replicas, postgres.Open(r.DSN()))
		}
		err = orm.Use(dbresolver.Register(dbresolver.Config{
			Replicas: replicas,
			Policy:   dbresolver.RandomPolicy{},
		}))
		if err != nil {
			return nil, fmt.Errorf("register replicas: %w", err)
		}
		log.Info("read replicas registered", "count", len(replicas))
	}

	sqlDB, err := orm.DB()
	if err != nil {
		return nil, err
	}
	maxOpen := dbConf.MaxOpenConns
	if dbConf.Driver == DriverSQLite {
		maxOpen = 1
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(dbConf.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(dbConf.ConnMaxLifetime)

	log.Info("database connected", "driver", dbConf.Driver)
	return orm, nil
}

// Close releases the pool.
func Close(orm *gorm.DB) error {
	sqlDB, err := orm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks that the primary is reachable.
func Ping(ctx context.Context, orm *gorm.DB) error {
	sqlDB, err := orm.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Read returns a session routed to a replica when replicas are configured.
// The session is safe to reuse: every chained call starts from a fresh
// statement.
func Read(ctx context.Context, orm *gorm.DB) *gorm.DB {
	return orm.WithContext(ctx).Clauses(dbresolver.Read).Session(&gorm.Session{})
}

// Write returns a reusable session pinned to the primary.
func Write(ctx context.Context, orm *gorm.DB) *gorm.DB {
	return orm.WithContext(ctx).Clauses(dbresolver.Write).Session(&gorm.Session{})
}

// Dialect names the driver behind orm, as used by Within and DistanceMeters.
func Dialect(orm *gorm.DB) string {
	if orm.Dialector.Name() == "postgres" {
		return DriverPostgres
	}
	return DriverSQLite
}
