package db

import (
	"errors"
	"fmt"
	"log/slog"

	"pingpoint/models"

	"gorm.io/gorm"
)

// Migration is a named forward-only schema step.
type Migration struct {
	Name string
	Up   func(tx *gorm.DB) error
}

// legacyForeignKeys are the cascade constraints once added by hand on
// postgres. AutoMigrate now creates the same keys from the model
// associations on every dialect.
var legacyForeignKeys = []struct {
	table, name string
}{
	{"profile_items", "fk_profile_items_user_id"},
	{"mood_badges", "fk_mood_badges_user_id"},
	{"locations", "fk_locations_user_id"},
	{"user_status", "fk_user_status_user_id"},
	{"pings", "fk_pings_user_id"},
	{"connections", "fk_connections_from_user_id"},
	{"connections", "fk_connections_to_user_id"},
	{"validation_requests", "fk_validation_requests_from_user_id"},
	{"validation_requests", "fk_validation_requests_to_user_id"},
	{"validation_records", "fk_validation_records_validated_user_id"},
	{"validation_records", "fk_validation_records_validator_user_id"},
	{"validation_records", "fk_validation_records_request_id"},
}

// PostgresMigrations run after AutoMigrate on postgres only.
var PostgresMigrations = []Migration{
	{Name: "0001_earthdistance_extensions", Up: CreateEarthExtensions},
	{Name: "0003_earth_gist_indexes", Up: CreateEarthIndexes},
	{Name: "0004_coordinate_range_checks", Up: CreateCoordinateChecks},
	{Name: "0005_drop_legacy_cascade_keys", Up: DropLegacyForeignKeys},
}

// Migrate creates the schema and applies pending named migrations.
func Migrate(orm *gorm.DB, log *slog.Logger) error {
	if err := orm.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if Dialect(orm) != DriverPostgres {
		return nil
	}
	return Apply(orm, log, PostgresMigrations)
}

// Apply runs each migration not yet recorded in the migrations table, each in its own transaction.
func Apply(orm *gorm.DB, log *slog.Logger, migrations []Migration) error {
	for _, m := range migrations {
		var applied models.Migration
		err := orm.Where("name = ?", m.Name).First(&applied).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("check migration %s: %w", m.Name, err)
		}

		err = orm.Transaction(func(tx *gorm.DB) error {
			if err := m.Up(tx); err != nil {
				return err
			}
			return tx.Create(&models.Migration{Name: m.Name}).Error
		})
		if err != nil {
			return fmt.Errorf("migration %s: %w", m.Name, err)
		}
		log.Info("migration applied", "name", m.Name)
	}
	return nil
}

func CreateEarthExtensions(tx *gorm.DB) error {
	for _, ext := range []string{"cube", "earthdistance"} {
		if err := tx.Exec("CREATE EXTENSION IF NOT EXISTS " + ext).Error; err != nil {
			return fmt.Errorf("failed to create extension %s: %w", ext, err)
		}
	}
	return nil
}

// DropLegacyForeignKeys removes the hand-made duplicates of the
// association constraints. Fresh databases never had them.
func DropLegacyForeignKeys(tx *gorm.DB) error {
	for _, fk := range legacyForeignKeys {
		stmt := fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s", fk.table, fk.name)
		if err := tx.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to drop foreign key %s: %w", fk.name, err)
		}
	}
	return nil
}

// CreateEarthIndexes backs the earth_box containment test of Within.
func CreateEarthIndexes(tx *gorm.DB) error {
	for _, table := range []string{"locations", "pings"} {
		indexName := fmt.Sprintf("idx_%s_earth", table)
		createIndexSQL := fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS %s ON %s USING gist (ll_to_earth(latitude, longitude))",
			indexName, table,
		)
		if err := tx.Exec(createIndexSQL).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", indexName, err)
		}
	}
	return nil
}

func CreateCoordinateChecks(tx *gorm.DB) error {
	for _, table := range []string{"locations", "pings"} {
		name := fmt.Sprintf("%s_coordinates_check", table)
		stmt := fmt.Sprintf(`
		DO $$
		BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = '%[1]s') THEN
				ALTER TABLE %[2]s ADD CONSTRAINT %[1]s
					CHECK (latitude BETWEEN -90 AND 90 AND longitude BETWEEN -180 AND 180);
			END IF;
		END
		$$;
		`, name, table)
		if err := tx.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create check %s: %w", name, err)
		}
	}
	return nil
}
