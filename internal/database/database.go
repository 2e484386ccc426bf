// Package database persists tool settings between sessions.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/gsnap/extension/internal/config"
)

// ErrNotConnected is returned when the manager has no usable database.
var ErrNotConnected = errors.New("database not connected")

// Setting is one persisted value.
type Setting struct {
	Key       string         `gorm:"primaryKey;size:128"`
	Value     datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time
}

// TableName overrides the gorm default.
func (Setting) TableName() string {
	return "gsnap_settings"
}

// Manager handles the settings database connection.
type Manager struct {
	DB             *gorm.DB
	SqlDB          *sql.DB
	IsValid        bool
	UsingSqlite    bool
	SqliteFilePath string
	Logger         zerolog.Logger

	cfg config.DBConfig
}

// NewManager creates a new database manager.
func NewManager(cfg config.DBConfig, log zerolog.Logger) *Manager {
	return &Manager{
		SqliteFilePath: cfg.SqlitePath,
		Logger:         log,
		cfg:            cfg,
	}
}

// Connect opens the configured database. A Postgres database that cannot be
// reached falls back to SQLite.
func (m *Manager) Connect() error {
	var err error

	switch m.cfg.Type {
	case "postgres":
		m.DB, err = m.GetPostgresDB()
		if err == nil {
			m.SqlDB, err = m.DB.DB()
		}
		if err == nil {
			err = m.SqlDB.Ping()
		}
		if err != nil {
			m.Logger.Error().Err(err).Msg("Failed to connect to Postgres DB, trying SQLite")
			if err := m.connectSqlite(); err != nil {
				return err
			}
		} else {
			m.Logger.Info().Msg("Connected to database")
			m.SqlDB.SetMaxOpenConns(4)
		}
	case "sqlite":
		if err := m.connectSqlite(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown database type: %s", m.cfg.Type)
	}

	m.IsValid = true
	return nil
}

func (m *Manager) connectSqlite() error {
	var err error
	m.UsingSqlite = true
	m.DB, err = m.GetSqliteDB(m.SqliteFilePath)
	if err != nil || m.DB == nil {
		m.IsValid = false
		return fmt.Errorf("failed to get local SQLite DB: %w", err)
	}
	m.SqlDB, err = m.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	return nil
}

// GetPostgresDB returns a connection to the Postgres database.
func (m *Manager) GetPostgresDB() (*gorm.DB, error) {
	dsn := fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		m.cfg.Host,
		m.cfg.Port,
		m.cfg.Username,
		m.cfg.Password,
		m.cfg.Database,
	)

	m.Logger.Debug().Str("host", m.cfg.Host).Str("database", m.cfg.Database).Msg("Connecting to Postgres DB")

	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
}

// GetSqliteDB returns a connection to a SQLite database.
// If path is empty, uses an in-memory database.
func (m *Manager) GetSqliteDB(path string) (*gorm.DB, error) {
	dsn := path
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if path != "" {
		m.Logger.Info().Str("path", path).Msg("Using local SQLite DB")
	} else {
		m.Logger.Info().Msg("Using local SQLite DB in memory, settings will not survive a restart")
	}

	pragmas := []string{
		"PRAGMA user_version = 1;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}

	return db, nil
}

// Setup migrates the settings table.
func (m *Manager) Setup() error {
	if !m.IsValid {
		return ErrNotConnected
	}
	if m.DB.Migrator().HasTable(&Setting{}) {
		return nil
	}
	m.Logger.Info().Msg("Migrating schema")
	if err := m.DB.AutoMigrate(&Setting{}); err != nil {
		m.IsValid = false
		return fmt.Errorf("failed to migrate settings table: %w", err)
	}
	return nil
}

// Get decodes the value stored under key into v. It reports false when no
// value is stored.
func (m *Manager) Get(ctx context.Context, key string, v any) (bool, error) {
	if !m.IsValid {
		return false, ErrNotConnected
	}

	var s Setting
	err := m.DB.WithContext(ctx).Where("key = ?", key).Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading setting %s: %w", key, err)
	}
	if err := json.Unmarshal(s.Value, v); err != nil {
		return false, fmt.Errorf("decoding setting %s: %w", key, err)
	}
	return true, nil
}

// Set stores v under key, replacing any previous value.
func (m *Manager) Set(ctx context.Context, key string, v any) error {
	if !m.IsValid {
		return ErrNotConnected
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding setting %s: %w", key, err)
	}
	s := Setting{Key: key, Value: datatypes.JSON(raw), UpdatedAt: time.Now()}
	err = m.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&s).Error
	if err != nil {
		return fmt.Errorf("writing setting %s: %w", key, err)
	}
	m.Logger.Debug().Str("key", key).Msg("Setting saved")
	return nil
}

// Close releases the connection.
func (m *Manager) Close() error {
	m.IsValid = false
	if m.SqlDB == nil {
		return nil
	}
	return m.SqlDB.Close()
}
