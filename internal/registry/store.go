package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotStarted is returned by store calls made before Start.
var ErrNotStarted = errors.New("registry not started")

// Config selects the database backing the registry.
type Config struct {
	Driver string
	// Path is the sqlite database file.
	Path string
	// DSN is the postgres connection string.
	DSN string
}

// Store persists presigned files and their confirmation state.
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	Register(ctx context.Context, files []File) error
	Confirm(ctx context.Context, uuids []string) (int, error)
	Get(ctx context.Context, uuid string) (*File, error)
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg Config
	db  *gorm.DB
	now func() time.Time
}

func NewStore(log logrus.FieldLogger, cfg Config) Store {
	return &store{
		log: log.WithField("component", "registry"),
		cfg: cfg,
		now: time.Now,
	}
}

// Start opens the database connection and runs migrations.
func (s *store) Start(ctx context.Context) error {
	var dialector gorm.Dialector

	switch s.cfg.Driver {
	case "sqlite", "":
		dialector = sqlite.Open(s.cfg.Path)
	case "postgres":
		dialector = postgres.Open(s.cfg.DSN)
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&File{}); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.db = db
	s.log.WithField("driver", s.cfg.Driver).Info("Database connected")

	return nil
}

// Stop closes the underlying database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

// Register inserts files as pending.
func (s *store) Register(ctx context.Context, files []File) error {
	if s.db == nil {
		return ErrNotStarted
	}
	if len(files) == 0 {
		return nil
	}

	for i := range files {
		files[i].State = StatePending
		files[i].ConfirmedAt = nil
	}

	if err := s.db.WithContext(ctx).Create(&files).Error; err != nil {
		return fmt.Errorf("registering files: %w", err)
	}

	return nil
}

// Confirm marks the pending files among uuids as confirmed and returns how
// many of the listed files are confirmed afterwards. Unknown uuids are
// ignored and repeating a call yields the same count.
func (s *store) Confirm(ctx context.Context, uuids []string) (int, error) {
	if s.db == nil {
		return 0, ErrNotStarted
	}
	if len(uuids) == 0 {
		return 0, nil
	}

	var confirmed int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()

		if err := tx.Model(&File{}).
			Where("uuid IN ? AND state = ?", uuids, StatePending).
			Updates(map[string]any{"state": StateConfirmed, "confirmed_at": &now}).Error; err != nil {
			return err
		}

		return tx.Model(&File{}).
			Where("uuid IN ? AND state = ?", uuids, StateConfirmed).
			Count(&confirmed).Error
	})
	if err != nil {
		return 0, fmt.Errorf("confirming files: %w", err)
	}

	s.log.WithField("requested", len(uuids)).
		WithField("confirmed", confirmed).
		Debug("Files confirmed")

	return int(confirmed), nil
}

func (s *store) Get(ctx context.Context, uuid string) (*File, error) {
	if s.db == nil {
		return nil, ErrNotStarted
	}

	var file File
	if err := s.db.WithContext(ctx).
		Where("uuid = ?", uuid).
		First(&file).Error; err != nil {
		return nil, fmt.Errorf("getting file %s: %w", uuid, err)
	}

	return &file, nil
}
