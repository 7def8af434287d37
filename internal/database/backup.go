package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// BackupService periodically snapshots the SQLite database. Snapshots use
// VACUUM INTO so they are consistent even while WAL writers are active.
type BackupService struct {
	db            *DB
	storagePath   string
	interval      time.Duration
	retentionDays int
	logger        *zerolog.Logger
}

func NewBackupService(db *DB, storagePath string, interval time.Duration, retentionDays int, logger *zerolog.Logger) *BackupService {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &BackupService{
		db:            db,
		storagePath:   storagePath,
		interval:      interval,
		retentionDays: retentionDays,
		logger:        logger,
	}
}

// Start runs a backup immediately and then on every interval tick until the
// context is cancelled.
func (s *BackupService) Start(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Str("path", s.storagePath).Msg("backup service started")

	if err := s.Backup(ctx); err != nil {
		s.logger.Error().Err(err).Msg("initial backup failed")
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Backup(ctx); err != nil {
				s.logger.Error().Err(err).Msg("scheduled backup failed")
			}
			s.cleanup()
		}
	}
}

// Backup writes one timestamped snapshot into the storage directory.
func (s *BackupService) Backup(ctx context.Context) error {
	if err := os.MkdirAll(s.storagePath, 0o755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}

	name := fmt.Sprintf("backup_%s.db", time.Now().Format("20060102_150405"))
	target := filepath.Join(s.storagePath, name)

	// VACUUM INTO takes a literal path, not a bind parameter, in older
	// sqlite versions; the path is ours, not user input.
	query := fmt.Sprintf("VACUUM INTO '%s'", strings.ReplaceAll(target, "'", "''"))
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("vacuum into %s: %w", target, err)
	}

	s.logger.Info().Str("path", target).Msg("backup completed")
	return nil
}

// cleanup removes snapshots older than the retention window.
func (s *BackupService) cleanup() {
	if s.retentionDays <= 0 {
		return
	}

	files, err := os.ReadDir(s.storagePath)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read backup directory")
		return
	}

	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	for _, file := range files {
		if file.IsDir() || !strings.HasPrefix(file.Name(), "backup_") {
			continue
		}
		info, err := file.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			s.logger.Info().Str("file", file.Name()).Msg("deleting old backup")
			_ = os.Remove(filepath.Join(s.storagePath, file.Name()))
		}
	}
}
