package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/decipherworld/classroom-server/internal/logger"
	"go.uber.org/zap"
)

// acquireMigrationLock takes an exclusive file lock for schema migration
func acquireMigrationLock(dbPath string) (*os.File, error) {
	lockPath := dbPath + ".migration.lock"

	for i := 0; i < 30; i++ {
		lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
		if err == nil {
			logger.Debug("migration lock acquired", zap.String("lock", lockPath))
			return lockFile, nil
		}

		// A lock older than 5 minutes belongs to a dead process
		if info, err := os.Stat(lockPath); err == nil {
			if time.Since(info.ModTime()) > 5*time.Minute {
				logger.Warn("removing stale migration lock", zap.String("lock", lockPath))
				os.Remove(lockPath)
				continue
			}
		}

		logger.Debug("waiting for migration lock", zap.Int("attempt", i+1))
		time.Sleep(1 * time.Second)
	}

	return nil, fmt.Errorf("could not acquire migration lock, another process may be migrating")
}

// releaseMigrationLock releases and removes the lock file
func releaseMigrationLock(lockFile *os.File) {
	if lockFile == nil {
		return
	}

	lockPath := lockFile.Name()
	lockFile.Close()
	os.Remove(lockPath)
	logger.Debug("migration lock released", zap.String("lock", lockPath))
}

// getDBPath resolves the sqlite file path, empty for server databases
func getDBPath() string {
	if DB == nil {
		return "./data/classroom.db"
	}

	switch DB.Dialector.Name() {
	case "sqlite", "sqlite3":
		if sqlDB, err := DB.DB(); err == nil {
			row := sqlDB.QueryRow("PRAGMA database_list")
			var seq int
			var name, file string
			if err := row.Scan(&seq, &name, &file); err == nil && file != "" {
				return file
			}
		}
		return "./data/classroom.db"
	default:
		return ""
	}
}

// CleanupStaleLocks removes lock files left behind by crashed processes
func CleanupStaleLocks() {
	patterns := []string{
		"./data/*.lock",
		"./*.lock",
	}

	for _, pattern := range patterns {
		matches, _ := filepath.Glob(pattern)
		for _, lockFile := range matches {
			if info, err := os.Stat(lockFile); err == nil {
				if time.Since(info.ModTime()) > 10*time.Minute {
					logger.Info("removing stale lock file", zap.String("file", lockFile))
					os.Remove(lockFile)
				}
			}
		}
	}
}
