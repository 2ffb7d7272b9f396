package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// keepBackups bounds how many timestamped config backups are kept.
	keepBackups = 3

	// backupSuffix marks user config backup files.
	backupSuffix = ".bak"
)

// Backup copies the user config to a timestamped file next to it and
// prunes backups beyond keepBackups. It returns the backup path, or an
// empty string when there is no user config to back up.
func Backup() (string, error) {
	src := UserConfigPath()

	data, err := os.ReadFile(src)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read user config: %w", err)
	}

	dst := src + backupSuffix + "." + time.Now().Format("20060102-150405")
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write backup file: %w", err)
	}

	// Pruning is best effort; the backup itself already succeeded.
	pruneBackups()

	return dst, nil
}

// Backups returns the user config's backup files ordered by
// modification time, newest first. A missing config directory yields an
// empty list.
func Backups() ([]string, error) {
	cfgPath := UserConfigPath()
	dir := filepath.Dir(cfgPath)

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	prefix := filepath.Base(cfgPath) + backupSuffix + "."
	stamps := make(map[string]time.Time)
	var saved []string
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasPrefix(ent.Name(), prefix) {
			continue
		}
		info, err := ent.Info()
		if err != nil {
			continue
		}
		full := filepath.Join(dir, ent.Name())
		stamps[full] = info.ModTime()
		saved = append(saved, full)
	}

	sort.Slice(saved, func(i, j int) bool {
		return stamps[saved[i]].After(stamps[saved[j]])
	})
	return saved, nil
}

// pruneBackups drops the oldest backups until keepBackups remain.
func pruneBackups() {
	all, err := Backups()
	if err != nil || len(all) <= keepBackups {
		return
	}
	for _, stale := range all[keepBackups:] {
		_ = os.Remove(stale)
	}
}

// Restore replaces the user config with the contents of a backup
// file. Any current config is backed up first so a restore can itself be
// undone.
func Restore(from string) error {
	// Read before touching anything so a bad backup path leaves the
	// current config alone.
	data, err := os.ReadFile(from)
	if err != nil {
		return fmt.Errorf("failed to read backup file: %w", err)
	}

	// Backup returns cleanly when no config exists yet.
	if _, err := Backup(); err != nil {
		return fmt.Errorf("failed to back up current config: %w", err)
	}

	if err := os.MkdirAll(UserConfigDir(), 0755); err != nil {
		return fmt.Errorf("failed to prepare config directory: %w", err)
	}
	if err := os.WriteFile(UserConfigPath(), data, 0644); err != nil {
		return fmt.Errorf("failed to restore config: %w", err)
	}
	return nil
}
