package pdf

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/castrolabs/osbot/pkg/logging"
)

// Janitor deletes rendered files shortly after they were sent so the
// temp directory does not grow without bound.
type Janitor struct {
	dir    string
	ttl    time.Duration
	logger *logging.Logger
}

// NewJanitor watches dir and removes PDFs older than ttl.
func NewJanitor(dir string, ttl time.Duration, logger *logging.Logger) *Janitor {
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Janitor{dir: dir, ttl: ttl, logger: logger}
}

// Run cleans until the context is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.CleanOnce()
		}
	}
}

// CleanOnce removes expired PDFs from the directory.
func (j *Janitor) CleanOnce() {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		j.logger.Warn("pdf janitor read dir failed", "error", err, "dir", j.dir)
		return
	}
	cutoff := time.Now().Add(-j.ttl)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".pdf") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(j.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			j.logger.Warn("pdf janitor remove failed", "error", err, "path", path)
			continue
		}
		j.logger.Debug("expired pdf removed", "path", path)
	}
}
