package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// Processor writes periodic snapshots of the database to a backup
// directory. Commit already makes data durable; the snapshots exist so a
// copy of the whole store can be picked up and moved elsewhere.
type Processor struct {
	service      *Service
	backupDir    string
	processDelay time.Duration // Time between backup attempts
	keep         int           // Number of snapshot files retained
}

func NewProcessor(service *Service, backupDir string) *Processor {
	return &Processor{
		service:      service,
		backupDir:    backupDir,
		processDelay: 15 * time.Minute,
		keep:         10,
	}
}

// Start begins the periodic backup loop
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "backup_processor").Logger()
	logger.Info().Str("dir", p.backupDir).Msg("starting backup processor")

	ticker := time.NewTicker(p.processDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down backup processor")
			return
		case <-ticker.C:
			if err := p.writeSnapshot(); err != nil {
				logger.Error().Err(err).Msg("failed to write backup snapshot")
			}
		}
	}
}

func (p *Processor) writeSnapshot() error {
	logger := log.With().Str("component", "backup_processor").Logger()

	data, err := p.service.Export()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(p.backupDir, 0o755); err != nil {
		return err
	}

	name := fmt.Sprintf("store_%s.db", time.Now().Format("20060102_150405"))
	path := filepath.Join(p.backupDir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}

	logger.Info().
		Str("path", path).
		Int("bytes", len(data)).
		Msg("backup snapshot written")

	return p.pruneOldSnapshots()
}

// pruneOldSnapshots keeps the newest p.keep snapshot files.
func (p *Processor) pruneOldSnapshots() error {
	matches, err := filepath.Glob(filepath.Join(p.backupDir, "store_*.db"))
	if err != nil {
		return err
	}
	if len(matches) <= p.keep {
		return nil
	}

	// Timestamped names sort chronologically.
	for i := 0; i < len(matches)-p.keep; i++ {
		if err := os.Remove(matches[i]); err != nil {
			return err
		}
	}
	return nil
}
