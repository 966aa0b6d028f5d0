package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"

	"github.com/driveline/jobfeed/internal/models"
)

// Checkpointer writes per-stage frame snapshots for debugging and safety
// export. Checkpoint failures never abort the pipeline.
type Checkpointer struct {
	dir     string
	enabled bool
	logger  arbor.ILogger
}

// NewCheckpointer creates a checkpointer. An empty dir disables snapshots.
func NewCheckpointer(dir string, enabled bool, logger arbor.ILogger) *Checkpointer {
	return &Checkpointer{
		dir:     dir,
		enabled: enabled && dir != "",
		logger:  logger,
	}
}

// Write persists the frame as <run_id>_<stage>.json via temp file + rename,
// so a crash mid-write never leaves a torn snapshot.
func (c *Checkpointer) Write(runID, stage string, frame *models.Frame) {
	if !c.enabled || frame == nil {
		return
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		c.logger.Warn().Err(err).Str("dir", c.dir).Msg("Cannot create snapshot directory, skipping checkpoint")
		return
	}

	data, err := json.Marshal(frame.Rows)
	if err != nil {
		c.logger.Warn().Err(err).Str("stage", stage).Msg("Cannot encode checkpoint, skipping")
		return
	}

	finalPath := filepath.Join(c.dir, fmt.Sprintf("%s_%s.json", runID, stage))
	tempPath := finalPath + ".tmp"

	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		c.logger.Warn().Err(err).Str("stage", stage).Msg("Cannot write checkpoint, skipping")
		return
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		c.logger.Warn().Err(err).Str("stage", stage).Msg("Cannot finalize checkpoint, skipping")
		return
	}

	c.logger.Debug().
		Str("stage", stage).
		Int("rows", frame.Len()).
		Str("path", finalPath).
		Msg("Checkpoint written")
}
