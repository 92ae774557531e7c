package updater

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
)

// Result is the outcome of one helper run. The helper has no channel back to
// the process that spawned it, so it leaves the result on disk for a later
// incarnation of the application to read.
type Result struct {
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	Version    string    `json:"version,omitempty"`
	ExecutedAt time.Time `json:"executedAt"`
}

// WriteResult stores the result atomically (temp file + rename) at path.
func WriteResult(path string, result Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp result file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		if cleanupErr := os.Remove(tmpPath); cleanupErr != nil {
			log.Warnf("failed to remove temp result file: %v", cleanupErr)
		}
		return fmt.Errorf("rename result file: %w", err)
	}

	return nil
}

// ReadResult loads a previously written result from path.
func ReadResult(path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, err
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, fmt.Errorf("invalid result format: %w", err)
	}

	return result, nil
}
