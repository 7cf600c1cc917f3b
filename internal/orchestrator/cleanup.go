package orchestrator

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// tempPrefix names the per-request work directories.
const tempPrefix = "brief-upload-"

// CleanupTemps removes work directories left behind by a crash, older than
// maxAge. Retained blobs live elsewhere and are not touched.
func CleanupTemps(root string, maxAge time.Duration) int {
	if root == "" {
		root = os.TempDir()
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		log.Warn().Err(err).Str("dir", root).Msg("temp cleanup skipped")
		return 0
	}
	now := time.Now()
	removed := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || now.Sub(info.ModTime()) < maxAge {
			continue
		}
		if err := os.RemoveAll(filepath.Join(root, e.Name())); err == nil {
			removed++
		}
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Str("dir", root).Msg("stale work directories removed")
	}
	return removed
}
