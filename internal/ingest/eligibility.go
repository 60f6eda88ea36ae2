package ingest

import (
	"os"
	"path/filepath"
	"strings"

	"tierwatch/internal/scanner"
)

// allowedExtension reports whether path's extension is in the allow-list.
// Extensions in the list are normalized (lowercase, dot-prefixed) by config.
func (c *Controller) allowedExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return false
	}
	for _, allowed := range c.extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// underHubRoot reports whether path sits inside the hub tree the ingestion
// cluster mounts. Files outside it are invisible to the job container.
func (c *Controller) underHubRoot(path string) bool {
	rel, err := filepath.Rel(c.hubRoot, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}

// EligibleFile decides whether a single file should trigger ingestion:
// allow-listed extension, under the hub root, and accessed within the age
// cutoff. Older files are assumed already processed or intentionally cold;
// re-embedding history on every pass would swamp the cluster.
func (c *Controller) EligibleFile(path string) bool {
	if !c.enabled || !c.allowedExtension(path) || !c.underHubRoot(path) {
		return false
	}
	atime, err := scanner.AccessTime(path)
	if err != nil {
		return false
	}
	return c.now().Sub(atime) <= c.maxAge
}

// EligibleFolder decides whether a directory should trigger a folder
// ingestion job. Content eligibility is checked at listing time, with
// retries for replication lag.
func (c *Controller) EligibleFolder(path string) bool {
	if !c.enabled || !c.underHubRoot(path) {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// eligibleListing lists allow-listed files under folder, bounded to the
// scan depth.
func (c *Controller) eligibleListing(folder string) []string {
	var files []string
	for _, path := range c.listFiles(folder, c.scanDepth) {
		if c.allowedExtension(path) {
			files = append(files, path)
		}
	}
	return files
}

// containerPath rewrites a hub-rooted host path onto the mount prefix the
// job container sees.
func (c *Controller) containerPath(path string) string {
	rel, err := filepath.Rel(c.hubRoot, path)
	if err != nil {
		return path
	}
	return filepath.Join(c.dataMountPrefix, rel)
}
