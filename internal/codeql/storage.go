package codeql

import (
	"os"
	"path/filepath"
)

// DatabaseStorage resolves where built code databases live on disk.
// One database per (area, repo, language), keyed by normalized repo path.
type DatabaseStorage struct {
	baseDir string
}

func NewDatabaseStorage(baseDir string) *DatabaseStorage {
	return &DatabaseStorage{baseDir: baseDir}
}

// DatabasePath returns the directory for one (area, repo, language) build.
func (s *DatabaseStorage) DatabasePath(area, repoPath, language string) string {
	return filepath.Join(s.baseDir, area, NormalizePath(repoPath), language)
}

// Exists reports whether a prior build is present on disk.
func (s *DatabaseStorage) Exists(area, repoPath, language string) bool {
	info, err := os.Stat(s.DatabasePath(area, repoPath, language))
	return err == nil && info.IsDir()
}

// Remove deletes a stored database.
func (s *DatabaseStorage) Remove(area, repoPath, language string) error {
	return os.RemoveAll(s.DatabasePath(area, repoPath, language))
}
