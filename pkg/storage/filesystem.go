package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorage keeps rendered exports on disk, one directory per job.
type LocalStorage struct {
	baseDir string
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./exports"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create exports directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir}, nil
}

// Save writes data as name inside the job directory and returns the path
// relative to the base directory.
func (s *LocalStorage) Save(jobID, name string, data []byte) (string, error) {
	rel, err := s.relPath(jobID, name)
	if err != nil {
		return "", err
	}
	path, err := s.resolve(rel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare export directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write export file: %w", err)
	}
	return rel, nil
}

// Open returns a read-only handle for a path returned by Save.
func (s *LocalStorage) Open(rel string) (io.ReadCloser, error) {
	path, err := s.resolve(rel)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export file: %w", err)
	}
	return file, nil
}

// DeleteJob removes every export of jobID.
func (s *LocalStorage) DeleteJob(jobID string) error {
	dir, err := s.resolve(jobID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete exports of %s: %w", jobID, err)
	}
	return nil
}

// CleanupOlderThan removes files older than ttl and returns their relative
// paths. Job directories left empty are removed too.
func (s *LocalStorage) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-ttl)
	deleted := make([]string, 0)
	err := filepath.WalkDir(s.baseDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		rel, err := filepath.Rel(s.baseDir, path)
		if err != nil {
			rel = path
		}
		deleted = append(deleted, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cleanup exports: %w", err)
	}

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return deleted, fmt.Errorf("list export directories: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(s.baseDir, entry.Name())
		if children, err := os.ReadDir(dir); err == nil && len(children) == 0 {
			_ = os.Remove(dir)
		}
	}
	return deleted, nil
}

func (s *LocalStorage) relPath(jobID, name string) (string, error) {
	if jobID == "" || name == "" || strings.ContainsAny(jobID+name, `/\`) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid export name %q/%q", jobID, name)
	}
	return jobID + "/" + name, nil
}

func (s *LocalStorage) resolve(rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) || clean == "." || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid export path %q", rel)
	}
	return filepath.Join(s.baseDir, clean), nil
}
