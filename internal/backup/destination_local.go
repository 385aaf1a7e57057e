package backup

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"
)

// LocalDestination stores artifacts on the local filesystem. It is always
// present as the primary destination of every backup.
type LocalDestination struct {
	basePath string
}

// NewLocalDestination creates a new local destination
func NewLocalDestination(basePath string) *LocalDestination {
	return &LocalDestination{
		basePath: basePath,
	}
}

// Upload writes an artifact into the backup directory
func (ld *LocalDestination) Upload(filename string, reader io.Reader, sizeBytes int64) error {
	if err := os.MkdirAll(ld.basePath, 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	destPath := filepath.Join(ld.basePath, filename)

	file, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create artifact file: %w", err)
	}
	defer file.Close()

	written, err := io.Copy(file, reader)
	if err != nil {
		os.Remove(destPath) // Cleanup on error
		return fmt.Errorf("failed to write artifact file: %w", err)
	}

	if written != sizeBytes {
		os.Remove(destPath)
		return fmt.Errorf("size mismatch: expected %d bytes, wrote %d bytes", sizeBytes, written)
	}

	return nil
}

// Download reads an artifact from the backup directory
func (ld *LocalDestination) Download(filename string, writer io.Writer) error {
	srcPath := filepath.Join(ld.basePath, filename)

	file, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open artifact file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(writer, file); err != nil {
		return fmt.Errorf("failed to read artifact file: %w", err)
	}

	return nil
}

// Delete removes an artifact from the backup directory
func (ld *LocalDestination) Delete(filename string) error {
	destPath := filepath.Join(ld.basePath, filename)

	if err := os.Remove(destPath); err != nil {
		return fmt.Errorf("failed to delete artifact file: %w", err)
	}

	return nil
}

// List returns all artifacts in the backup directory
func (ld *LocalDestination) List() ([]ArtifactFile, error) {
	if err := os.MkdirAll(ld.basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to access backup directory: %w", err)
	}

	entries, err := os.ReadDir(ld.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var files []ArtifactFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			log.Printf("[LocalDest] Warning: Failed to get info for %s: %v", entry.Name(), err)
			continue
		}

		files = append(files, ArtifactFile{
			Filename:  entry.Name(),
			SizeBytes: info.Size(),
			CreatedAt: info.ModTime().Unix(),
		})
	}

	return files, nil
}

// GetType returns the destination type
func (ld *LocalDestination) GetType() string {
	return "local"
}

// GetPath returns the base path
func (ld *LocalDestination) GetPath() string {
	return ld.basePath
}

// Exists checks if an artifact exists
func (ld *LocalDestination) Exists(filename string) bool {
	_, err := os.Stat(filepath.Join(ld.basePath, filename))
	return err == nil
}

// GetModTime returns the modification time of an artifact
func (ld *LocalDestination) GetModTime(filename string) (time.Time, error) {
	info, err := os.Stat(filepath.Join(ld.basePath, filename))
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}
