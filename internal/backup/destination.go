package backup

import (
	"fmt"
	"io"

	"github.com/yourusername/pdv-manager/internal/config"
)

// Destination is a storage target for snapshot artifacts
type Destination interface {
	// Upload writes an artifact from reader to the destination
	Upload(filename string, reader io.Reader, sizeBytes int64) error

	// Download copies an artifact from the destination into writer
	Download(filename string, writer io.Writer) error

	// Delete removes an artifact from the destination
	Delete(filename string) error

	// List returns all artifacts at the destination
	List() ([]ArtifactFile, error)

	// GetType returns the destination type identifier
	GetType() string
}

// ArtifactFile describes one stored artifact
type ArtifactFile struct {
	Filename  string
	SizeBytes int64
	CreatedAt int64 // Unix timestamp
}

// NewDestination creates a destination from its configuration. The SSH
// settings only matter for SFTP destinations (host key verification).
func NewDestination(cfg config.DestinationConfig, ssh config.SSHConfig) (Destination, error) {
	switch cfg.Type {
	case "local":
		return NewLocalDestination(cfg.Path), nil
	case "sftp":
		return NewSFTPDestination(cfg, ssh)
	case "s3":
		return NewS3Destination(cfg)
	default:
		return nil, fmt.Errorf("unsupported destination type: %s", cfg.Type)
	}
}
