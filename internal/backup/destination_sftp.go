package backup

import (
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/yourusername/pdv-manager/internal/config"
	sshutil "github.com/yourusername/pdv-manager/internal/ssh"
)

// SFTPDestination stores artifacts on a remote SFTP server
type SFTPDestination struct {
	config     config.DestinationConfig
	security   config.SSHConfig
	sshClient  *ssh.Client
	sftpClient *sftp.Client
}

// NewSFTPDestination creates a new SFTP destination. The connection is
// established up front so configuration errors surface before any backup
// depends on the destination.
func NewSFTPDestination(cfg config.DestinationConfig, security config.SSHConfig) (*SFTPDestination, error) {
	dest := &SFTPDestination{
		config:   cfg,
		security: security,
	}

	if err := dest.connect(); err != nil {
		return nil, err
	}

	return dest, nil
}

func (sd *SFTPDestination) connect() error {
	hostKeyCallback, err := sshutil.NewHostKeyCallback(sd.security.KnownHostsPath, sd.security.TrustOnFirstUse)
	if err != nil {
		return fmt.Errorf("failed to configure host key verification: %w", err)
	}

	sshConfig := &ssh.ClientConfig{
		User:            sd.config.SFTPUsername,
		HostKeyCallback: hostKeyCallback,
		Timeout:         30 * time.Second,
	}

	if sd.config.SFTPKeyPath != "" {
		keyData, err := os.ReadFile(sd.config.SFTPKeyPath)
		if err != nil {
			return fmt.Errorf("failed to read SSH key: %w", err)
		}

		signer, err := ssh.ParsePrivateKey(keyData)
		if err != nil {
			return fmt.Errorf("failed to parse SSH key: %w", err)
		}

		sshConfig.Auth = []ssh.AuthMethod{ssh.PublicKeys(signer)}
	} else if sd.config.SFTPPassword != "" {
		sshConfig.Auth = []ssh.AuthMethod{ssh.Password(sd.config.SFTPPassword)}
	} else {
		return fmt.Errorf("no authentication method provided for SFTP")
	}

	port := sd.config.SFTPPort
	if port == 0 {
		port = 22
	}

	addr := fmt.Sprintf("%s:%d", sd.config.SFTPHost, port)
	log.Printf("[SFTPDest] Connecting to %s...", addr)

	sshClient, err := ssh.Dial("tcp", addr, sshConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to SSH server: %w", err)
	}
	sd.sshClient = sshClient

	sftpClient, err := sftp.NewClient(sshClient,
		sftp.MaxPacketUnchecked(131072),
		sftp.UseConcurrentWrites(true),
	)
	if err != nil {
		sshClient.Close()
		return fmt.Errorf("failed to create SFTP client: %w", err)
	}
	sd.sftpClient = sftpClient

	if err := sd.sftpClient.MkdirAll(sd.config.Path); err != nil {
		sd.Close()
		return fmt.Errorf("failed to create base directory: %w", err)
	}

	log.Printf("[SFTPDest] Connected successfully")
	return nil
}

// Close closes the SFTP and SSH connections
func (sd *SFTPDestination) Close() error {
	if sd.sftpClient != nil {
		sd.sftpClient.Close()
	}
	if sd.sshClient != nil {
		sd.sshClient.Close()
	}
	return nil
}

// Upload uploads an artifact to the SFTP destination
func (sd *SFTPDestination) Upload(filename string, reader io.Reader, sizeBytes int64) error {
	destPath := path.Join(sd.config.Path, filename)
	log.Printf("[SFTPDest] Uploading %s to %s (%d bytes)", filename, destPath, sizeBytes)

	file, err := sd.sftpClient.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create remote file: %w", err)
	}
	defer file.Close()

	written, err := io.Copy(file, reader)
	if err != nil {
		sd.sftpClient.Remove(destPath) // Cleanup on error
		return fmt.Errorf("failed to write remote file: %w", err)
	}

	if written != sizeBytes {
		sd.sftpClient.Remove(destPath)
		return fmt.Errorf("size mismatch: expected %d bytes, wrote %d bytes", sizeBytes, written)
	}

	log.Printf("[SFTPDest] Upload complete: %s", filename)
	return nil
}

// Download downloads an artifact from the SFTP destination
func (sd *SFTPDestination) Download(filename string, writer io.Writer) error {
	srcPath := path.Join(sd.config.Path, filename)
	log.Printf("[SFTPDest] Downloading %s from %s", filename, srcPath)

	file, err := sd.sftpClient.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open remote file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(writer, file); err != nil {
		return fmt.Errorf("failed to read remote file: %w", err)
	}

	log.Printf("[SFTPDest] Download complete: %s", filename)
	return nil
}

// Delete removes an artifact from the SFTP destination
func (sd *SFTPDestination) Delete(filename string) error {
	destPath := path.Join(sd.config.Path, filename)
	log.Printf("[SFTPDest] Deleting %s", destPath)

	if err := sd.sftpClient.Remove(destPath); err != nil {
		return fmt.Errorf("failed to delete remote file: %w", err)
	}

	log.Printf("[SFTPDest] Delete complete: %s", filename)
	return nil
}

// List returns all artifacts in the SFTP destination
func (sd *SFTPDestination) List() ([]ArtifactFile, error) {
	entries, err := sd.sftpClient.ReadDir(sd.config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read remote directory: %w", err)
	}

	var files []ArtifactFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		files = append(files, ArtifactFile{
			Filename:  entry.Name(),
			SizeBytes: entry.Size(),
			CreatedAt: entry.ModTime().Unix(),
		})
	}

	return files, nil
}

// GetType returns the destination type
func (sd *SFTPDestination) GetType() string {
	return "sftp"
}
