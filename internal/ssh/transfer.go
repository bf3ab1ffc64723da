package ssh

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"nixstrap/internal/logger"

	"github.com/pkg/sftp"
)

func (s *Session) sftpClient() (*sftp.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAuthenticated || s.client == nil {
		return nil, fmt.Errorf("%w: session is %s", ErrInvalidState, s.state)
	}
	if s.sftp == nil {
		sc, err := s.client.NewSftp()
		if err != nil {
			return nil, fmt.Errorf("%w: start sftp subsystem: %v", ErrTransfer, err)
		}
		s.sftp = sc
	}
	return s.sftp, nil
}

// DownloadFile reads a single regular file from the remote.
func (s *Session) DownloadFile(remotePath string) ([]byte, error) {
	sc, err := s.sftpClient()
	if err != nil {
		return nil, err
	}

	info, err := sc.Stat(remotePath)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %w", ErrTransfer, remotePath, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s (%s)", ErrNotAFile, remotePath, info.Mode().Type())
	}

	f, err := sc.Open(remotePath)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrTransfer, remotePath, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrTransfer, remotePath, err)
	}

	logger.Debug("Downloaded %s (%d bytes) from %s", remotePath, len(data), s.endpoint)
	return data, nil
}

// UploadTree mirrors localDir into remoteDir. Existing remote directories are
// reused and existing files are overwritten. It stops at the first error and
// leaves whatever was already copied in place.
func (s *Session) UploadTree(localDir, remoteDir string) error {
	info, err := os.Stat(localDir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotADirectory, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotADirectory, localDir)
	}

	sc, err := s.sftpClient()
	if err != nil {
		return err
	}

	if err := sc.MkdirAll(remoteDir); err != nil {
		return fmt.Errorf("%w: mkdir %s: %w", ErrTransfer, remoteDir, err)
	}

	files := 0
	err = filepath.WalkDir(localDir, func(localPath string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(localDir, localPath)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		remotePath := path.Join(remoteDir, filepath.ToSlash(rel))

		switch {
		case d.IsDir():
			return ensureRemoteDir(sc, remotePath)
		case d.Type().IsRegular():
			files++
			return uploadFile(sc, localPath, remotePath)
		default:
			logger.Warn("Skipping %s: not a regular file or directory", localPath)
			return nil
		}
	})
	if err != nil {
		return err
	}

	logger.Info("Uploaded %d file(s) from %s to %s:%s", files, localDir, s.endpoint, remoteDir)
	return nil
}

// WriteFile creates or truncates remotePath with data and mode, creating parent directories.
func (s *Session) WriteFile(remotePath string, data []byte, mode os.FileMode) error {
	sc, err := s.sftpClient()
	if err != nil {
		return err
	}

	if err := sc.MkdirAll(path.Dir(remotePath)); err != nil {
		return fmt.Errorf("%w: mkdir %s: %w", ErrTransfer, path.Dir(remotePath), err)
	}

	f, err := sc.OpenFile(remotePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrTransfer, remotePath, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrTransfer, remotePath, err)
	}
	if err := f.Chmod(mode); err != nil {
		return fmt.Errorf("%w: chmod %s: %w", ErrTransfer, remotePath, err)
	}
	return nil
}

func ensureRemoteDir(sc *sftp.Client, remotePath string) error {
	err := sc.Mkdir(remotePath)
	if err == nil {
		return nil
	}
	// Mkdir reports a generic failure for existing directories.
	if info, statErr := sc.Stat(remotePath); statErr == nil && info.IsDir() {
		return nil
	}
	return fmt.Errorf("%w: mkdir %s: %w", ErrTransfer, remotePath, err)
}

func uploadFile(sc *sftp.Client, localPath, remotePath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrTransfer, localPath, err)
	}
	defer src.Close()

	dst, err := sc.OpenFile(remotePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrTransfer, remotePath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("%w: copy %s: %w", ErrTransfer, localPath, err)
	}

	if info, err := src.Stat(); err == nil {
		if err := dst.Chmod(info.Mode().Perm()); err != nil {
			return fmt.Errorf("%w: chmod %s: %w", ErrTransfer, remotePath, err)
		}
	}
	return dst.Close()
}
