package media

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// FSStore is the production Store backend: blobs live as plain files
// under a root directory, sharded two levels deep by the first four hex
// characters of their content hash so no single directory accumulates
// millions of entries.
type FSStore struct {
	root   string
	policy FsyncPolicy
}

// NewFSStore creates (if absent) root and returns a Store that writes
// blobs under it using policy's fsync semantics.
func NewFSStore(root string, policy FsyncPolicy) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &FSStore{root: root, policy: policy}, nil
}

func (s *FSStore) pathFor(mediaID string) string {
	if len(mediaID) < 4 {
		return filepath.Join(s.root, mediaID)
	}
	return filepath.Join(s.root, mediaID[:2], mediaID[2:4], mediaID)
}

// Put implements Store.
func (s *FSStore) Put(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	mediaID := hex.EncodeToString(sum[:])

	path := s.pathFor(mediaID)
	if _, err := os.Stat(path); err == nil {
		return mediaID, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}

	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return "", err
	}
	defer pending.Cleanup()

	if _, err := pending.Write(data); err != nil {
		return "", err
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return "", err
	}

	if s.policy.requiresDirFsync() {
		if err := fsyncDir(filepath.Dir(path)); err != nil {
			return "", err
		}
	}

	return mediaID, nil
}

// Get implements Store.
func (s *FSStore) Get(mediaID string) ([]byte, error) {
	data, err := os.ReadFile(s.pathFor(mediaID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Has implements Store.
func (s *FSStore) Has(mediaID string) (bool, error) {
	_, err := os.Stat(s.pathFor(mediaID))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

var _ Store = (*FSStore)(nil)
