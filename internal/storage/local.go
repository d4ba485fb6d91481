package storage

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/conneroisu/brandkit/internal/errors"
	"github.com/conneroisu/brandkit/internal/fsutil"
)

const indexFile = "index.json"

// LocalStore keeps uploads under baseDir/<partnerId>/ with a JSON index per
// partner.
type LocalStore struct {
	baseDir string
	mu      sync.Mutex
}

// NewLocalStore creates a store rooted at baseDir, creating it if needed.
func NewLocalStore(baseDir string) (*LocalStore, error) {
	if baseDir == "" {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "storage base directory is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, errors.WrapStorage(err, "create storage directory").WithFile(baseDir)
	}
	return &LocalStore{baseDir: baseDir}, nil
}

// BaseDir returns the storage root.
func (s *LocalStore) BaseDir() string {
	return s.baseDir
}

// String describes the store location.
func (s *LocalStore) String() string {
	return s.baseDir
}

// Save streams r into the partner's directory and records it in the index.
func (s *LocalStore) Save(ctx context.Context, asset Asset, r io.Reader) (Asset, error) {
	asset, err := normalize(asset)
	if err != nil {
		return asset, err
	}
	if err := ctx.Err(); err != nil {
		return asset, err
	}

	mimeType, body, err := sniff(r)
	if err != nil {
		return asset, errors.WrapStorage(err, "read upload")
	}
	asset.ID = uuid.NewString()
	asset.MimeType = mimeType
	asset.Key = filepath.ToSlash(filepath.Join(asset.PartnerID, asset.ID+"_"+asset.FileName))

	dir := filepath.Join(s.baseDir, asset.PartnerID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return asset, errors.WrapStorage(err, "create partner directory").WithFile(dir)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return asset, errors.WrapStorage(err, "create upload file")
	}
	counter := &countingReader{r: body}
	if _, err := io.Copy(tmp, counter); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return asset, errors.WrapStorage(err, "write upload")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return asset, errors.WrapStorage(err, "close upload")
	}
	asset.Size = counter.n

	target := filepath.Join(s.baseDir, filepath.FromSlash(asset.Key))
	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		return asset, errors.WrapStorage(err, "store upload").WithFile(target)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	index, err := s.readIndex(asset.PartnerID)
	if err != nil {
		return asset, err
	}
	index = append(index, asset)
	if err := s.writeIndex(asset.PartnerID, index); err != nil {
		return asset, err
	}
	return asset, nil
}

// List returns the partner's uploads in upload order.
func (s *LocalStore) List(ctx context.Context, partnerID string) ([]Asset, error) {
	if err := ValidatePartnerID(partnerID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readIndex(partnerID)
}

// Open returns the content of one of the partner's uploads.
func (s *LocalStore) Open(ctx context.Context, partnerID, id string) (io.ReadCloser, Asset, error) {
	assets, err := s.List(ctx, partnerID)
	if err != nil {
		return nil, Asset{}, err
	}
	for _, a := range assets {
		if a.ID != id {
			continue
		}
		path := filepath.Join(s.baseDir, filepath.FromSlash(a.Key))
		if !fsutil.Within(filepath.Join(s.baseDir, partnerID), path) {
			return nil, a, errors.ErrInvalidPath(a.Key)
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, a, errors.WrapStorage(err, "open upload").WithFile(path)
		}
		return f, a, nil
	}
	return nil, Asset{}, errors.NewIOError(errors.ErrCodeAssetNotFound, "asset "+id+" not found", nil)
}

func (s *LocalStore) indexPath(partnerID string) string {
	return filepath.Join(s.baseDir, partnerID, indexFile)
}

func (s *LocalStore) readIndex(partnerID string) ([]Asset, error) {
	data, err := os.ReadFile(s.indexPath(partnerID))
	if os.IsNotExist(err) {
		return []Asset{}, nil
	}
	if err != nil {
		return nil, errors.WrapStorage(err, "read index").WithFile(s.indexPath(partnerID))
	}
	var assets []Asset
	if err := json.Unmarshal(data, &assets); err != nil {
		return nil, errors.WrapStorage(err, "parse index").WithFile(s.indexPath(partnerID))
	}
	return assets, nil
}

func (s *LocalStore) writeIndex(partnerID string, assets []Asset) error {
	data, err := json.MarshalIndent(assets, "", "  ")
	if err != nil {
		return errors.WrapStorage(err, "encode index")
	}
	if err := fsutil.WriteFileAtomic(s.indexPath(partnerID), data, 0o644); err != nil {
		return errors.WrapStorage(err, "write index").WithFile(s.indexPath(partnerID))
	}
	return nil
}

var _ Store = (*LocalStore)(nil)
