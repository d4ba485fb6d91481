// Package storage keeps the source assets partners upload, isolated per
// partner, on the local filesystem or in S3.
package storage

import (
	"bytes"
	"context"
	"io"
	"regexp"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/conneroisu/brandkit/internal/errors"
	"github.com/conneroisu/brandkit/internal/types"
)

// Asset is the record of one uploaded source file.
type Asset struct {
	ID        string          `json:"id"`
	PartnerID string          `json:"partnerId"`
	Type      types.AssetType `json:"type"`
	// Name is the custom image name; for fixed slots it is the source field.
	Name       string    `json:"name"`
	FileName   string    `json:"fileName"`
	Key        string    `json:"key"`
	MimeType   string    `json:"mimeType"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// Store persists uploaded assets. List returns a partner's assets in upload
// order and never returns another partner's records.
type Store interface {
	Save(ctx context.Context, asset Asset, r io.Reader) (Asset, error)
	List(ctx context.Context, partnerID string) ([]Asset, error)
	Open(ctx context.Context, partnerID, id string) (io.ReadCloser, Asset, error)
}

var (
	partnerPattern  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)
	fileNameUnsafe  = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	sniffHeaderSize = 3072
)

// ValidatePartnerID rejects ids that cannot be used as a storage namespace.
func ValidatePartnerID(partnerID string) error {
	if !partnerPattern.MatchString(partnerID) {
		return errors.ErrInvalidPath(partnerID).WithContext("field", "partnerId")
	}
	return nil
}

// SanitizeFileName reduces name to a safe single path element.
func SanitizeFileName(name string) string {
	clean := fileNameUnsafe.ReplaceAllString(name, "_")
	for len(clean) > 0 && clean[0] == '.' {
		clean = clean[1:]
	}
	if clean == "" {
		return "upload"
	}
	if len(clean) > 100 {
		clean = clean[len(clean)-100:]
	}
	return clean
}

// sniff reads the head of r for content detection and returns a reader
// that still yields the whole stream.
func sniff(r io.Reader) (string, io.Reader, error) {
	head := make([]byte, sniffHeaderSize)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", nil, err
	}
	head = head[:n]
	return mimetype.Detect(head).String(), io.MultiReader(bytes.NewReader(head), r), nil
}

// normalize fills the defaults every backend applies before saving.
func normalize(asset Asset) (Asset, error) {
	if err := ValidatePartnerID(asset.PartnerID); err != nil {
		return asset, err
	}
	asset.Type = types.ParseAssetType(string(asset.Type))
	if asset.Name == "" {
		asset.Name = defaultName(asset.Type)
	}
	asset.FileName = SanitizeFileName(asset.FileName)
	if asset.UploadedAt.IsZero() {
		asset.UploadedAt = time.Now().UTC()
	}
	return asset, nil
}

func defaultName(t types.AssetType) string {
	switch t {
	case types.AssetTypeLogo:
		return types.FieldLogo
	case types.AssetTypeSplash:
		return types.FieldSplashBackground
	case types.AssetTypeIcon:
		return types.FieldBrandIcon
	case types.AssetTypeBrand:
		return types.FieldLogoSquare
	default:
		return "image"
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
