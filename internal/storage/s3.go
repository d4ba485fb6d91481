package storage

import (
	"context"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/conneroisu/brandkit/internal/errors"
	"github.com/conneroisu/brandkit/internal/types"
)

// S3Config configures the S3 backend.
type S3Config struct {
	Bucket string
	Prefix string
	// Region is optional; the default AWS chain applies when empty.
	Region string
	// Endpoint is a custom URL for S3 compatible providers such as MinIO.
	Endpoint     string
	UsePathStyle bool
}

// s3API is the subset of the S3 client the store uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	s3.ListObjectsV2APIClient
}

// Object metadata keys. S3 lower-cases user metadata keys.
const (
	metaType       = "asset-type"
	metaName       = "asset-name"
	metaFileName   = "file-name"
	metaUploadedAt = "uploaded-at"
)

// S3Store keeps uploads at <prefix>/<partnerId>/<id>/<fileName> with the
// asset record in the object metadata.
type S3Store struct {
	client s3API
	bucket string
	prefix string
}

// NewS3Store loads AWS configuration from the default chain and creates a
// store for cfg.Bucket.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "s3 bucket is required")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.WrapConfig(err, errors.ErrCodeConfigInvalid, "load aws config")
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = &endpoint })
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}

	return newS3Store(s3.NewFromConfig(awsCfg, s3Opts...), cfg.Bucket, cfg.Prefix), nil
}

func newS3Store(client s3API, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: strings.Trim(strings.TrimSpace(prefix), "/")}
}

// Save uploads r and returns the stored record.
func (s *S3Store) Save(ctx context.Context, asset Asset, r io.Reader) (Asset, error) {
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
	asset.Key = path.Join(asset.PartnerID, asset.ID, asset.FileName)

	counter := &countingReader{r: body}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(applyPrefix(s.prefix, asset.Key)),
		Body:        counter,
		ContentType: aws.String(mimeType),
		Metadata: map[string]string{
			metaType:       string(asset.Type),
			metaName:       asset.Name,
			metaFileName:   asset.FileName,
			metaUploadedAt: asset.UploadedAt.Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		return asset, errors.WrapStorage(err, "s3 put object").WithFile(asset.Key)
	}
	asset.Size = counter.n
	return asset, nil
}

// List returns the partner's uploads ordered by upload time.
func (s *S3Store) List(ctx context.Context, partnerID string) ([]Asset, error) {
	if err := ValidatePartnerID(partnerID); err != nil {
		return nil, err
	}

	partnerPrefix := applyPrefix(s.prefix, partnerID) + "/"
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(partnerPrefix),
	})

	assets := []Asset{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errors.WrapStorage(err, "s3 list objects")
		}
		for _, obj := range page.Contents {
			key := strings.TrimPrefix(aws.ToString(obj.Key), partnerPrefix)
			id, _, ok := strings.Cut(key, "/")
			if !ok {
				continue
			}
			asset, err := s.head(ctx, partnerID, id, aws.ToString(obj.Key))
			if err != nil {
				return nil, err
			}
			assets = append(assets, asset)
		}
	}

	sort.SliceStable(assets, func(i, j int) bool {
		return assets[i].UploadedAt.Before(assets[j].UploadedAt)
	})
	return assets, nil
}

// Open returns the content of one of the partner's uploads.
func (s *S3Store) Open(ctx context.Context, partnerID, id string) (io.ReadCloser, Asset, error) {
	if err := ValidatePartnerID(partnerID); err != nil {
		return nil, Asset{}, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, Asset{}, errors.NewIOError(errors.ErrCodeAssetNotFound, "asset "+id+" not found", err)
	}

	assets, err := s.List(ctx, partnerID)
	if err != nil {
		return nil, Asset{}, err
	}
	for _, a := range assets {
		if a.ID != id {
			continue
		}
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(applyPrefix(s.prefix, a.Key)),
		})
		if err != nil {
			return nil, a, errors.WrapStorage(err, "s3 get object").WithFile(a.Key)
		}
		return out.Body, a, nil
	}
	return nil, Asset{}, errors.NewIOError(errors.ErrCodeAssetNotFound, "asset "+id+" not found", nil)
}

func (s *S3Store) head(ctx context.Context, partnerID, id, objectKey string) (Asset, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return Asset{}, errors.WrapStorage(err, "s3 head object").WithFile(objectKey)
	}

	meta := out.Metadata
	uploaded, _ := time.Parse(time.RFC3339Nano, meta[metaUploadedAt])
	fileName := meta[metaFileName]
	if fileName == "" {
		fileName = path.Base(objectKey)
	}
	return Asset{
		ID:         id,
		PartnerID:  partnerID,
		Type:       types.ParseAssetType(meta[metaType]),
		Name:       meta[metaName],
		FileName:   fileName,
		Key:        path.Join(partnerID, id, fileName),
		MimeType:   aws.ToString(out.ContentType),
		Size:       aws.ToInt64(out.ContentLength),
		UploadedAt: uploaded,
	}, nil
}

func applyPrefix(prefix, key string) string {
	cleanKey := strings.TrimLeft(key, "/")
	if prefix == "" {
		return cleanKey
	}
	if cleanKey == "" {
		return prefix
	}
	return prefix + "/" + cleanKey
}

// String describes the store location.
func (s *S3Store) String() string {
	return "s3://" + s.bucket + "/" + s.prefix
}

var _ Store = (*S3Store)(nil)
