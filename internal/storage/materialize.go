package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/conneroisu/brandkit/internal/errors"
	"github.com/conneroisu/brandkit/internal/types"
)

// Latest reduces a partner's uploads to the newest one per slot: one per
// fixed asset type and one per custom image name. Custom images keep the
// order in which each name was first uploaded.
func Latest(assets []Asset) []Asset {
	slots := make(map[string]int)
	var out []Asset
	for _, a := range assets {
		key := string(a.Type)
		if a.Type == types.AssetTypeCustom {
			key += "." + a.Name
		}
		if i, ok := slots[key]; ok {
			if !a.UploadedAt.Before(out[i].UploadedAt) {
				out[i] = a
			}
			continue
		}
		slots[key] = len(out)
		out = append(out, a)
	}
	return out
}

// Materialize copies the partner's latest uploads into dir and returns the
// asset references a build request needs.
func Materialize(ctx context.Context, store Store, partnerID, dir string) (types.PartnerAssets, error) {
	var assets types.PartnerAssets

	uploads, err := store.List(ctx, partnerID)
	if err != nil {
		return assets, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return assets, errors.WrapStorage(err, "create asset directory").WithFile(dir)
	}

	for _, a := range Latest(uploads) {
		if err := ctx.Err(); err != nil {
			return assets, err
		}
		path := filepath.Join(dir, a.ID+"_"+SanitizeFileName(a.FileName))
		if err := copyOut(ctx, store, a, path); err != nil {
			return assets, err
		}

		switch a.Type {
		case types.AssetTypeLogo:
			assets.Logo = path
		case types.AssetTypeSplash:
			assets.SplashBackground = path
		case types.AssetTypeIcon:
			assets.BrandIcon = path
		case types.AssetTypeBrand:
			assets.LogoSquare = path
		default:
			assets.CustomImages.Set(a.Name, path)
		}
	}
	return assets, nil
}

func copyOut(ctx context.Context, store Store, a Asset, path string) error {
	rc, _, err := store.Open(ctx, a.PartnerID, a.ID)
	if err != nil {
		return err
	}
	defer rc.Close()

	f, err := os.Create(path)
	if err != nil {
		return errors.WrapStorage(err, "create asset file").WithFile(path)
	}
	if _, err := io.Copy(f, rc); err != nil {
		_ = f.Close()
		return errors.WrapStorage(err, "copy asset").WithFile(path).WithAsset(a.Name)
	}
	if err := f.Close(); err != nil {
		return errors.WrapStorage(err, "close asset file").WithFile(path)
	}
	return nil
}
