// Package types provides the domain model shared by the asset pipeline, the
// injection planner, the orchestrator and the HTTP layer. It holds no
// behaviour beyond parsing, validation and deterministic identifiers, so
// every other package can depend on it without cycles.
package types

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// AssetType is the closed set of asset categories a processed asset can have.
type AssetType string

const (
	AssetTypeLogo   AssetType = "logo"
	AssetTypeSplash AssetType = "splash"
	AssetTypeIcon   AssetType = "icon"
	AssetTypeBrand  AssetType = "brand"
	AssetTypeCustom AssetType = "custom"
)

// AssetTypes lists every asset type in processing order.
var AssetTypes = []AssetType{
	AssetTypeLogo,
	AssetTypeSplash,
	AssetTypeIcon,
	AssetTypeBrand,
	AssetTypeCustom,
}

// ParseAssetType maps a free-form type string onto the closed enumeration.
// Anything unrecognized is treated as custom.
func ParseAssetType(s string) AssetType {
	switch AssetType(s) {
	case AssetTypeLogo, AssetTypeSplash, AssetTypeIcon, AssetTypeBrand:
		return AssetType(s)
	default:
		return AssetTypeCustom
	}
}

// UnmarshalText applies the custom fallback when decoding from JSON or YAML.
func (t *AssetType) UnmarshalText(text []byte) error {
	*t = ParseAssetType(string(text))
	return nil
}

// Category names one of the five injection plan buckets.
type Category string

const (
	CategoryLogos  Category = "logos"
	CategorySplash Category = "splash"
	CategoryIcons  Category = "icons"
	CategoryBrand  Category = "brand"
	CategoryCustom Category = "custom"
)

// Categories lists every bucket in plan order.
var Categories = []Category{
	CategoryLogos,
	CategorySplash,
	CategoryIcons,
	CategoryBrand,
	CategoryCustom,
}

// Bucket returns the injection plan bucket for an asset type. The mapping is
// total: every value, including ones outside the enumeration, lands in
// exactly one bucket.
func Bucket(t AssetType) Category {
	switch t {
	case AssetTypeLogo:
		return CategoryLogos
	case AssetTypeSplash:
		return CategorySplash
	case AssetTypeIcon:
		return CategoryIcons
	case AssetTypeBrand:
		return CategoryBrand
	default:
		return CategoryCustom
	}
}

// Source field names as they appear in PartnerAssets documents.
const (
	FieldLogo             = "logo"
	FieldSplashBackground = "splashBackground"
	FieldBrandIcon        = "brandIcon"
	FieldLogoSquare       = "logoSquare"
	FieldCustomImages     = "customImages"
)

// PartnerAssets references the raw branding files a partner supplied for a
// build. Every field is optional and an empty value is valid input.
type PartnerAssets struct {
	// Logo is the launcher icon source.
	Logo string `json:"logo,omitempty" yaml:"logo,omitempty"`
	// SplashBackground is the splash screen artwork.
	SplashBackground string `json:"splashBackground,omitempty" yaml:"splashBackground,omitempty"`
	// BrandIcon is rendered as the status bar notification icon.
	BrandIcon string `json:"brandIcon,omitempty" yaml:"brandIcon,omitempty"`
	// LogoSquare is the square brand mark used inside the app.
	LogoSquare string `json:"logoSquare,omitempty" yaml:"logoSquare,omitempty"`
	// CustomImages maps resource names to files, in insertion order.
	CustomImages CustomImages `json:"customImages,omitempty" yaml:"customImages,omitempty"`
}

// IsEmpty reports whether no asset is referenced at all.
func (p PartnerAssets) IsEmpty() bool {
	return len(p.Sources()) == 0
}

// AssetSource is one referenced file together with where it came from.
type AssetSource struct {
	// Field is the PartnerAssets field the path was read from.
	Field string
	// Name is the field name for fixed assets and the map key for custom images.
	Name string
	// Type is the asset type implied by Field.
	Type AssetType
	// Path is the file reference as supplied.
	Path string
}

// Key identifies the source uniquely within one PartnerAssets value.
func (s AssetSource) Key() string {
	if s.Field == FieldCustomImages {
		return s.Field + "." + s.Name
	}
	return s.Field
}

// Sources flattens the partner assets in processing order: logo,
// splashBackground, brandIcon, logoSquare, then custom images in insertion
// order. Absent fields are skipped.
func (p PartnerAssets) Sources() []AssetSource {
	sources := make([]AssetSource, 0, 4+len(p.CustomImages))

	fixed := []struct {
		field string
		typ   AssetType
		path  string
	}{
		{FieldLogo, AssetTypeLogo, p.Logo},
		{FieldSplashBackground, AssetTypeSplash, p.SplashBackground},
		{FieldBrandIcon, AssetTypeIcon, p.BrandIcon},
		{FieldLogoSquare, AssetTypeBrand, p.LogoSquare},
	}
	for _, f := range fixed {
		if f.path == "" {
			continue
		}
		sources = append(sources, AssetSource{Field: f.field, Name: f.field, Type: f.typ, Path: f.path})
	}

	for _, img := range p.CustomImages {
		if img.Path == "" {
			continue
		}
		sources = append(sources, AssetSource{
			Field: FieldCustomImages,
			Name:  img.Name,
			Type:  AssetTypeCustom,
			Path:  img.Path,
		})
	}

	return sources
}

// CustomImage is one named custom asset.
type CustomImage struct {
	Name string
	Path string
}

// CustomImages is an insertion-ordered name to path mapping. It encodes as a
// JSON or YAML object and keeps the document order when decoded.
type CustomImages []CustomImage

// Set adds or replaces name, keeping the position of an existing entry.
func (c *CustomImages) Set(name, path string) {
	for i := range *c {
		if (*c)[i].Name == name {
			(*c)[i].Path = path
			return
		}
	}
	*c = append(*c, CustomImage{Name: name, Path: path})
}

// Get returns the path registered for name.
func (c CustomImages) Get(name string) (string, bool) {
	for _, img := range c {
		if img.Name == name {
			return img.Path, true
		}
	}
	return "", false
}

// MarshalJSON encodes the images as an object in insertion order.
func (c CustomImages) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, img := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(img.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(img.Path)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object, preserving key order.
func (c *CustomImages) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*c = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("customImages: expected an object, got %v", tok)
	}

	var out CustomImages
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("customImages: invalid key %v", keyTok)
		}
		var path string
		if err := dec.Decode(&path); err != nil {
			return fmt.Errorf("customImages[%s]: %w", name, err)
		}
		out.Set(name, path)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*c = out
	return nil
}

// MarshalYAML encodes the images as a mapping in insertion order.
func (c CustomImages) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, img := range c {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: img.Name},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: img.Path},
		)
	}
	return node, nil
}

// UnmarshalYAML decodes a mapping, preserving key order.
func (c *CustomImages) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("customImages: expected a mapping at line %d", value.Line)
	}

	var out CustomImages
	for i := 0; i+1 < len(value.Content); i += 2 {
		var name, path string
		if err := value.Content[i].Decode(&name); err != nil {
			return err
		}
		if err := value.Content[i+1].Decode(&path); err != nil {
			return fmt.Errorf("customImages[%s]: %w", name, err)
		}
		out.Set(name, path)
	}

	*c = out
	return nil
}

var assetNamespace = uuid.MustParse("6f1d2c9e-4b7a-5e3f-9a8d-1c2b3a4d5e6f")

// NewAssetID derives a stable identifier for a source within a build, so
// repeated runs over the same input produce the same ids.
func NewAssetID(buildID string, src AssetSource) string {
	return uuid.NewSHA1(assetNamespace, []byte(buildID+"|"+src.Key())).String()
}
