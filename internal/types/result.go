package types

// Dimensions is a pixel size.
type Dimensions struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Optimization records what processing did to an asset's byte size and how
// fit the result is.
type Optimization struct {
	// OriginalSize is the source file size in bytes.
	OriginalSize int64 `json:"originalSize"`
	// FinalSize is the size of the representative output in bytes, never
	// larger than OriginalSize.
	FinalSize int64 `json:"finalSize"`
	// CompressionRatio is (OriginalSize-FinalSize)/OriginalSize*100.
	CompressionRatio float64 `json:"compressionRatio"`
	// QualityScore is a heuristic fitness score in [0,100].
	QualityScore float64 `json:"qualityScore"`
}

// CompressionRatio computes the percentage size reduction. It is 0 when the
// original size is not positive.
func CompressionRatio(originalSize, finalSize int64) float64 {
	if originalSize <= 0 {
		return 0
	}
	return float64(originalSize-finalSize) / float64(originalSize) * 100
}

// ProcessedAsset describes one transformed source asset.
type ProcessedAsset struct {
	// AssetID is stable for a given build id and source.
	AssetID string `json:"assetId"`
	// Type matches the PartnerAssets field the asset came from.
	Type AssetType `json:"type"`
	// Name is the source field, or the custom image name.
	Name string `json:"name"`
	// OriginalPath is the source file reference.
	OriginalPath string `json:"originalPath"`
	// OutputPaths lists every written variant, ordered by format then bucket.
	OutputPaths []string `json:"outputPaths"`
	// Formats lists the output formats produced.
	Formats []string `json:"formats"`
	// Sizes maps size-bucket labels to pixel dimensions.
	Sizes map[string]Dimensions `json:"sizes"`
	// Optimization holds byte and quality metrics.
	Optimization Optimization `json:"optimization"`
	// Metadata carries format-specific facts such as hasAlpha.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// PipelineResult is the structured outcome of one pipeline run.
type PipelineResult struct {
	Success         bool             `json:"success"`
	ProcessedAssets []ProcessedAsset `json:"processedAssets"`
	Errors          []string         `json:"errors"`
	Warnings        []string         `json:"warnings"`
	// ProcessingTime is the elapsed wall time in milliseconds.
	ProcessingTime int64 `json:"processingTime"`
	// QualityScore is the mean per-asset score, 0 when nothing was processed.
	QualityScore float64 `json:"qualityScore"`
}

// PipelineStats summarizes a PipelineResult.
type PipelineStats struct {
	TotalAssets        int            `json:"totalAssets"`
	ProcessingTime     int64          `json:"processingTime"`
	QualityScore       float64        `json:"qualityScore"`
	TotalOptimization  float64        `json:"totalOptimization"`
	FormatDistribution map[string]int `json:"formatDistribution"`
}

// CategorizedAssets partitions processed assets into the plan buckets.
type CategorizedAssets struct {
	Logos  []ProcessedAsset `json:"logos"`
	Splash []ProcessedAsset `json:"splash"`
	Icons  []ProcessedAsset `json:"icons"`
	Brand  []ProcessedAsset `json:"brand"`
	Custom []ProcessedAsset `json:"custom"`
}

// NewCategorizedAssets returns a value with every bucket non-nil.
func NewCategorizedAssets() CategorizedAssets {
	return CategorizedAssets{
		Logos:  []ProcessedAsset{},
		Splash: []ProcessedAsset{},
		Icons:  []ProcessedAsset{},
		Brand:  []ProcessedAsset{},
		Custom: []ProcessedAsset{},
	}
}

// Add appends asset to the bucket selected by its type.
func (c *CategorizedAssets) Add(asset ProcessedAsset) {
	switch Bucket(asset.Type) {
	case CategoryLogos:
		c.Logos = append(c.Logos, asset)
	case CategorySplash:
		c.Splash = append(c.Splash, asset)
	case CategoryIcons:
		c.Icons = append(c.Icons, asset)
	case CategoryBrand:
		c.Brand = append(c.Brand, asset)
	default:
		c.Custom = append(c.Custom, asset)
	}
}

// Get returns the bucket for category.
func (c CategorizedAssets) Get(category Category) []ProcessedAsset {
	switch category {
	case CategoryLogos:
		return c.Logos
	case CategorySplash:
		return c.Splash
	case CategoryIcons:
		return c.Icons
	case CategoryBrand:
		return c.Brand
	default:
		return c.Custom
	}
}

// Total returns the number of assets across all buckets.
func (c CategorizedAssets) Total() int {
	return len(c.Logos) + len(c.Splash) + len(c.Icons) + len(c.Brand) + len(c.Custom)
}

// InjectionType is the kind of file an injection point edits.
type InjectionType string

const (
	InjectionManifest InjectionType = "manifest"
	InjectionResource InjectionType = "resource"
)

// InjectionAction is how content is applied to the target file.
type InjectionAction string

const (
	ActionInsert  InjectionAction = "insert"
	ActionReplace InjectionAction = "replace"
)

// InjectionPoint is one targeted edit of the build tree.
type InjectionPoint struct {
	Type InjectionType `json:"type"`
	// TargetFile is relative to the plan's TargetPath.
	TargetFile string          `json:"targetFile"`
	Action     InjectionAction `json:"action"`
	// Content is a complete XML document (replace) or element block (insert).
	Content string `json:"content"`
	// Marker names the delimited block an insert owns, so re-applying it
	// replaces the block instead of duplicating it.
	Marker string `json:"marker,omitempty"`
	// Placeholder, when present in the target, is substituted by a replace
	// instead of rewriting the whole file.
	Placeholder string `json:"placeholder,omitempty"`
}

// InjectionPlan describes every edit needed to brand a build tree.
type InjectionPlan struct {
	BuildID         string            `json:"buildId"`
	PartnerID       string            `json:"partnerId"`
	TargetPath      string            `json:"targetPath"`
	Assets          CategorizedAssets `json:"assets"`
	InjectionPoints []InjectionPoint  `json:"injectionPoints"`
}
