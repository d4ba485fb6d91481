// Package injection plans and applies the edits that brand an Android build
// tree with processed partner assets.
//
// Planning is pure: CreateInjectionPlan derives every injection point from a
// pipeline result and the build configuration without touching the
// filesystem. The Injector applies a plan.
package injection

import (
	"github.com/conneroisu/brandkit/internal/logging"
	"github.com/conneroisu/brandkit/internal/transform"
	"github.com/conneroisu/brandkit/internal/types"
)

// Target files, relative to the build tree root.
const (
	ManifestFile = "app/src/main/AndroidManifest.xml"
	ColorsFile   = transform.ResourceDir + "/values/brandkit_colors.xml"
	StringsFile  = transform.ResourceDir + "/values/brandkit_strings.xml"
	LauncherFile = transform.ResourceDir + "/mipmap-anydpi-v26/ic_launcher.xml"
	RoundFile    = transform.ResourceDir + "/mipmap-anydpi-v26/" + transform.RoundLauncher + ".xml"
	SplashFile   = transform.ResourceDir + "/drawable/" + splashDrawable + ".xml"
	StylesFile   = transform.ResourceDir + "/values/styles.xml"
	IconsFile    = transform.ResourceDir + "/values/brandkit_icons.xml"
	BrandFile    = transform.ResourceDir + "/values/brandkit_brand.xml"
	CustomFile   = transform.ResourceDir + "/values/brandkit_custom.xml"
)

// Markers delimiting the blocks owned by insert points.
const (
	MarkerPartnerMetadata = "partner-metadata"
	MarkerSplashTheme     = "splash-theme"
)

const splashDrawable = "brandkit_splash"

// Planner builds injection plans for one build configuration.
type Planner struct {
	config types.BuildConfig
	logger logging.Logger
}

// NewPlanner creates a planner. The configuration supplies branding, the
// app label and feature flags.
func NewPlanner(config types.BuildConfig, logger logging.Logger) *Planner {
	return &Planner{
		config: config,
		logger: logging.OrNop(logger).WithComponent("planner"),
	}
}

// Categorize partitions assets into the five plan buckets, keeping input
// order inside each bucket.
func Categorize(assets []types.ProcessedAsset) types.CategorizedAssets {
	out := types.NewCategorizedAssets()
	for _, asset := range assets {
		out.Add(asset)
	}
	return out
}

// CreateInjectionPlan derives the plan for result. It performs no I/O and
// returns the same plan for the same inputs.
func (p *Planner) CreateInjectionPlan(
	buildID, partnerID, targetPath string,
	result types.PipelineResult,
) types.InjectionPlan {
	if partnerID == "" {
		partnerID = p.config.EffectivePartnerID()
	}
	if buildID == "" {
		buildID = p.config.BuildID
	}

	assets := Categorize(result.ProcessedAssets)
	points := []types.InjectionPoint{
		{
			Type:       types.InjectionManifest,
			TargetFile: ManifestFile,
			Action:     types.ActionInsert,
			Content:    manifestMetadata(buildID, partnerID, p.config),
			Marker:     MarkerPartnerMetadata,
		},
		{
			Type:       types.InjectionResource,
			TargetFile: ColorsFile,
			Action:     types.ActionReplace,
			Content:    colorsDocument(p.config.PartnerConfig.Branding),
		},
		{
			Type:       types.InjectionResource,
			TargetFile: StringsFile,
			Action:     types.ActionReplace,
			Content:    stringsDocument(partnerID, p.config),
		},
	}

	for _, category := range types.Categories {
		bucket := assets.Get(category)
		if len(bucket) == 0 {
			continue
		}
		points = append(points, categoryPoints(category, bucket)...)
	}

	return types.InjectionPlan{
		BuildID:         buildID,
		PartnerID:       partnerID,
		TargetPath:      targetPath,
		Assets:          assets,
		InjectionPoints: points,
	}
}

func categoryPoints(category types.Category, bucket []types.ProcessedAsset) []types.InjectionPoint {
	resources := make([]string, 0, len(bucket))
	for _, asset := range bucket {
		resources = append(resources, resourceOf(asset))
	}

	switch category {
	case types.CategoryLogos:
		return []types.InjectionPoint{
			{
				Type:       types.InjectionResource,
				TargetFile: LauncherFile,
				Action:     types.ActionReplace,
				Content:    adaptiveIconDocument(transform.AdaptiveForeground),
			},
			{
				Type:       types.InjectionResource,
				TargetFile: RoundFile,
				Action:     types.ActionReplace,
				Content:    adaptiveIconDocument(transform.AdaptiveForeground),
			},
		}
	case types.CategorySplash:
		return []types.InjectionPoint{
			{
				Type:       types.InjectionResource,
				TargetFile: SplashFile,
				Action:     types.ActionReplace,
				Content:    splashDocument(resources[0]),
			},
			{
				Type:       types.InjectionResource,
				TargetFile: StylesFile,
				Action:     types.ActionInsert,
				Content:    splashTheme(),
				Marker:     MarkerSplashTheme,
			},
		}
	case types.CategoryIcons:
		return []types.InjectionPoint{{
			Type:       types.InjectionResource,
			TargetFile: IconsFile,
			Action:     types.ActionReplace,
			Content:    aliasDocument("brand_notification_icon", resources),
		}}
	case types.CategoryBrand:
		return []types.InjectionPoint{{
			Type:       types.InjectionResource,
			TargetFile: BrandFile,
			Action:     types.ActionReplace,
			Content:    aliasDocument("brand_logo", resources),
		}}
	default:
		return []types.InjectionPoint{{
			Type:       types.InjectionResource,
			TargetFile: CustomFile,
			Action:     types.ActionReplace,
			Content:    customDocument(bucket),
		}}
	}
}

// resourceOf returns the Android resource name an asset was written under.
func resourceOf(asset types.ProcessedAsset) string {
	if res, ok := asset.Metadata["resource"].(string); ok && res != "" {
		return res
	}
	return transform.ProfileFor(types.AssetSource{Type: asset.Type, Name: asset.Name}).Resource
}
