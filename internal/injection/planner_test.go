package injection

import (
	"encoding/xml"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/brandkit/internal/testutils"
	"github.com/conneroisu/brandkit/internal/transform"
	"github.com/conneroisu/brandkit/internal/types"
)

func processed(t types.AssetType, name string, ratio, score float64) types.ProcessedAsset {
	resource := transform.ProfileFor(types.AssetSource{Type: t, Name: name}).Resource
	return types.ProcessedAsset{
		AssetID: types.NewAssetID("b", types.AssetSource{Type: t, Name: name}),
		Type:    t,
		Name:    name,
		Formats: []string{"png", "webp"},
		Optimization: types.Optimization{
			OriginalSize:     1000,
			FinalSize:        int64(1000 - ratio*10),
			CompressionRatio: ratio,
			QualityScore:     score,
		},
		Metadata: map[string]interface{}{"resource": resource},
	}
}

func scenarioB() types.PipelineResult {
	return types.PipelineResult{
		Success: true,
		ProcessedAssets: []types.ProcessedAsset{
			processed(types.AssetTypeLogo, types.FieldLogo, 22, 95),
			processed(types.AssetTypeSplash, types.FieldSplashBackground, 22, 90),
			processed(types.AssetTypeIcon, types.FieldBrandIcon, 22, 88),
		},
		Errors:       []string{},
		Warnings:     []string{},
		QualityScore: 91,
	}
}

func pointTypes(plan types.InjectionPlan) map[types.InjectionType]int {
	out := map[types.InjectionType]int{}
	for _, p := range plan.InjectionPoints {
		out[p.Type]++
	}
	return out
}

func TestCreateInjectionPlan_ThreeAssets(t *testing.T) {
	planner := NewPlanner(testutils.SampleBuildConfig("acme"), nil)
	plan := planner.CreateInjectionPlan("build-1", "acme", "/tmp/tree", scenarioB())

	assert.Equal(t, "build-1", plan.BuildID)
	assert.Equal(t, "acme", plan.PartnerID)
	assert.Equal(t, "/tmp/tree", plan.TargetPath)

	assert.Len(t, plan.Assets.Logos, 1)
	assert.Len(t, plan.Assets.Splash, 1)
	assert.Len(t, plan.Assets.Icons, 1)
	assert.Len(t, plan.Assets.Brand, 0)
	assert.Len(t, plan.Assets.Custom, 0)

	counts := pointTypes(plan)
	assert.GreaterOrEqual(t, counts[types.InjectionManifest], 1)
	assert.GreaterOrEqual(t, counts[types.InjectionResource], 1)

	var targets []string
	for _, p := range plan.InjectionPoints {
		targets = append(targets, p.TargetFile)
	}
	assert.Equal(t, []string{
		ManifestFile,
		ColorsFile,
		StringsFile,
		LauncherFile,
		RoundFile,
		SplashFile,
		StylesFile,
		IconsFile,
	}, targets)
}

func TestCreateInjectionPlan_EmptyResult(t *testing.T) {
	planner := NewPlanner(testutils.SampleBuildConfig("acme"), nil)
	plan := planner.CreateInjectionPlan("b", "acme", "/tree", types.PipelineResult{})

	assert.Equal(t, 0, plan.Assets.Total())
	assert.NotNil(t, plan.Assets.Logos)
	assert.NotNil(t, plan.Assets.Custom)
	require.Len(t, plan.InjectionPoints, 3)
	assert.Equal(t, types.InjectionManifest, plan.InjectionPoints[0].Type)
}

func TestCreateInjectionPlan_Deterministic(t *testing.T) {
	planner := NewPlanner(testutils.SampleBuildConfig("acme"), nil)
	result := scenarioB()
	custom := processed(types.AssetTypeCustom, "promo banner", 10, 70)
	result.ProcessedAssets = append(result.ProcessedAssets, custom)

	first := planner.CreateInjectionPlan("b", "acme", "/tree", result)
	second := planner.CreateInjectionPlan("b", "acme", "/tree", result)
	assert.Equal(t, first, second)
}

func TestCreateInjectionPlan_DefaultsIdentifiers(t *testing.T) {
	cfg := testutils.SampleBuildConfig("acme")
	plan := NewPlanner(cfg, nil).CreateInjectionPlan("", "", "/tree", scenarioB())

	assert.Equal(t, cfg.BuildID, plan.BuildID)
	assert.Equal(t, "acme", plan.PartnerID)
}

func TestCreateInjectionPlan_UnknownTypeIsCustom(t *testing.T) {
	result := types.PipelineResult{ProcessedAssets: []types.ProcessedAsset{
		processed(types.AssetType("hologram"), "hologram", 0, 50),
	}}
	plan := NewPlanner(testutils.SampleBuildConfig("acme"), nil).CreateInjectionPlan("b", "acme", "/tree", result)

	assert.Len(t, plan.Assets.Custom, 1)
	last := plan.InjectionPoints[len(plan.InjectionPoints)-1]
	assert.Equal(t, CustomFile, last.TargetFile)
}

func TestCreateInjectionPlan_ManifestMetadata(t *testing.T) {
	cfg := testutils.SampleBuildConfig("acme")
	cfg.PartnerConfig.API.APIKey = "sk-secret"
	plan := NewPlanner(cfg, nil).CreateInjectionPlan("b-7", "acme", "/tree", scenarioB())

	manifest := plan.InjectionPoints[0]
	assert.Equal(t, types.ActionInsert, manifest.Action)
	assert.Equal(t, MarkerPartnerMetadata, manifest.Marker)
	assert.Contains(t, manifest.Content, `android:name="brandkit.partner_id" android:value="acme"`)
	assert.Contains(t, manifest.Content, `android:name="brandkit.build_id" android:value="b-7"`)
	assert.Contains(t, manifest.Content, `android:name="brandkit.feature.chat" android:value="false"`)
	assert.Contains(t, manifest.Content, `android:name="brandkit.feature.payments" android:value="true"`)
	assert.NotContains(t, manifest.Content, "sk-secret")

	assert.Less(t,
		strings.Index(manifest.Content, "feature.chat"),
		strings.Index(manifest.Content, "feature.payments"))
}

func TestCreateInjectionPlan_ContentIsWellFormed(t *testing.T) {
	cfg := testutils.SampleBuildConfig("acme")
	cfg.PartnerConfig.Description = `Say "hi" & it's <fast>`
	result := scenarioB()
	result.ProcessedAssets = append(result.ProcessedAssets,
		processed(types.AssetTypeBrand, types.FieldLogoSquare, 5, 80),
		processed(types.AssetTypeCustom, "promo banner", 5, 80),
	)
	plan := NewPlanner(cfg, nil).CreateInjectionPlan("b", "acme", "/tree", result)

	for _, p := range plan.InjectionPoints {
		doc := p.Content
		if p.Action == types.ActionInsert {
			doc = "<root " + androidNS + ">" + doc + "</root>"
		}
		assert.NoError(t, wellFormed(doc), "content for %s is not well formed", p.TargetFile)
	}
}

// wellFormed reads doc to the end and returns the first XML syntax error.
func wellFormed(doc string) error {
	decoder := xml.NewDecoder(strings.NewReader(doc))
	for {
		if _, err := decoder.Token(); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

func TestCreateInjectionPlan_ResourceContent(t *testing.T) {
	cfg := testutils.SampleBuildConfig("acme")
	cfg.PartnerConfig.Branding.SecondaryColor = "not-a-color"
	result := scenarioB()
	result.ProcessedAssets = append(result.ProcessedAssets,
		processed(types.AssetTypeCustom, "promo banner", 5, 80),
	)
	plan := NewPlanner(cfg, nil).CreateInjectionPlan("b", "acme", "/tree", result)

	byTarget := map[string]types.InjectionPoint{}
	for _, p := range plan.InjectionPoints {
		byTarget[p.TargetFile] = p
	}

	colors := byTarget[ColorsFile].Content
	assert.Contains(t, colors, `<color name="brand_primary">#FF5722</color>`)
	assert.Contains(t, colors, `<color name="brand_secondary">`+defaultSecondary+`</color>`)

	assert.Contains(t, byTarget[StringsFile].Content, `<string name="brand_app_name">Acme &amp; Sons</string>`)
	assert.Contains(t, byTarget[LauncherFile].Content, "@drawable/"+transform.AdaptiveForeground)
	assert.Equal(t, byTarget[LauncherFile].Content, byTarget[RoundFile].Content)
	assert.Contains(t, byTarget[SplashFile].Content, "@drawable/splash_image")
	assert.Contains(t, byTarget[StylesFile].Content, "@drawable/"+splashDrawable)
	assert.Contains(t, byTarget[IconsFile].Content, `<item name="brand_notification_icon" type="drawable">`)

	custom := byTarget[CustomFile].Content
	assert.Contains(t, custom, `<item name="brand_custom_promo_banner" type="drawable">@drawable/promo_banner</item>`)
	assert.Contains(t, custom, "<item>promo banner</item>")
}

func TestAndroidString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"a & b", "a &amp; b"},
		{"it's", `it\&#39;s`},
		{`say "x"`, `say \&#34;x\&#34;`},
		{"@home", `\@home`},
		{"?attr", `\?attr`},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, androidString(tt.in))
		})
	}
}

func TestCategorize(t *testing.T) {
	result := scenarioB()
	result.ProcessedAssets = append(result.ProcessedAssets,
		processed(types.AssetTypeCustom, "a", 0, 0),
		processed(types.AssetTypeCustom, "b", 0, 0),
	)
	c := Categorize(result.ProcessedAssets)

	assert.Equal(t, len(result.ProcessedAssets), c.Total())
	require.Len(t, c.Custom, 2)
	assert.Equal(t, "a", c.Custom[0].Name)
	assert.Equal(t, "b", c.Custom[1].Name)
}
