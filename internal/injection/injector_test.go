package injection

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/brandkit/internal/errors"
	"github.com/conneroisu/brandkit/internal/testutils"
	"github.com/conneroisu/brandkit/internal/types"
)

func planFor(t *testing.T, root string, cfg types.BuildConfig) types.InjectionPlan {
	t.Helper()
	return NewPlanner(cfg, nil).CreateInjectionPlan(cfg.BuildID, cfg.PartnerID, root, scenarioB())
}

func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	files := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		files[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return files
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func TestInjectAssets_AppliesPlan(t *testing.T) {
	root := testutils.CreateBuildTree(t)
	plan := planFor(t, root, testutils.SampleBuildConfig("acme"))

	require.True(t, NewInjector(nil).InjectAssets(context.Background(), plan))

	manifest := readFile(t, root, ManifestFile)
	assert.Contains(t, manifest, `<activity android:name=".MainActivity" />`)
	assert.Contains(t, manifest, `android:name="brandkit.partner_id" android:value="acme"`)
	begin := strings.Index(manifest, beginMarker(MarkerPartnerMetadata))
	require.GreaterOrEqual(t, begin, 0)
	assert.Less(t, begin, strings.Index(manifest, "</application>"))
	assert.Contains(t, manifest, "        "+beginMarker(MarkerPartnerMetadata))

	for _, p := range plan.InjectionPoints {
		if p.Action == types.ActionReplace {
			assert.Equal(t, p.Content, readFile(t, root, p.TargetFile))
		}
	}

	styles := readFile(t, root, StylesFile)
	assert.True(t, strings.HasPrefix(styles, xmlHeader))
	assert.Contains(t, styles, `<style name="BrandkitSplashTheme"`)
	assert.Contains(t, styles, "</resources>")
}

func TestInjectAssets_Idempotent(t *testing.T) {
	root := testutils.CreateBuildTree(t)
	plan := planFor(t, root, testutils.SampleBuildConfig("acme"))
	injector := NewInjector(nil)

	_, err := injector.Apply(context.Background(), plan)
	require.NoError(t, err)
	first := snapshot(t, root)

	report, err := injector.Apply(context.Background(), plan)
	require.NoError(t, err)
	assert.Empty(t, report.Written)
	assert.Len(t, report.Unchanged, len(plan.InjectionPoints))
	assert.Equal(t, first, snapshot(t, root))
}

func TestInjectAssets_ReplacesMarkedBlock(t *testing.T) {
	root := testutils.CreateBuildTree(t)
	injector := NewInjector(nil)
	cfg := testutils.SampleBuildConfig("acme")

	require.True(t, injector.InjectAssets(context.Background(), planFor(t, root, cfg)))

	cfg.BuildID = "build-next"
	require.True(t, injector.InjectAssets(context.Background(), planFor(t, root, cfg)))

	manifest := readFile(t, root, ManifestFile)
	assert.Equal(t, 1, strings.Count(manifest, beginMarker(MarkerPartnerMetadata)))
	assert.Equal(t, 1, strings.Count(manifest, endMarker(MarkerPartnerMetadata)))
	assert.Contains(t, manifest, `android:value="build-next"`)
	assert.NotContains(t, manifest, `android:value="build-acme"`)

	styles := readFile(t, root, StylesFile)
	assert.Equal(t, 1, strings.Count(styles, "BrandkitSplashTheme"))
}

func TestInjectAssets_CreatesMissingManifest(t *testing.T) {
	root := t.TempDir()
	plan := planFor(t, root, testutils.SampleBuildConfig("acme"))

	require.True(t, NewInjector(nil).InjectAssets(context.Background(), plan))

	manifest := readFile(t, root, ManifestFile)
	assert.True(t, strings.HasPrefix(manifest, xmlHeader))
	assert.Contains(t, manifest, "<application>")
	assert.Less(t,
		strings.Index(manifest, "brandkit.partner_id"),
		strings.Index(manifest, "</application>"))
}

func TestInjectAssets_SelfClosingApplication(t *testing.T) {
	root := t.TempDir()
	testutils.WriteFile(t, root, ManifestFile, []byte(`<?xml version="1.0" encoding="utf-8"?>
<manifest xmlns:android="http://schemas.android.com/apk/res/android">
    <application android:label="a > b" android:icon="@mipmap/ic_launcher" />
</manifest>
`))
	plan := planFor(t, root, testutils.SampleBuildConfig("acme"))
	injector := NewInjector(nil)

	require.True(t, injector.InjectAssets(context.Background(), plan))
	manifest := readFile(t, root, ManifestFile)

	assert.Contains(t, manifest, `<application android:label="a > b" android:icon="@mipmap/ic_launcher">`)
	assert.Equal(t, 1, strings.Count(manifest, "</application>"))
	meta := strings.Index(manifest, "brandkit.partner_id")
	require.GreaterOrEqual(t, meta, 0)
	assert.Less(t, strings.Index(manifest, "<application"), meta)
	assert.Less(t, meta, strings.Index(manifest, "</application>"))
	assert.NoError(t, wellFormed(manifest))

	require.True(t, injector.InjectAssets(context.Background(), plan))
	assert.Equal(t, manifest, readFile(t, root, ManifestFile))
}

func TestOpenElement(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"self closing", "<manifest>\n  <application a=\"1\"/>\n</manifest>", "<manifest>\n  <application a=\"1\">\n  </application>\n</manifest>"},
		{"bare", "<manifest><application/></manifest>", "<manifest><application>\n</application></manifest>"},
		{"already open", "<application>\n</application>", "<application>\n</application>"},
		{"open without close", "<application>", "<application>"},
		{"prefix only", "<applicationx/>", "<applicationx/>"},
		{"absent", "<manifest/>", "<manifest/>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, openElement(tt.in, "application"))
		})
	}
}

func TestInjectAssets_UnmarkedInsertIsNotDuplicated(t *testing.T) {
	root := testutils.CreateBuildTree(t)
	plan := types.InjectionPlan{
		TargetPath: root,
		InjectionPoints: []types.InjectionPoint{{
			Type:       types.InjectionManifest,
			TargetFile: ManifestFile,
			Action:     types.ActionInsert,
			Content:    `<uses-permission android:name="android.permission.INTERNET" />`,
		}},
	}
	injector := NewInjector(nil)

	require.True(t, injector.InjectAssets(context.Background(), plan))
	require.True(t, injector.InjectAssets(context.Background(), plan))

	manifest := readFile(t, root, ManifestFile)
	assert.Equal(t, 1, strings.Count(manifest, "android.permission.INTERNET"))
}

func TestInjectAssets_Placeholder(t *testing.T) {
	root := t.TempDir()
	target := "app/src/main/res/values/config.xml"
	testutils.WriteFile(t, root, target, []byte("<resources>\n    {{BRAND_COLOR}}\n</resources>\n"))

	plan := types.InjectionPlan{
		TargetPath: root,
		InjectionPoints: []types.InjectionPoint{{
			Type:        types.InjectionResource,
			TargetFile:  target,
			Action:      types.ActionReplace,
			Content:     `<color name="x">#000000</color>`,
			Placeholder: "{{BRAND_COLOR}}",
		}},
	}
	injector := NewInjector(nil)
	want := "<resources>\n    <color name=\"x\">#000000</color>\n</resources>\n"

	require.True(t, injector.InjectAssets(context.Background(), plan))
	assert.Equal(t, want, readFile(t, root, target))

	require.True(t, injector.InjectAssets(context.Background(), plan))
	assert.Equal(t, want, readFile(t, root, target))
}

func TestApply_RejectsInvalidPlans(t *testing.T) {
	root := t.TempDir()
	point := func(target string, action types.InjectionAction) types.InjectionPoint {
		return types.InjectionPoint{Type: types.InjectionResource, TargetFile: target, Action: action, Content: "x"}
	}

	tests := []struct {
		name string
		plan types.InjectionPlan
		code string
	}{
		{"no target path", types.InjectionPlan{}, errors.ErrCodeInvalidPlan},
		{"escaping path", types.InjectionPlan{TargetPath: root, InjectionPoints: []types.InjectionPoint{
			point("../outside.xml", types.ActionReplace),
		}}, errors.ErrCodeInvalidPath},
		{"absolute path", types.InjectionPlan{TargetPath: root, InjectionPoints: []types.InjectionPoint{
			point("/etc/outside.xml", types.ActionReplace),
		}}, errors.ErrCodeInvalidPath},
		{"root itself", types.InjectionPlan{TargetPath: root, InjectionPoints: []types.InjectionPoint{
			point(".", types.ActionReplace),
		}}, errors.ErrCodeInvalidPath},
		{"unknown action", types.InjectionPlan{TargetPath: root, InjectionPoints: []types.InjectionPoint{
			point("a.xml", types.InjectionAction("append")),
		}}, errors.ErrCodeInvalidPlan},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewInjector(nil).Apply(context.Background(), tt.plan)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
			assert.Empty(t, snapshot(t, root))
		})
	}
}

func TestInjectAssets_StopsAtFirstFailure(t *testing.T) {
	root := testutils.CreateBuildTree(t)
	// A file where the values directory should be makes every resource write fail.
	valuesDir := filepath.Join(root, "app/src/main/res/values")
	require.NoError(t, os.RemoveAll(valuesDir))
	require.NoError(t, os.WriteFile(valuesDir, []byte("not a directory"), 0o644))

	plan := planFor(t, root, testutils.SampleBuildConfig("acme"))
	injector := NewInjector(nil)

	report, err := injector.Apply(context.Background(), plan)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInjection))
	assert.Equal(t, ColorsFile, errors.GetErrorContext(err)["file"])
	assert.Equal(t, []string{ManifestFile}, report.Written)

	assert.False(t, injector.InjectAssets(context.Background(), plan))
	_, statErr := os.Stat(filepath.Join(root, LauncherFile))
	assert.True(t, os.IsNotExist(statErr))
}

func TestInjectAssets_Cancelled(t *testing.T) {
	root := testutils.CreateBuildTree(t)
	before := snapshot(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, NewInjector(nil).InjectAssets(ctx, planFor(t, root, testutils.SampleBuildConfig("acme"))))
	assert.Equal(t, before, snapshot(t, root))
}

func TestInsertContent_AnchorFallbacks(t *testing.T) {
	point := types.InjectionPoint{Type: types.InjectionManifest, Content: "<x />", Marker: "m"}

	withoutApplication := "<manifest>\n</manifest>\n"
	got := insertContent(withoutApplication, point)
	assert.Equal(t, "<manifest>\n    "+beginMarker("m")+"\n    <x />\n    "+endMarker("m")+"\n</manifest>\n", got)

	inline := "<manifest><application></application></manifest>"
	got = insertContent(inline, point)
	assert.Contains(t, got, "<application>\n    "+beginMarker("m"))
	assert.Equal(t, got, insertContent(got, point))

	noAnchor := "plain"
	got = insertContent(noAnchor, point)
	assert.Equal(t, "plain\n"+beginMarker("m")+"\n<x />\n"+endMarker("m")+"\n", got)
}
