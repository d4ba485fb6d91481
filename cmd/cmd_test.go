package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/brandkit/internal/injection"
	"github.com/conneroisu/brandkit/internal/orchestrator"
	"github.com/conneroisu/brandkit/internal/testutils"
	"github.com/conneroisu/brandkit/internal/types"
)

// workspace switches into a fresh directory with its own build and report
// locations, so no local .brandkit.yml or .env leaks into a test.
func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
	t.Setenv("BRANDKIT_BUILD_WORK_DIR", filepath.Join(dir, "builds"))
	t.Setenv("BRANDKIT_BUILD_REPORT_DIR", filepath.Join(dir, "reports"))
	t.Setenv("BRANDKIT_LOG_LEVEL", "error")
	return dir
}

// resetFlags restores every flag to its default between executions.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	cfgFile = ""
	resetFlags(rootCmd)
	t.Cleanup(viper.Reset)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

// writeRequest writes a build request for partner id with a logo and a
// splash image next to it and returns its path.
func writeRequest(t *testing.T, dir, id string, mutate func(*types.BuildRequest)) string {
	t.Helper()
	src := filepath.Join(dir, "sources", id)
	require.NoError(t, os.MkdirAll(src, 0o755))
	testutils.WritePNG(t, src, "logo.png", 256, 256, true)
	testutils.WriteJPEG(t, src, "splash.jpg", 540, 960)

	req := types.BuildRequest{
		Build: testutils.SampleBuildConfig(id),
		Assets: types.PartnerAssets{
			Logo:             filepath.Join("sources", id, "logo.png"),
			SplashBackground: filepath.Join("sources", id, "splash.jpg"),
		},
	}
	if mutate != nil {
		mutate(&req)
	}
	data, err := json.Marshal(req)
	require.NoError(t, err)
	return testutils.WriteFile(t, dir, id+".json", data)
}

func TestVersionCommand(t *testing.T) {
	workspace(t)

	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "brandkit ")
	assert.Contains(t, out, "Platform: ")

	out, err = run(t, "version", "-o", "json")
	require.NoError(t, err)
	var info map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Contains(t, info, "version")
	assert.Contains(t, info, "release")

	_, err = run(t, "version", "-o", "yaml")
	assert.ErrorContains(t, err, "invalid output format")
}

func TestProcessCommand(t *testing.T) {
	dir := workspace(t)
	request := writeRequest(t, dir, "acme", nil)
	out := filepath.Join(dir, "out")

	stdout, err := run(t, "process", request, "--out", out, "--formats", "png", "-o", "json")
	require.NoError(t, err)

	var result resultOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.True(t, result.Success)
	require.Len(t, result.ProcessedAssets, 2)
	assert.Equal(t, types.AssetTypeLogo, result.ProcessedAssets[0].Type)
	assert.Equal(t, types.AssetTypeSplash, result.ProcessedAssets[1].Type)
	assert.Equal(t, map[string]int{"png": 2}, result.Stats.FormatDistribution)
	for _, p := range result.ProcessedAssets[0].OutputPaths {
		assert.FileExists(t, p)
		assert.True(t, strings.HasPrefix(p, out), p)
	}
}

func TestProcessCommand_TextOutputAndSavedResult(t *testing.T) {
	dir := workspace(t)
	request := writeRequest(t, dir, "acme", nil)
	saved := filepath.Join(dir, "result.json")

	stdout, err := run(t, "process", request, "--save-result", saved)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Pipeline succeeded: 2 assets")
	assert.Contains(t, stdout, "Output: "+filepath.Join(dir, "builds", "build-acme"))

	var result types.PipelineResult
	require.NoError(t, loadJSON(saved, &result))
	assert.Len(t, result.ProcessedAssets, 2)
}

func TestProcessCommand_Failures(t *testing.T) {
	dir := workspace(t)

	missing := writeRequest(t, dir, "broken", func(r *types.BuildRequest) {
		r.Assets.Logo = "sources/broken/nope.png"
	})
	stdout, err := run(t, "process", missing, "-o", "text")
	assert.ErrorContains(t, err, "asset pipeline failed")
	assert.Contains(t, stdout, "Errors:")

	notes := testutils.WriteFile(t, dir, "request.txt", []byte("{}"))
	_, err = run(t, "process", notes)
	assert.ErrorContains(t, err, "must be a .json, .yml or .yaml file")

	_, err = run(t, "process")
	assert.Error(t, err)
}

func TestConfigFileFlag(t *testing.T) {
	dir := workspace(t)
	request := writeRequest(t, dir, "acme", nil)
	cfg := testutils.WriteFile(t, dir, "custom.yaml", []byte("pipeline:\n  output_formats: [webp]\n"))

	stdout, err := run(t, "--config", cfg, "process", request, "-o", "json")
	require.NoError(t, err)

	var result resultOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.Equal(t, map[string]int{"webp": 2}, result.Stats.FormatDistribution)
}

func TestPlanAndInjectCommands(t *testing.T) {
	dir := workspace(t)
	request := writeRequest(t, dir, "acme", nil)
	tree := filepath.Join(dir, "tree")
	resultFile := filepath.Join(dir, "result.json")
	planFile := filepath.Join(dir, "plan.json")

	_, err := run(t, "process", request, "--out", tree, "--save-result", resultFile)
	require.NoError(t, err)

	stdout, err := run(t, "plan", request, "--result", resultFile, "--build-path", tree, "--save", planFile)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Injection plan for build build-acme (acme)")
	assert.Contains(t, stdout, injection.ManifestFile)

	var plan types.InjectionPlan
	require.NoError(t, loadJSON(planFile, &plan))
	assert.Equal(t, tree, plan.TargetPath)
	assert.Len(t, plan.Assets.Logos, 1)
	assert.Len(t, plan.Assets.Splash, 1)

	stdout, err = run(t, "inject", planFile, "-o", "json")
	require.NoError(t, err)
	var first injection.Report
	require.NoError(t, json.Unmarshal([]byte(stdout), &first))
	assert.Contains(t, first.Written, injection.ManifestFile)
	assert.FileExists(t, filepath.Join(tree, injection.ColorsFile))

	stdout, err = run(t, "inject", planFile, "-o", "json")
	require.NoError(t, err)
	var second injection.Report
	require.NoError(t, json.Unmarshal([]byte(stdout), &second))
	assert.Empty(t, second.Written, "re-applying a plan changes nothing")

	_, err = run(t, "inject", planFile, "--target", filepath.Join(dir, "missing"))
	assert.ErrorContains(t, err, "directory does not exist")
}

func TestPlanCommand_RefusesFailedResult(t *testing.T) {
	dir := workspace(t)
	request := writeRequest(t, dir, "acme", nil)
	resultFile := testutils.WriteFile(t, dir, "failed.json",
		[]byte(`{"success":false,"processedAssets":[],"errors":["decode failed"],"warnings":[]}`))

	_, err := run(t, "plan", request, "--result", resultFile)
	assert.ErrorContains(t, err, "failed pipeline run")
}

func TestBuildAndStatsCommands(t *testing.T) {
	dir := workspace(t)
	request := writeRequest(t, dir, "acme", nil)
	template := filepath.Join(dir, "template")
	testutils.WriteFile(t, template, injection.ManifestFile, []byte(testutils.MinimalManifest))

	stdout, err := run(t, "build", request, "--template", template, "-o", "json")
	require.NoError(t, err)
	var report orchestrator.BuildReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.True(t, report.Success, report.Error)
	assert.True(t, report.Stages.AssetInjection)
	assert.FileExists(t, filepath.Join(dir, "reports", "build-acme.json"))

	manifest, err := os.ReadFile(filepath.Join(report.BuildPath, injection.ManifestFile))
	require.NoError(t, err)
	assert.Contains(t, string(manifest), "acme")

	stdout, err = run(t, "stats", "--build", "build-acme", "-o", "json")
	require.NoError(t, err)
	var stats types.PipelineStats
	require.NoError(t, json.Unmarshal([]byte(stdout), &stats))
	assert.Equal(t, 2, stats.TotalAssets)

	stdout, err = run(t, "stats", filepath.Join(dir, "reports", "build-acme.json"))
	require.NoError(t, err)
	assert.Contains(t, stdout, "Assets: 2")
	assert.Contains(t, stdout, "Formats: png=2 webp=2")

	_, err = run(t, "stats")
	assert.Error(t, err)
}

func TestBuildCommand_TextReport(t *testing.T) {
	dir := workspace(t)
	request := writeRequest(t, dir, "acme", nil)

	stdout, err := run(t, "build", request)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Build build-acme for acme succeeded")
	assert.Contains(t, stdout, "assetInjection")

	_, err = run(t, "build", request, "--template", filepath.Join(dir, "nope"))
	assert.ErrorContains(t, err, "directory does not exist")
}

func TestBatchCommand(t *testing.T) {
	dir := workspace(t)
	acme := writeRequest(t, dir, "acme", nil)
	globex := writeRequest(t, dir, "globex", nil)
	broken := writeRequest(t, dir, "broken", func(r *types.BuildRequest) {
		r.Build.PartnerConfig.PackageName = "not a package"
	})

	stdout, err := run(t, "batch", acme, globex, "--parallel", "2", "-o", "json")
	require.NoError(t, err)
	var entries []batchEntry
	require.NoError(t, json.Unmarshal([]byte(stdout), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, acme, entries[0].Request)
	assert.Equal(t, "build-globex", entries[1].Report.BuildID)
	assert.Empty(t, entries[0].Error)

	stdout, err = run(t, "batch", acme, broken)
	assert.ErrorContains(t, err, "1 of 2 builds failed")
	assert.Contains(t, stdout, "failed: ")
}

func TestServeCommand_RejectsBadPort(t *testing.T) {
	workspace(t)
	_, err := run(t, "serve", "--port", "70000")
	assert.ErrorContains(t, err, "port must be between 1 and 65535")
}

func TestWatchDirs(t *testing.T) {
	dir := t.TempDir()
	request := filepath.Join(dir, "acme.json")
	var assets types.PartnerAssets
	assets.Logo = filepath.Join(dir, "brand", "logo.png")
	assets.SplashBackground = filepath.Join(dir, "brand", "splash.png")
	assets.CustomImages.Set("hero", filepath.Join(dir, "extra", "hero.png"))

	assert.Equal(t, []string{
		dir,
		filepath.Join(dir, "brand"),
		filepath.Join(dir, "extra"),
	}, watchDirs(request, assets))
}

func TestOutputFormatFlag(t *testing.T) {
	var f outputFormat
	assert.NoError(t, f.Set("json"))
	assert.Equal(t, "json", f.String())
	assert.Error(t, f.Set("table"))
	assert.Equal(t, outputJSON, f)
}
