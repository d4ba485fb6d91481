package types

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/brandkit/internal/errors"
)

// BuildType selects the Android build variant.
type BuildType string

const (
	BuildTypeDebug   BuildType = "debug"
	BuildTypeRelease BuildType = "release"
)

// BuildConfig identifies one partner build and carries the partner
// configuration that drives injected metadata.
type BuildConfig struct {
	// BuildID uniquely identifies the build.
	BuildID string `json:"buildId" yaml:"buildId"`
	// BuildType is debug or release.
	BuildType BuildType `json:"buildType" yaml:"buildType"`
	// PartnerID is the tenant the build belongs to. It falls back to the app name.
	PartnerID string `json:"partnerId,omitempty" yaml:"partnerId,omitempty"`
	// PartnerConfig holds the partner-specific app settings.
	PartnerConfig PartnerConfig `json:"partnerConfig" yaml:"partnerConfig"`
}

// PartnerConfig describes the branded application.
type PartnerConfig struct {
	AppName     string          `json:"appName" yaml:"appName"`
	PackageName string          `json:"packageName" yaml:"packageName"`
	Version     string          `json:"version" yaml:"version"`
	VersionCode int             `json:"versionCode,omitempty" yaml:"versionCode,omitempty"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	API         APIConfig       `json:"api" yaml:"api"`
	Branding    Branding        `json:"branding" yaml:"branding"`
	Features    map[string]bool `json:"features,omitempty" yaml:"features,omitempty"`
}

// APIConfig is the backend the branded app talks to.
type APIConfig struct {
	BaseURL     string `json:"baseUrl" yaml:"baseUrl"`
	APIKey      string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	Environment string `json:"environment,omitempty" yaml:"environment,omitempty"`
}

// Branding holds the partner palette as hex color strings.
type Branding struct {
	PrimaryColor    string `json:"primaryColor" yaml:"primaryColor"`
	SecondaryColor  string `json:"secondaryColor" yaml:"secondaryColor"`
	BackgroundColor string `json:"backgroundColor" yaml:"backgroundColor"`
	TextColor       string `json:"textColor" yaml:"textColor"`
	SupportDarkMode bool   `json:"supportDarkMode,omitempty" yaml:"supportDarkMode,omitempty"`
}

// EffectivePartnerID returns PartnerID, or the app name when it is unset.
func (c BuildConfig) EffectivePartnerID() string {
	if c.PartnerID != "" {
		return c.PartnerID
	}
	return c.PartnerConfig.AppName
}

// SortedFeatures returns feature names in lexical order so generated
// content does not depend on map iteration order.
func (c PartnerConfig) SortedFeatures() []string {
	names := make([]string, 0, len(c.Features))
	for name := range c.Features {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	colorPattern   = regexp.MustCompile(`^#([0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)
	packagePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*(\.[a-zA-Z][a-zA-Z0-9_]*)+$`)
)

// IsHexColor reports whether s is a #RRGGBB or #AARRGGBB color.
func IsHexColor(s string) bool {
	return colorPattern.MatchString(s)
}

// Validate checks the fields the injector relies on.
func (c BuildConfig) Validate() error {
	var vec errors.ValidationErrorCollection

	if strings.TrimSpace(c.BuildID) == "" {
		vec.AddField("buildId", c.BuildID, "build id is required")
	}
	switch c.BuildType {
	case BuildTypeDebug, BuildTypeRelease, "":
	default:
		vec.AddField("buildType", c.BuildType, "unknown build type", "use debug or release")
	}
	if strings.TrimSpace(c.PartnerConfig.AppName) == "" {
		vec.AddField("partnerConfig.appName", c.PartnerConfig.AppName, "app name is required")
	}
	if !packagePattern.MatchString(c.PartnerConfig.PackageName) {
		vec.AddField("partnerConfig.packageName", c.PartnerConfig.PackageName,
			"package name must be a dotted java identifier", "e.g. com.partner.app")
	}

	colors := []struct {
		field string
		value string
	}{
		{"partnerConfig.branding.primaryColor", c.PartnerConfig.Branding.PrimaryColor},
		{"partnerConfig.branding.secondaryColor", c.PartnerConfig.Branding.SecondaryColor},
		{"partnerConfig.branding.backgroundColor", c.PartnerConfig.Branding.BackgroundColor},
		{"partnerConfig.branding.textColor", c.PartnerConfig.Branding.TextColor},
	}
	for _, col := range colors {
		if col.value != "" && !IsHexColor(col.value) {
			vec.AddField(col.field, col.value, "invalid hex color", "use #RRGGBB or #AARRGGBB")
		}
	}

	if vec.HasErrors() {
		return &vec
	}
	return nil
}

// BuildRequest is the document accepted by the CLI and the build endpoint.
type BuildRequest struct {
	Build  BuildConfig   `json:"buildConfig" yaml:"buildConfig"`
	Assets PartnerAssets `json:"partnerAssets" yaml:"partnerAssets"`
}

// LoadBuildRequest reads a build request from a .json, .yml or .yaml file.
// Relative asset paths are resolved against the file's directory.
func LoadBuildRequest(path string) (*BuildRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO(err, errors.ErrCodeFileNotFound, "read build request "+path)
	}

	var req BuildRequest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &req)
	case ".yml", ".yaml":
		err = yaml.Unmarshal(data, &req)
	default:
		return nil, errors.NewValidationError(errors.ErrCodeInvalidPath,
			fmt.Sprintf("unsupported build request extension %q", filepath.Ext(path)))
	}
	if err != nil {
		return nil, errors.WrapValidation(err, errors.ErrCodeValidationFailed, "parse build request "+path)
	}

	req.Assets = req.Assets.ResolveRelative(filepath.Dir(path))
	return &req, nil
}

// ResolveRelative returns a copy with relative paths joined to base.
func (p PartnerAssets) ResolveRelative(base string) PartnerAssets {
	resolve := func(s string) string {
		if s == "" || filepath.IsAbs(s) {
			return s
		}
		return filepath.Join(base, s)
	}

	out := PartnerAssets{
		Logo:             resolve(p.Logo),
		SplashBackground: resolve(p.SplashBackground),
		BrandIcon:        resolve(p.BrandIcon),
		LogoSquare:       resolve(p.LogoSquare),
	}
	for _, img := range p.CustomImages {
		out.CustomImages = append(out.CustomImages, CustomImage{Name: img.Name, Path: resolve(img.Path)})
	}
	return out
}
