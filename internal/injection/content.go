package injection

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/conneroisu/brandkit/internal/types"
)

const (
	xmlHeader        = `<?xml version="1.0" encoding="utf-8"?>` + "\n"
	generatedComment = "<!-- Generated by brandkit. Changes are overwritten on the next build. -->\n"
	androidNS        = `xmlns:android="http://schemas.android.com/apk/res/android"`
	indent           = "    "
)

// Palette fallbacks for unset branding colors.
const (
	defaultPrimary    = "#2196F3"
	defaultSecondary  = "#1976D2"
	defaultBackground = "#FFFFFF"
	defaultText       = "#000000"
)

// escapeXML escapes s for use in element text or a double quoted attribute.
func escapeXML(s string) string {
	var b strings.Builder
	// Writes to a strings.Builder cannot fail.
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

// androidString escapes s for a <string> resource: aapt additionally
// requires quotes and backslashes to be escaped, and a leading @ or ? would
// be read as a reference.
func androidString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	if strings.HasPrefix(s, "@") || strings.HasPrefix(s, "?") {
		s = `\` + s
	}
	return escapeXML(s)
}

func resourcesDocument(body []string) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(generatedComment)
	b.WriteString("<resources>\n")
	for _, line := range body {
		b.WriteString(indent)
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("</resources>\n")
	return b.String()
}

func colorOr(value, fallback string) string {
	if types.IsHexColor(value) {
		return value
	}
	return fallback
}

// manifestMetadata renders the <meta-data> block inserted into the
// application element.
func manifestMetadata(buildID, partnerID string, cfg types.BuildConfig) string {
	pc := cfg.PartnerConfig
	entries := [][2]string{
		{"brandkit.partner_id", partnerID},
		{"brandkit.build_id", buildID},
	}
	if cfg.BuildType != "" {
		entries = append(entries, [2]string{"brandkit.build_type", string(cfg.BuildType)})
	}
	if pc.PackageName != "" {
		entries = append(entries, [2]string{"brandkit.package_name", pc.PackageName})
	}
	if pc.Version != "" {
		entries = append(entries, [2]string{"brandkit.version", pc.Version})
	}
	if pc.VersionCode > 0 {
		entries = append(entries, [2]string{"brandkit.version_code", strconv.Itoa(pc.VersionCode)})
	}
	if pc.API.BaseURL != "" {
		entries = append(entries, [2]string{"brandkit.api_base_url", pc.API.BaseURL})
	}
	if pc.API.Environment != "" {
		entries = append(entries, [2]string{"brandkit.api_environment", pc.API.Environment})
	}
	for _, name := range pc.SortedFeatures() {
		entries = append(entries, [2]string{"brandkit.feature." + name, strconv.FormatBool(pc.Features[name])})
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf(`<meta-data android:name="%s" android:value="%s" />`,
			escapeXML(e[0]), escapeXML(e[1])))
	}
	return strings.Join(lines, "\n")
}

func colorsDocument(b types.Branding) string {
	return resourcesDocument([]string{
		fmt.Sprintf(`<color name="brand_primary">%s</color>`, colorOr(b.PrimaryColor, defaultPrimary)),
		fmt.Sprintf(`<color name="brand_secondary">%s</color>`, colorOr(b.SecondaryColor, defaultSecondary)),
		fmt.Sprintf(`<color name="brand_background">%s</color>`, colorOr(b.BackgroundColor, defaultBackground)),
		fmt.Sprintf(`<color name="brand_text">%s</color>`, colorOr(b.TextColor, defaultText)),
		fmt.Sprintf(`<bool name="brand_support_dark_mode">%t</bool>`, b.SupportDarkMode),
	})
}

func stringsDocument(partnerID string, cfg types.BuildConfig) string {
	pc := cfg.PartnerConfig
	appName := pc.AppName
	if appName == "" {
		appName = partnerID
	}
	body := []string{
		fmt.Sprintf(`<string name="brand_app_name">%s</string>`, androidString(appName)),
		fmt.Sprintf(`<string name="brand_partner_id" translatable="false">%s</string>`, androidString(partnerID)),
	}
	if pc.Description != "" {
		body = append(body, fmt.Sprintf(`<string name="brand_description">%s</string>`, androidString(pc.Description)))
	}
	if pc.API.BaseURL != "" {
		body = append(body, fmt.Sprintf(`<string name="brand_api_base_url" translatable="false">%s</string>`,
			androidString(pc.API.BaseURL)))
	}
	return resourcesDocument(body)
}

func adaptiveIconDocument(foreground string) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(generatedComment)
	b.WriteString("<adaptive-icon " + androidNS + ">\n")
	b.WriteString(indent + `<background android:drawable="@color/brand_background" />` + "\n")
	b.WriteString(indent + fmt.Sprintf(`<foreground android:drawable="@drawable/%s" />`, foreground) + "\n")
	b.WriteString("</adaptive-icon>\n")
	return b.String()
}

func splashDocument(image string) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(generatedComment)
	b.WriteString("<layer-list " + androidNS + ">\n")
	b.WriteString(indent + `<item android:drawable="@color/brand_background" />` + "\n")
	b.WriteString(indent + "<item>\n")
	b.WriteString(indent + indent + fmt.Sprintf(`<bitmap android:gravity="fill" android:src="@drawable/%s" />`, image) + "\n")
	b.WriteString(indent + "</item>\n")
	b.WriteString("</layer-list>\n")
	return b.String()
}

func splashTheme() string {
	return strings.Join([]string{
		`<style name="BrandkitSplashTheme" parent="Theme.AppCompat.Light.NoActionBar">`,
		indent + `<item name="android:windowBackground">@drawable/` + splashDrawable + `</item>`,
		`</style>`,
	}, "\n")
}

// aliasDocument declares drawable aliases named alias, alias_2, ... for
// each resource.
func aliasDocument(alias string, resources []string) string {
	body := make([]string, 0, len(resources))
	for i, res := range resources {
		name := alias
		if i > 0 {
			name = alias + "_" + strconv.Itoa(i+1)
		}
		body = append(body, fmt.Sprintf(`<item name="%s" type="drawable">@drawable/%s</item>`, name, res))
	}
	return resourcesDocument(body)
}

func customDocument(assets []types.ProcessedAsset) string {
	body := make([]string, 0, 2*len(assets)+6)
	refs := make([]string, 0, len(assets))
	names := make([]string, 0, len(assets))

	for _, asset := range assets {
		res := resourceOf(asset)
		body = append(body, fmt.Sprintf(`<item name="brand_custom_%s" type="drawable">@drawable/%s</item>`, res, res))
		refs = append(refs, indent+"<item>@drawable/"+res+"</item>")
		names = append(names, indent+"<item>"+androidString(asset.Name)+"</item>")
	}

	body = append(body, `<array name="brand_custom_images">`)
	body = append(body, refs...)
	body = append(body, `</array>`)
	body = append(body, `<string-array name="brand_custom_image_names" translatable="false">`)
	body = append(body, names...)
	body = append(body, `</string-array>`)
	return resourcesDocument(body)
}
