package transform

import (
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	xtransform "golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// generatedPrefixes prefix the drawables and aliases the injection plan
// declares itself.
var generatedPrefixes = []string{"brand_", "brandkit_"}

// CustomResourceName is ResourceName for partner custom images. A name under
// a generated prefix is moved to custom_ so it cannot redeclare a plan
// resource.
func CustomResourceName(name string) string {
	out := ResourceName(name)
	for _, prefix := range generatedPrefixes {
		if strings.HasPrefix(out, prefix) {
			return "custom_" + out
		}
	}
	return out
}

// ResourceName turns an arbitrary name into a valid Android resource name:
// lower case ASCII letters, digits and underscores, starting with a letter.
// Accented letters are folded to their base letter.
func ResourceName(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".webp", ".gif", ".bmp", ".tif", ".tiff":
		name = strings.TrimSuffix(name, path.Ext(name))
	}

	folder := xtransform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := xtransform.String(folder, name)
	if err != nil {
		folded = name
	}
	folded = cases.Lower(language.Und).String(folded)

	var b strings.Builder
	pendingUnderscore := false
	for _, r := range folded {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingUnderscore && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingUnderscore = false
			b.WriteRune(r)
			continue
		}
		pendingUnderscore = true
	}

	out := b.String()
	if out == "" {
		return "custom_image"
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "img_" + out
	}
	return out
}
