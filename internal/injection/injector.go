package injection

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/brandkit/internal/errors"
	"github.com/conneroisu/brandkit/internal/fsutil"
	"github.com/conneroisu/brandkit/internal/logging"
	"github.com/conneroisu/brandkit/internal/types"
)

const defaultFileMode os.FileMode = 0o644

// Anchors an insert is placed before, tried in order.
var (
	manifestAnchors = []string{"</application>", "</manifest>"}
	resourceAnchors = []string{"</resources>"}
)

const manifestSkeleton = xmlHeader +
	"<manifest " + androidNS + ">\n" +
	indent + "<application>\n" +
	indent + "</application>\n" +
	"</manifest>\n"

const resourcesSkeleton = xmlHeader + "<resources>\n</resources>\n"

// Report lists what an Apply call did to the build tree, by target file.
type Report struct {
	Written   []string `json:"written"`
	Unchanged []string `json:"unchanged"`
}

// Injector applies injection plans to a build tree.
type Injector struct {
	logger logging.Logger
}

// NewInjector creates an injector.
func NewInjector(logger logging.Logger) *Injector {
	return &Injector{logger: logging.OrNop(logger).WithComponent("injector")}
}

// InjectAssets applies plan and reports whether every point was applied.
// Failures are logged, never returned.
func (i *Injector) InjectAssets(ctx context.Context, plan types.InjectionPlan) bool {
	report, err := i.Apply(ctx, plan)
	if err != nil {
		i.logger.Error(ctx, err, "Asset injection failed",
			"build_id", plan.BuildID,
			"written", len(report.Written))
		return false
	}
	i.logger.Info(ctx, "Assets injected",
		"build_id", plan.BuildID,
		"partner_id", plan.PartnerID,
		"written", len(report.Written),
		"unchanged", len(report.Unchanged))
	return true
}

// Apply validates plan, then applies its points in order. It stops at the
// first failure; points applied before it stay applied.
func (i *Injector) Apply(ctx context.Context, plan types.InjectionPlan) (Report, error) {
	var report Report
	if err := ValidatePlan(plan); err != nil {
		return report, err
	}

	for n, point := range plan.InjectionPoints {
		if err := ctx.Err(); err != nil {
			return report, errors.WrapInjection(err, "injection cancelled", point.TargetFile).
				WithContext("point", n)
		}

		path := filepath.Join(plan.TargetPath, filepath.FromSlash(point.TargetFile))
		changed, err := applyPoint(path, point)
		if err != nil {
			return report, errors.WrapInjection(err, "cannot apply injection point", point.TargetFile).
				WithContext("point", n).
				WithContext("action", string(point.Action))
		}

		if changed {
			report.Written = append(report.Written, point.TargetFile)
		} else {
			report.Unchanged = append(report.Unchanged, point.TargetFile)
		}
		i.logger.Debug(ctx, "Injection point applied",
			"target", point.TargetFile, "action", point.Action, "changed", changed)
	}
	return report, nil
}

// ValidatePlan checks that every point is well formed and targets a file
// inside the plan's target path.
func ValidatePlan(plan types.InjectionPlan) error {
	if plan.TargetPath == "" {
		return errors.NewValidationError(errors.ErrCodeInvalidPlan, "plan has no target path")
	}
	for n, point := range plan.InjectionPoints {
		switch point.Action {
		case types.ActionInsert, types.ActionReplace:
		default:
			return errors.NewValidationError(errors.ErrCodeInvalidPlan, "unknown injection action "+string(point.Action)).
				WithContext("point", n)
		}
		if point.Type != types.InjectionManifest && point.Type != types.InjectionResource {
			return errors.NewValidationError(errors.ErrCodeInvalidPlan, "unknown injection type "+string(point.Type)).
				WithContext("point", n)
		}

		target := point.TargetFile
		if target == "" || filepath.IsAbs(target) || strings.HasPrefix(target, "/") {
			return errors.ErrInvalidPath(target).WithContext("point", n)
		}
		full := filepath.Join(plan.TargetPath, filepath.FromSlash(target))
		if !fsutil.Within(plan.TargetPath, full) || filepath.Clean(full) == filepath.Clean(plan.TargetPath) {
			return errors.ErrInvalidPath(target).WithContext("point", n)
		}
	}
	return nil
}

// applyPoint edits one file and reports whether its bytes changed.
func applyPoint(path string, point types.InjectionPoint) (bool, error) {
	existing, mode, exists, err := readTarget(path)
	if err != nil {
		return false, err
	}

	var next string
	switch point.Action {
	case types.ActionReplace:
		next = replaceContent(existing, exists, point)
	default:
		if !exists {
			existing = skeletonFor(point.Type)
		}
		next = insertContent(existing, point)
	}

	if exists && next == existing {
		return false, nil
	}
	if err := fsutil.WriteFileAtomic(path, []byte(next), mode); err != nil {
		return false, err
	}
	return true, nil
}

func readTarget(path string) (string, os.FileMode, bool, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", defaultFileMode, false, nil
	}
	if err != nil {
		return "", 0, false, err
	}
	if !info.Mode().IsRegular() {
		return "", 0, false, errors.NewIOError(errors.ErrCodeNotRegularFile, "target is not a regular file", nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, false, err
	}
	return string(data), info.Mode().Perm(), true, nil
}

// replaceContent substitutes the placeholder when the target carries one
// and otherwise rewrites the whole file.
func replaceContent(existing string, exists bool, point types.InjectionPoint) string {
	if !exists || point.Placeholder == "" {
		return point.Content
	}
	if strings.Contains(existing, point.Placeholder) {
		return strings.ReplaceAll(existing, point.Placeholder, point.Content)
	}
	if strings.Contains(existing, point.Content) {
		return existing
	}
	return point.Content
}

func skeletonFor(t types.InjectionType) string {
	if t == types.InjectionManifest {
		return manifestSkeleton
	}
	return resourcesSkeleton
}

func anchorsFor(t types.InjectionType) []string {
	if t == types.InjectionManifest {
		return manifestAnchors
	}
	return resourceAnchors
}

func beginMarker(marker string) string { return "<!-- brandkit:begin " + marker + " -->" }
func endMarker(marker string) string   { return "<!-- brandkit:end " + marker + " -->" }

// insertContent places the point's content before the closing anchor. A
// marked block already in the file is replaced where it stands; unmarked
// content already present is left alone.
func insertContent(existing string, point types.InjectionPoint) string {
	lines := strings.Split(point.Content, "\n")
	if point.Marker != "" {
		lines = append([]string{beginMarker(point.Marker)}, append(lines, endMarker(point.Marker))...)

		begin := strings.Index(existing, beginMarker(point.Marker))
		if begin >= 0 {
			end := strings.Index(existing[begin:], endMarker(point.Marker))
			if end >= 0 {
				end += begin + len(endMarker(point.Marker))
				start, pad := lineStart(existing, begin)
				if strings.TrimSpace(pad) != "" {
					start, pad = begin, ""
				}
				return existing[:start] + renderBlock(lines, pad) + existing[end:]
			}
		}
	} else if containsBlock(existing, lines) {
		return existing
	}

	if point.Type == types.InjectionManifest {
		existing = openElement(existing, "application")
	}
	for _, anchor := range anchorsFor(point.Type) {
		at := strings.LastIndex(existing, anchor)
		if at < 0 {
			continue
		}
		start, pad := lineStart(existing, at)
		if strings.TrimSpace(pad) == "" {
			return existing[:start] + renderBlock(lines, pad+indent) + "\n" + existing[start:]
		}
		return existing[:at] + "\n" + renderBlock(lines, indent) + "\n" + existing[at:]
	}

	var b strings.Builder
	b.WriteString(existing)
	if existing != "" && !strings.HasSuffix(existing, "\n") {
		b.WriteString("\n")
	}
	b.WriteString(renderBlock(lines, ""))
	b.WriteString("\n")
	return b.String()
}

// openElement rewrites a self-closing <name ... /> in s into an open and a
// close tag, so content can be inserted between them. s is returned as is
// when the element is absent or already has a closing tag.
func openElement(s, name string) string {
	if strings.Contains(s, "</"+name+">") {
		return s
	}
	for from := 0; ; {
		at := strings.Index(s[from:], "<"+name)
		if at < 0 {
			return s
		}
		at += from
		from = at + 1 + len(name)
		if from >= len(s) || !strings.ContainsRune(" \t\r\n/>", rune(s[from])) {
			continue
		}

		end := tagEnd(s, from)
		if end < 0 {
			return s
		}
		head := strings.TrimRight(s[at:end], " \t\r\n")
		if !strings.HasSuffix(head, "/") {
			return s
		}
		head = strings.TrimRight(strings.TrimSuffix(head, "/"), " \t\r\n")
		_, pad := lineStart(s, at)
		if strings.TrimSpace(pad) != "" {
			pad = ""
		}
		return s[:at] + head + ">\n" + pad + "</" + name + ">" + s[end+1:]
	}
}

// tagEnd returns the offset of the '>' closing the tag that contains from,
// skipping quoted attribute values, or -1.
func tagEnd(s string, from int) int {
	var quote byte
	for i := from; i < len(s); i++ {
		switch c := s[i]; {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '>':
			return i
		}
	}
	return -1
}

// containsBlock reports whether lines already appear in s as consecutive
// lines, ignoring indentation.
func containsBlock(s string, lines []string) bool {
	return strings.Contains(dedent(strings.Split(s, "\n")), dedent(lines))
}

func dedent(lines []string) string {
	out := make([]string, len(lines))
	for n, line := range lines {
		out[n] = strings.TrimLeft(line, " \t")
	}
	return strings.Join(out, "\n")
}

// lineStart returns the offset of the line containing at and the text
// between that offset and at.
func lineStart(s string, at int) (int, string) {
	start := strings.LastIndexByte(s[:at], '\n') + 1
	return start, s[start:at]
}

func renderBlock(lines []string, pad string) string {
	var b bytes.Buffer
	for n, line := range lines {
		if n > 0 {
			b.WriteByte('\n')
		}
		if line != "" {
			b.WriteString(pad)
			b.WriteString(line)
		}
	}
	return b.String()
}
