// Package format adapts model output to the surface that displays it.
package format

import (
	"regexp"
	"sort"
	"strings"

	apperrors "github.com/yairfalse/bucketlens/internal/errors"
)

// Formatter renders model text for one output surface.
type Formatter interface {
	Name() string
	Format(text string) string
}

// Surface names.
const (
	SurfaceHTML     = "html"
	SurfaceText     = "text"
	SurfaceMarkdown = "markdown"
)

// markup rewrites markdown constructs to their plain content. Markers are
// only removed in emphasis or heading position, so identifiers such as
// "logs_2024/" or "#1" survive.
var markup = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile("`+"), ""},
	{regexp.MustCompile(`(?m)^[ \t]{0,3}#{1,6}[ \t]+`), ""},
	{regexp.MustCompile(`(?m)^([ \t]*)[*+][ \t]+`), "${1}- "},
	{regexp.MustCompile(`\*\*(.+?)\*\*`), "$1"},
	{regexp.MustCompile(`(^|\W)__(.+?)__(\W|$)`), "${1}${2}${3}"},
	{regexp.MustCompile(`\*([^*\n]+)\*`), "$1"},
	{regexp.MustCompile(`(^|\W)_([^_\n]+)_(\W|$)`), "${1}${2}${3}"},
	{regexp.MustCompile(`~~(.+?)~~`), "$1"},
}

func strip(text string) string {
	for _, m := range markup {
		text = m.re.ReplaceAllString(text, m.repl)
	}
	return strings.TrimSpace(text)
}

var lineBreaks = strings.NewReplacer("\n\n", "<br><br>", "\n", "<br>")

// HTML strips markdown and converts newlines to <br> tags.
type HTML struct{}

func (HTML) Name() string { return SurfaceHTML }

func (HTML) Format(text string) string {
	if text == "" {
		return text
	}
	return lineBreaks.Replace(strip(text))
}

// Text strips markdown and keeps newlines.
type Text struct{}

func (Text) Name() string { return SurfaceText }

func (Text) Format(text string) string {
	return strip(text)
}

// Markdown passes text through unchanged.
type Markdown struct{}

func (Markdown) Name() string { return SurfaceMarkdown }

func (Markdown) Format(text string) string { return text }

var surfaces = map[string]Formatter{
	SurfaceHTML:     HTML{},
	SurfaceText:     Text{},
	SurfaceMarkdown: Markdown{},
}

// ForSurface returns the formatter registered for name.
func ForSurface(name string) (Formatter, error) {
	f, ok := surfaces[strings.ToLower(name)]
	if !ok {
		return nil, apperrors.Configurationf("format", "unknown surface %q (want one of %s)", name, strings.Join(Surfaces(), ", "))
	}
	return f, nil
}

// Surfaces returns the known surface names, sorted.
func Surfaces() []string {
	names := make([]string, 0, len(surfaces))
	for n := range surfaces {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
