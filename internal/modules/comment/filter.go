package comment

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
)

const (
	FilterSimple   = "simple"
	FilterMarkdown = "markdown"
)

var paragraphBreak = regexp.MustCompile(`\n{2,}`)

// Filter renders submitted text to the HTML stored in ContentHTML.
type Filter interface {
	Name() string
	Render(content string) (string, error)
}

// SimpleFilter escapes the text and keeps its paragraphs and line breaks.
type SimpleFilter struct{}

func (SimpleFilter) Name() string { return FilterSimple }

func (SimpleFilter) Render(content string) (string, error) {
	text := strings.ReplaceAll(content, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}

	var b strings.Builder
	for i, para := range paragraphBreak.Split(text, -1) {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(html.EscapeString(para), "\n", "\n<br />"))
		b.WriteString("</p>")
	}
	return b.String(), nil
}

// MarkdownFilter renders GFM. Raw HTML in the source is dropped by
// goldmark's default (unsafe off) renderer.
type MarkdownFilter struct {
	md goldmark.Markdown
}

func NewMarkdownFilter() *MarkdownFilter {
	return &MarkdownFilter{md: goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Typographer,
		),
		goldmark.WithRendererOptions(
			htmlrenderer.WithHardWraps(),
			htmlrenderer.WithXHTML(),
		),
	)}
}

func (*MarkdownFilter) Name() string { return FilterMarkdown }

func (f *MarkdownFilter) Render(content string) (string, error) {
	var buf bytes.Buffer
	if err := f.md.Convert([]byte(content), &buf); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// Filters is the registry of text filters keyed by filter id.
type Filters struct {
	byName   map[string]Filter
	fallback Filter
}

// NewFilters registers fs; SimpleFilter is always present as the fallback.
func NewFilters(fs ...Filter) *Filters {
	set := &Filters{byName: make(map[string]Filter, len(fs)+1), fallback: SimpleFilter{}}
	set.byName[FilterSimple] = set.fallback
	for _, f := range fs {
		set.byName[f.Name()] = f
	}
	return set
}

func DefaultFilters() *Filters {
	return NewFilters(NewMarkdownFilter())
}

// Lookup returns the filter registered under id.
func (s *Filters) Lookup(id string) (Filter, bool) {
	f, ok := s.byName[strings.ToLower(strings.TrimSpace(id))]
	return f, ok
}

// Render uses the filter named by id when filtering is enabled and the id is
// known, the simple filter otherwise or when the chosen filter fails.
func (s *Filters) Render(enabled bool, id, content string) string {
	f := s.fallback
	if enabled {
		if chosen, ok := s.Lookup(id); ok {
			f = chosen
		}
	}
	out, err := f.Render(content)
	if err != nil {
		out, _ = s.fallback.Render(content)
	}
	return out
}
