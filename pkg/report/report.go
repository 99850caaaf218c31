package report

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"FinRank/internal/domain/models"

	"github.com/charmbracelet/glamour"
)

//go:embed templates/*.md
var templates embed.FS

var funcs = template.FuncMap{
	"pct":  func(v float64) string { return fmt.Sprintf("%.1f", v*100) },
	"pct2": func(v float64) string { return fmt.Sprintf("%.2f", v*100) },
	"inc":  func(i int) int { return i + 1 },
	"corr": func(v *float64) string {
		if v == nil {
			return "n/a"
		}
		return fmt.Sprintf("%.2f", *v)
	},
	"date": func(t time.Time) string {
		if t.IsZero() {
			return "n/a"
		}
		return t.Format("2006-01-02")
	},
}

var tmpl = template.Must(template.New("recommendations.md").Funcs(funcs).ParseFS(templates, "templates/*.md"))

// Markdown renders a ranking run as a markdown document.
func Markdown(r *models.Recommendations) (string, error) {
	var b strings.Builder
	if err := tmpl.ExecuteTemplate(&b, "recommendations.md", r); err != nil {
		return "", fmt.Errorf("render recommendations: %w", err)
	}
	return b.String(), nil
}

// Terminal renders markdown for a terminal. An empty style picks one from the
// terminal background; "notty" gives plain text.
func Terminal(md string, style string, wrap int) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(wrap)}
	if style == "" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", fmt.Errorf("terminal renderer: %w", err)
	}
	return r.Render(md)
}
