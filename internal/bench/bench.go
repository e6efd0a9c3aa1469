// Package bench scores the extraction pipeline against labelled sentences.
package bench

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"adresse/internal/domain"
)

//go:embed data/cases.yaml
var defaultCases []byte

// Case is one labelled sentence.
type Case struct {
	Input    string                  `yaml:"input" json:"input"`
	Expected domain.ExtractionResult `yaml:"expected" json:"expected"`
}

// Outcome is the per-case result. Field scores are exact string equality.
type Outcome struct {
	Case
	Result          *domain.ExtractionResult `json:"result,omitempty"`
	FullTextOK      bool                     `json:"fullTextOk"`
	VoieOK          bool                     `json:"voieOk"`
	CommuneOK       bool                     `json:"communeOk"`
	CommuneDistance int                      `json:"communeDistance"`
	Elapsed         time.Duration            `json:"elapsedNs"`
	Error           string                   `json:"error,omitempty"`
}

// Report aggregates a benchmark run.
type Report struct {
	Model    string        `json:"model"`
	Started  time.Time     `json:"started"`
	Elapsed  time.Duration `json:"elapsedNs"`
	Outcomes []Outcome     `json:"outcomes"`
}

// DefaultCases returns the embedded fixture.
func DefaultCases() ([]Case, error) {
	return parseCases(defaultCases)
}

// LoadCases reads cases from a YAML file, or the embedded fixture when path is empty.
func LoadCases(path string) ([]Case, error) {
	if path == "" {
		return DefaultCases()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseCases(data)
}

func parseCases(data []byte) ([]Case, error) {
	var doc struct {
		Cases []Case `yaml:"cases"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid bench cases: %w", err)
	}
	if len(doc.Cases) == 0 {
		return nil, errors.New("no bench cases")
	}
	return doc.Cases, nil
}

// Run extracts each case sequentially so that timings are comparable.
func Run(ctx context.Context, ex domain.Extractor, model string, cases []Case) (*Report, error) {
	report := &Report{Model: model, Started: time.Now()}
	for _, c := range cases {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		start := time.Now()
		res, err := ex.Extract(ctx, c.Input)
		report.Outcomes = append(report.Outcomes, score(c, res, err, time.Since(start)))
	}
	report.Elapsed = time.Since(report.Started)
	return report, nil
}

func score(c Case, res domain.ExtractionResult, err error, elapsed time.Duration) Outcome {
	o := Outcome{Case: c, Elapsed: elapsed}
	if err != nil {
		o.Error = err.Error()
		o.CommuneDistance = len([]rune(c.Expected.CommuneName()))
		return o
	}
	o.Result = &res
	o.FullTextOK = res.FullText == c.Expected.FullText
	o.VoieOK = res.Voie == c.Expected.Voie
	o.CommuneOK = sameCommune(res.Commune, c.Expected.Commune)
	o.CommuneDistance = levenshtein.ComputeDistance(res.CommuneName(), c.Expected.CommuneName())
	return o
}

func sameCommune(got, want *string) bool {
	if got == nil || want == nil {
		return got == nil && want == nil
	}
	return *got == *want
}

// Accuracy is the share of cases with each field right.
type Accuracy struct {
	FullText float64 `json:"fullText"`
	Voie     float64 `json:"voie"`
	Commune  float64 `json:"commune"`
	Errors   int     `json:"errors"`
}

func (r *Report) Accuracy() Accuracy {
	var a Accuracy
	n := float64(len(r.Outcomes))
	if n == 0 {
		return a
	}
	for _, o := range r.Outcomes {
		if o.FullTextOK {
			a.FullText++
		}
		if o.VoieOK {
			a.Voie++
		}
		if o.CommuneOK {
			a.Commune++
		}
		if o.Error != "" {
			a.Errors++
		}
	}
	a.FullText /= n
	a.Voie /= n
	a.Commune /= n
	return a
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Align(lipgloss.Center)
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

// Render draws the per-case table followed by the accuracy summary.
func (r *Report) Render() string {
	rows := make([][]string, 0, len(r.Outcomes))
	for i, o := range r.Outcomes {
		got := "-"
		if o.Result != nil {
			got = o.Result.CommuneName()
		}
		if o.Error != "" {
			got = "error: " + o.Error
		}
		rows = append(rows, []string{
			fmt.Sprint(i + 1),
			o.Input,
			mark(o.FullTextOK),
			mark(o.VoieOK),
			mark(o.CommuneOK),
			got,
			fmt.Sprintf("%d ms", o.Elapsed.Milliseconds()),
		})
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("#", "phrase", "fullText", "voie", "commune", "obtenu", "durée").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == 0 {
				return headerStyle
			}
			if col >= 2 && col <= 4 {
				if rows[row-1][col] == mark(true) {
					return passStyle.Padding(0, 1)
				}
				return failStyle.Padding(0, 1)
			}
			return cellStyle
		})

	a := r.Accuracy()
	var b strings.Builder
	b.WriteString(t.Render())
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s: %d cas en %s\n", r.Model, len(r.Outcomes), r.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(&b, "fullText %.0f%%  voie %.0f%%  commune %.0f%%  erreurs %d\n",
		a.FullText*100, a.Voie*100, a.Commune*100, a.Errors)
	return b.String()
}

// WriteJSON stores the report and its accuracy at path.
func (r *Report) WriteJSON(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(struct {
		*Report
		Accuracy Accuracy `json:"accuracy"`
	}{r, r.Accuracy()}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
