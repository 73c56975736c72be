// Package report renders analysis results and fetch notices for terminals.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Sternrassler/sentiment-fetch/pkg/fetch"
	"github.com/Sternrassler/sentiment-fetch/pkg/sentiment"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

const (
	// BarWidth is the width of a 100% bar in the distribution chart.
	BarWidth = 40

	// MaxTextWidth truncates record texts in the results table.
	MaxTextWidth = 80
)

// Printer writes coloured output to a terminal.
type Printer struct {
	out io.Writer

	bold   *color.Color
	green  *color.Color
	red    *color.Color
	yellow *color.Color
	blue   *color.Color
}

// NewPrinter creates a printer writing to out. noColor forces plain output.
func NewPrinter(out io.Writer, noColor bool) *Printer {
	p := &Printer{
		out:    out,
		bold:   color.New(color.Bold),
		green:  color.New(color.FgGreen),
		red:    color.New(color.FgRed),
		yellow: color.New(color.FgYellow),
		blue:   color.New(color.FgBlue),
	}
	if noColor {
		for _, c := range []*color.Color{p.bold, p.green, p.red, p.yellow, p.blue} {
			c.DisableColor()
		}
	}
	return p
}

// labelColor picks the colour of a sentiment label.
func (p *Printer) labelColor(l sentiment.Label) *color.Color {
	switch l {
	case sentiment.LabelPositive:
		return p.green
	case sentiment.LabelNegative:
		return p.red
	case sentiment.LabelNeutral:
		return p.blue
	default:
		return p.yellow
	}
}

// Info prints an informational line.
func (p *Printer) Info(format string, a ...any) {
	p.green.Fprintf(p.out, format+"\n", a...)
}

// Warn prints a warning line.
func (p *Printer) Warn(format string, a ...any) {
	p.yellow.Fprintf(p.out, format+"\n", a...)
}

// Error prints an error line.
func (p *Printer) Error(format string, a ...any) {
	p.red.Fprintf(p.out, format+"\n", a...)
}

// Section prints a bold heading.
func (p *Printer) Section(title string) {
	p.bold.Fprintf(p.out, "\n%s\n", title)
}

// Table renders one row per analysis: text, sentiment, confidence.
func (p *Printer) Table(analyses []sentiment.Analysis) error {
	table := tablewriter.NewWriter(p.out)
	table.Header("#", "Text", "Sentiment", "Confidence")

	for i, a := range analyses {
		if err := table.Append(
			fmt.Sprintf("%d", i+1),
			truncate(singleLine(a.Record.Text), MaxTextWidth),
			a.Sentiment.Title(),
			fmt.Sprintf("%.3f", a.Confidence),
		); err != nil {
			return fmt.Errorf("append row %d: %w", i+1, err)
		}
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	return nil
}

// Distribution prints one "Positive: 40.00%" line per label followed by a
// bar chart of the same shares.
func (p *Printer) Distribution(dist sentiment.Distribution) {
	for _, s := range dist.Shares {
		p.labelColor(s.Label).Fprintf(p.out, "%s: %.2f%%\n", s.Label.Title(), s.Percent)
	}

	if len(dist.Shares) == 0 {
		return
	}

	fmt.Fprintln(p.out)
	for _, s := range dist.Shares {
		fmt.Fprintf(p.out, "%-9s ", s.Label.Title())
		p.labelColor(s.Label).Fprint(p.out, Bar(s.Percent, BarWidth))
		fmt.Fprintf(p.out, " %d\n", s.Count)
	}
}

// Bar renders percent as a bar of at most width cells.
func Bar(percent float64, width int) string {
	cells := int(percent/100*float64(width) + 0.5)
	cells = min(max(cells, 0), width)
	if cells == 0 && percent > 0 {
		cells = 1
	}
	return strings.Repeat("█", cells)
}

// WaitMessage is the user-facing notice before a rate-limit cool-down.
func WaitMessage(n fetch.WaitNotice) string {
	return fmt.Sprintf("Rate limit reached. Retry %d/%d... Waiting %d seconds.",
		n.Attempt, n.Ceiling, int(n.Wait.Round(time.Second)/time.Second))
}

// OutcomeMessage is the user-facing summary of a fetch result.
// Advice is appended for failures that have a corrective action.
func OutcomeMessage(result fetch.Result, err error) string {
	switch result.Outcome {
	case fetch.OutcomeSuccess:
		return fmt.Sprintf("Fetched %d records.", len(result.Records))
	case fetch.OutcomeEmpty:
		return "No records found. Try a different query."
	case fetch.OutcomeRateLimitExhausted:
		return "Max retries reached. Try again later or use Offline Mode."
	case fetch.OutcomeCanceled:
		return "Fetch canceled."
	default:
		if err != nil {
			return fmt.Sprintf("Fetch failed: %v", err)
		}
		return "Fetch failed."
	}
}

// Outcome prints OutcomeMessage in the colour matching its severity.
func (p *Printer) Outcome(result fetch.Result, err error) {
	msg := OutcomeMessage(result, err)
	switch result.Outcome {
	case fetch.OutcomeSuccess:
		p.Info("%s", msg)
	case fetch.OutcomeEmpty, fetch.OutcomeCanceled:
		p.Warn("%s", msg)
	default:
		p.Error("%s", msg)
	}
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}
