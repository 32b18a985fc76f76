// Package observability provides formatted output utilities for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/wave/molly/internal/bullhorn"
	"github.com/wave/molly/internal/command"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for CLI commands
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// Tally counts classified lines by kind.
type Tally struct {
	Narrative int
	Command   int
	Malformed int
}

// Add records one outcome.
func (t *Tally) Add(kind command.Kind) {
	switch kind {
	case command.KindNarrative:
		t.Narrative++
	case command.KindCommand:
		t.Command++
	case command.KindMalformed:
		t.Malformed++
	}
}

// Total returns the number of lines recorded.
func (t Tally) Total() int {
	return t.Narrative + t.Command + t.Malformed
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintOutcome writes one classified line. Narrative lines are printed
// plainly; commands and malformed sentinels get a box.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintOutcome(n int, out command.Outcome) {
	switch out.Kind {
	case command.KindNarrative:
		if out.Text == "" {
			return
		}
		fmt.Fprintf(p.out, "%4d  %s\n", n, out.Text)
	case command.KindCommand:
		p.printBox(fmt.Sprintf("LINE %d: SEARCH COMMAND", n), formatPayload(out.Payload))
	case command.KindMalformed:
		msg := "unknown error"
		if out.Err != nil {
			msg = out.Err.Message
		}
		p.printBox(fmt.Sprintf("LINE %d: MALFORMED COMMAND", n), msg)
	}
}

func formatPayload(pl command.Payload) string {
	var sb strings.Builder

	if pl.JobTitle != "" {
		sb.WriteString(fmt.Sprintf("Title:     %s\n", pl.JobTitle))
	}
	if pl.Location != "" {
		sb.WriteString(fmt.Sprintf("Location:  %s\n", pl.Location))
	}
	if pl.Seniority != command.SeniorityAny {
		sb.WriteString(fmt.Sprintf("Seniority: %s\n", pl.Seniority))
	}
	if len(pl.Skills) > 0 {
		sb.WriteString(fmt.Sprintf("Skills:    %s\n", strings.Join(pl.Skills, ", ")))
	}
	sb.WriteString(fmt.Sprintf("Top N:     %d", pl.TopN))

	return sb.String()
}

// PrintResults outputs a short summary of a candidate search.
func (p *Printer) PrintResults(res *bullhorn.Results) {
	if res == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Query: %s\n", res.Query))
	sb.WriteString(fmt.Sprintf("Found: %d\n", len(res.Results)))

	count := min(len(res.Results), maxItemsToShow)
	for i := 0; i < count; i++ {
		c := res.Results[i]
		sb.WriteString(fmt.Sprintf("\n  • %s (#%d)", c.Name, c.ID))
		if c.City != nil && *c.City != "" {
			sb.WriteString(fmt.Sprintf(", %s", *c.City))
		}
	}
	if len(res.Results) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n  ... and %d more", len(res.Results)-maxItemsToShow))
	}

	p.printBox("CANDIDATE SEARCH", sb.String())
}

// PrintTally outputs the per-kind line counts.
func (p *Printer) PrintTally(t Tally) {
	p.printBox("CLASSIFICATION SUMMARY", fmt.Sprintf(
		"Lines:     %d\nNarrative: %d\nCommands:  %d\nMalformed: %d",
		t.Total(), t.Narrative, t.Command, t.Malformed,
	))
}
