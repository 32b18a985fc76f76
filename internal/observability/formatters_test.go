package observability

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wave/molly/internal/bullhorn"
	"github.com/wave/molly/internal/command"
)

func TestPrintOutcome_Narrative(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintOutcome(3, command.Outcome{Kind: command.KindNarrative, Text: "Right, let me have a look."})

	assert.Equal(t, "   3  Right, let me have a look.\n", buf.String())
}

func TestPrintOutcome_EmptyNarrative(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintOutcome(1, command.Outcome{Kind: command.KindNarrative})

	assert.Empty(t, buf.String())
}

func TestPrintOutcome_Command(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintOutcome(2, command.Outcome{Kind: command.KindCommand, Payload: command.Payload{
		JobTitle:  "Data Engineer",
		Skills:    []string{"Python", "Airflow"},
		Location:  "Leeds",
		Seniority: command.SenioritySenior,
		TopN:      3,
	}})
	output := buf.String()

	assert.Contains(t, output, "LINE 2: SEARCH COMMAND")
	assert.Contains(t, output, "Data Engineer")
	assert.Contains(t, output, "Python, Airflow")
	assert.Contains(t, output, "Leeds")
	assert.Contains(t, output, "senior")
	assert.Contains(t, output, "Top N:     3")
}

func TestPrintOutcome_Malformed(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintOutcome(5, command.Outcome{Kind: command.KindMalformed, Err: &command.ParseError{Message: "invalid JSON"}})
	output := buf.String()

	assert.Contains(t, output, "LINE 5: MALFORMED COMMAND")
	assert.Contains(t, output, "invalid JSON")
}

func TestPrintResults(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	city := "Manchester"
	res := &bullhorn.Results{Query: `title:"SRE"`}
	for i := 0; i < 7; i++ {
		res.Results = append(res.Results, bullhorn.Candidate{ID: int64(i + 1), Name: "Candidate", City: &city})
	}

	p.PrintResults(res)
	output := buf.String()

	assert.Contains(t, output, "CANDIDATE SEARCH")
	assert.Contains(t, output, "Found: 7")
	assert.Contains(t, output, "Manchester")
	assert.Contains(t, output, "... and 2 more")
}

func TestPrintResults_Nil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintResults(nil)

	assert.Empty(t, buf.String())
}

func TestPrintTally(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	var tally Tally
	for _, k := range []command.Kind{command.KindNarrative, command.KindNarrative, command.KindCommand, command.KindMalformed} {
		tally.Add(k)
	}
	assert.Equal(t, 4, tally.Total())

	p.PrintTally(tally)
	output := buf.String()

	assert.Contains(t, output, "Lines:     4")
	assert.Contains(t, output, "Narrative: 2")
	assert.Contains(t, output, "Commands:  1")
	assert.Contains(t, output, "Malformed: 1")
}

func TestPrintBox_TruncatesLongLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.printBox("TITLE", strings.Repeat("x", 100))

	assert.Contains(t, buf.String(), "...")
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		assert.LessOrEqual(t, len([]rune(line)), boxWidth)
	}
}
