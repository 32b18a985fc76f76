// Package command reassembles streamed agent text into lines and extracts the
// @@SEARCH commands embedded in it.
package command

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Seniority is the candidate level requested by a search command.
type Seniority string

// Supported seniority levels. The empty value means "any".
const (
	SeniorityAny    Seniority = ""
	SeniorityJunior Seniority = "junior"
	SeniorityMid    Seniority = "mid"
	SenioritySenior Seniority = "senior"
	SeniorityLead   Seniority = "lead"
)

// Result cap bounds and default.
const (
	DefaultTopN = 5
	MinTopN     = 1
	MaxTopN     = 20
)

// Payload is the structured body of a search command.
type Payload struct {
	JobTitle  string    `json:"job_title,omitempty"`
	Skills    []string  `json:"skills" validate:"dive,required"`
	Location  string    `json:"location,omitempty"`
	Seniority Seniority `json:"seniority,omitempty" validate:"omitempty,oneof=junior mid senior lead"`
	TopN      int       `json:"top_n"`
}

var validate = validator.New()

// wirePayload reads top_n as a raw number so that values outside the int
// range, or integers written with a fraction part, still clamp.
type wirePayload struct {
	Payload
	TopN *json.Number `json:"top_n"`
}

// DecodePayload parses a JSON object into a normalized Payload.
// Omitted fields take their defaults and unknown fields are ignored.
func DecodePayload(data []byte) (Payload, error) {
	var w wirePayload
	if err := json.Unmarshal(data, &w); err != nil {
		return Payload{}, err
	}
	p := w.Payload
	p.TopN = DefaultTopN
	if w.TopN != nil {
		n, err := topNFromNumber(*w.TopN)
		if err != nil {
			return Payload{}, err
		}
		p.TopN = n
	}
	p.Normalize()
	if err := p.Validate(); err != nil {
		return Payload{}, err
	}
	return p, nil
}

// Normalize trims string fields, drops blank skills and clamps the result cap.
func (p *Payload) Normalize() {
	p.JobTitle = strings.TrimSpace(p.JobTitle)
	p.Location = strings.TrimSpace(p.Location)
	p.Seniority = Seniority(strings.ToLower(strings.TrimSpace(string(p.Seniority))))

	skills := make([]string, 0, len(p.Skills))
	for _, s := range p.Skills {
		if s = strings.TrimSpace(s); s != "" {
			skills = append(skills, s)
		}
	}
	p.Skills = skills
	p.TopN = ClampTopN(p.TopN)
}

// Validate checks the payload against its struct rules.
func (p Payload) Validate() error {
	return validate.Struct(p)
}

func topNFromNumber(num json.Number) (int, error) {
	if n, err := num.Int64(); err == nil {
		return int(max(MinTopN, min(MaxTopN, n))), nil
	}
	f, err := strconv.ParseFloat(num.String(), 64)
	if err != nil && !math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid top_n %q: %w", num, err)
	}
	return int(max(MinTopN, min(MaxTopN, f))), nil
}

// ClampTopN bounds a requested result count to [MinTopN, MaxTopN].
func ClampTopN(n int) int {
	return max(MinTopN, min(MaxTopN, n))
}

// Line renders the payload as a sentinel-prefixed command line (without newline).
func (p Payload) Line() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return Sentinel + " " + string(data), nil
}
