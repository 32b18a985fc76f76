package bullhorn

import (
	"encoding/json"
	"strings"
	"time"
)

// Candidate is the reduced candidate record returned to callers.
type Candidate struct {
	ID                   int64      `json:"id"`
	Name                 string     `json:"name"`
	City                 *string    `json:"city"`
	State                *string    `json:"state"`
	EmploymentPreference *string    `json:"employmentPreference"`
	Skills               SkillList  `json:"skills"`
	LastUpdated          *time.Time `json:"lastUpdated"`
}

// SkillList accepts the shapes the backend uses for skills: a comma-separated
// string, an array of strings, or an association envelope of named items.
type SkillList []string

// UnmarshalJSON implements json.Unmarshaler.
func (s *SkillList) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*s = splitSkills(text)
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = list
		return nil
	}

	var envelope struct {
		Data []struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}
	out := make(SkillList, 0, len(envelope.Data))
	for _, d := range envelope.Data {
		if d.Name != "" {
			out = append(out, d.Name)
		}
	}
	*s = out
	return nil
}

func splitSkills(text string) SkillList {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var out SkillList
	for _, part := range strings.Split(text, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// rawCandidate mirrors the backend's search record.
type rawCandidate struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Name      string `json:"name"`
	Address   *struct {
		City  string `json:"city"`
		State string `json:"state"`
	} `json:"address"`
	EmploymentPreference json.RawMessage `json:"employmentPreference"`
	Skills               SkillList       `json:"skills"`
	DateLastModified     *int64          `json:"dateLastModified"`
}

// searchResponse is the search endpoint's envelope.
type searchResponse struct {
	Total int             `json:"total"`
	Data  *[]rawCandidate `json:"data"`
}

func (r rawCandidate) candidate() Candidate {
	c := Candidate{
		ID:     r.ID,
		Name:   r.Name,
		Skills: r.Skills,
	}
	if c.Name == "" {
		c.Name = strings.TrimSpace(r.FirstName + " " + r.LastName)
	}
	if r.Address != nil {
		c.City = optional(r.Address.City)
		c.State = optional(r.Address.State)
	}
	c.EmploymentPreference = optional(preference(r.EmploymentPreference))
	if r.DateLastModified != nil && *r.DateLastModified > 0 {
		t := time.UnixMilli(*r.DateLastModified).UTC()
		c.LastUpdated = &t
	}
	return c
}

// preference flattens employmentPreference, which is either a string or a
// list of strings depending on the backend's field configuration.
func preference(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil {
		return strings.Join(list, ", ")
	}
	return ""
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
