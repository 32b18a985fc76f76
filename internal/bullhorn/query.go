package bullhorn

import (
	"strings"

	"github.com/wave/molly/internal/command"
)

// SearchFields is the field list requested for every candidate.
const SearchFields = "id,firstName,lastName,name,address(city,state),employmentPreference,skills,dateLastModified"

// BuildQuery renders a search payload in the backend's Lucene-style query
// grammar. Clauses appear in a fixed order and the non-deleted filter is
// always present.
func BuildQuery(p command.Payload) string {
	var parts []string
	if p.JobTitle != "" {
		parts = append(parts, "title:"+quote(p.JobTitle))
	}
	if len(p.Skills) > 0 {
		skills := make([]string, len(p.Skills))
		for i, s := range p.Skills {
			skills[i] = "skills:" + quote(s)
		}
		parts = append(parts, "("+strings.Join(skills, " OR ")+")")
	}
	if p.Location != "" {
		parts = append(parts, "address.city:"+quote(p.Location))
	}
	if p.Seniority != command.SeniorityAny {
		parts = append(parts, "employmentPreference:"+quote(string(p.Seniority)))
	}
	parts = append(parts, "isDeleted:false")
	return strings.Join(parts, " AND ")
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func quote(s string) string {
	return `"` + quoteEscaper.Replace(s) + `"`
}
