package bullhorn

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSkillList_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		json string
		want SkillList
	}{
		{"comma string", `"Go, Kubernetes ,, AWS"`, SkillList{"Go", "Kubernetes", "AWS"}},
		{"empty string", `""`, nil},
		{"null", `null`, nil},
		{"array", `["Go","Rust"]`, SkillList{"Go", "Rust"}},
		{"association", `{"total":2,"data":[{"id":1,"name":"Go"},{"id":2,"name":""},{"id":3,"name":"SQL"}]}`, SkillList{"Go", "SQL"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got SkillList
			require.NoError(t, json.Unmarshal([]byte(tt.json), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSkillList_Invalid(t *testing.T) {
	var got SkillList
	assert.Error(t, json.Unmarshal([]byte(`42`), &got))
}

func TestRawCandidate_Mapping(t *testing.T) {
	data := `[
		{"id":1,"name":"Ada Lovelace","firstName":"Ada","lastName":"Lovelace",
		 "address":{"city":"London","state":"LDN"},"employmentPreference":["Permanent","Contract"],
		 "skills":"Go, SQL","dateLastModified":1717232400000},
		{"id":2,"firstName":" Grace ","lastName":"","address":{"city":""},"employmentPreference":"Contract"},
		{"id":3}
	]`

	var raws []rawCandidate
	require.NoError(t, json.Unmarshal([]byte(data), &raws))
	require.Len(t, raws, 3)

	first := raws[0].candidate()
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, "Ada Lovelace", first.Name)
	require.NotNil(t, first.City)
	assert.Equal(t, "London", *first.City)
	require.NotNil(t, first.State)
	assert.Equal(t, "LDN", *first.State)
	require.NotNil(t, first.EmploymentPreference)
	assert.Equal(t, "Permanent, Contract", *first.EmploymentPreference)
	assert.Equal(t, SkillList{"Go", "SQL"}, first.Skills)
	require.NotNil(t, first.LastUpdated)
	assert.Equal(t, time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC), *first.LastUpdated)

	second := raws[1].candidate()
	assert.Equal(t, "Grace", second.Name)
	assert.Nil(t, second.City)
	require.NotNil(t, second.EmploymentPreference)
	assert.Equal(t, "Contract", *second.EmploymentPreference)

	third := raws[2].candidate()
	assert.Equal(t, "", third.Name)
	assert.Nil(t, third.City)
	assert.Nil(t, third.State)
	assert.Nil(t, third.EmploymentPreference)
	assert.Nil(t, third.Skills)
	assert.Nil(t, third.LastUpdated)
}

func TestCandidate_JSON(t *testing.T) {
	city := "Leeds"
	c := Candidate{ID: 7, Name: "Sam", City: &city}

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":7,"name":"Sam","city":"Leeds","state":null,"employmentPreference":null,"skills":null,"lastUpdated":null}`, string(data))
}
