package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wave/molly/internal/bullhorn"
	"github.com/wave/molly/internal/command"
	"github.com/wave/molly/internal/config"
	"github.com/wave/molly/internal/observability"
)

const transcript = "Right, let me have a look.\n" +
	"@@SEARCH {\"job_title\":\"Data Engineer\",\"skills\":[\"Python\"],\"top_n\":3}\n" +
	"@@SEARCH {\"top_n\":\n" +
	"I'll be right back"

type stubSearcher struct {
	payloads []command.Payload
	results  *bullhorn.Results
	err      error
}

func (s *stubSearcher) Search(_ context.Context, p command.Payload) (*bullhorn.Results, error) {
	s.payloads = append(s.payloads, p)
	return s.results, s.err
}

func TestClassify_ChunkingDoesNotChangeOutput(t *testing.T) {
	var want string
	for _, chunk := range []int{0, 1, 2, 5, 13, 64} {
		var out bytes.Buffer
		tally, err := classify(context.Background(), strings.NewReader(transcript), &out, chunk, nil)
		require.NoError(t, err)

		assert.Equal(t, observability.Tally{Narrative: 2, Command: 1, Malformed: 1}, tally, "chunk=%d", chunk)
		if want == "" {
			want = out.String()
			continue
		}
		assert.Equal(t, want, out.String(), "chunk=%d", chunk)
	}

	assert.Contains(t, want, "Right, let me have a look.")
	assert.Contains(t, want, "LINE 2: SEARCH COMMAND")
	assert.Contains(t, want, "LINE 3: MALFORMED COMMAND")
	assert.Contains(t, want, "I'll be right back")
	assert.Contains(t, want, "Lines:     4")
}

func TestClassify_RunsSearches(t *testing.T) {
	searcher := &stubSearcher{results: &bullhorn.Results{
		Query:   `title:"Data Engineer" AND skills:"Python" AND isDeleted:false`,
		Results: []bullhorn.Candidate{{ID: 42, Name: "Ada Lovelace"}},
	}}

	var out bytes.Buffer
	_, err := classify(context.Background(), strings.NewReader(transcript), &out, 0, searcher)
	require.NoError(t, err)

	require.Len(t, searcher.payloads, 1)
	assert.Equal(t, "Data Engineer", searcher.payloads[0].JobTitle)
	assert.Equal(t, 3, searcher.payloads[0].TopN)
	assert.Contains(t, out.String(), "CANDIDATE SEARCH")
	assert.Contains(t, out.String(), "Ada Lovelace (#42)")
}

func TestClassify_SearchFailureIsReported(t *testing.T) {
	searcher := &stubSearcher{err: errors.New("backend down")}

	var out bytes.Buffer
	_, err := classify(context.Background(), strings.NewReader(transcript), &out, 0, searcher)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "search failed: backend down")
}

func TestClassifyCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.txt")
	require.NoError(t, os.WriteFile(path, []byte(transcript), 0644))

	tests := []struct {
		name  string
		args  []string
		stdin string
	}{
		{"file", []string{"classify", path}, ""},
		{"stdin", []string{"classify", "--chunk", "3"}, transcript},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Cleanup(func() { classifyChunk = 0 })

			var out bytes.Buffer
			rootCmd.SetIn(strings.NewReader(tt.stdin))
			rootCmd.SetOut(&out)
			rootCmd.SetArgs(tt.args)

			require.NoError(t, rootCmd.Execute())
			assert.Contains(t, out.String(), "LINE 2: SEARCH COMMAND")
			assert.Contains(t, out.String(), "Commands:  1")
		})
	}
}

func TestClassifyCommand_MissingFile(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"classify", filepath.Join(t.TempDir(), "missing.txt")})

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open transcript")
}

func TestConnect(t *testing.T) {
	var rest *httptest.Server
	rest = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest-services/login":
			assert.Equal(t, "at-123", r.URL.Query().Get("access_token"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"BhRestToken":"bh-1","restUrl":"` + rest.URL + `/rest/"}`)) //nolint:errcheck
		case "/rest/search/Candidate":
			assert.Equal(t, "bh-1", r.Header.Get("BhRestToken"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"total":1,"data":[{"id":9,"firstName":"Grace","lastName":"Hopper"}]}`)) //nolint:errcheck
		default:
			http.NotFound(w, r)
		}
	}))
	defer rest.Close()

	cfg := config.Defaults()
	cfg.BullhornLoginURL = rest.URL + "/rest-services/login"

	svc, err := connect(context.Background(), &cfg, "at-123", nil)
	require.NoError(t, err)

	res, err := svc.Search(context.Background(), command.Payload{JobTitle: "Engineer", TopN: 5})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "Grace Hopper", res.Results[0].Name)
}

func TestConnect_LoginRejected(t *testing.T) {
	rest := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
	}))
	defer rest.Close()

	cfg := config.Defaults()
	cfg.BullhornLoginURL = rest.URL

	_, err := connect(context.Background(), &cfg, "bad", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bullhorn login failed")
}
