package bullhorn

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wave/molly/internal/credential"
)

func TestClient_Login(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest-services/login", r.URL.Path)
		assert.Equal(t, "2.0", r.URL.Query().Get("version"))
		assert.Equal(t, "tok+en/1", r.URL.Query().Get("access_token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"BhRestToken":"bh-1","restUrl":"https://rest9.example.com/rest-services/abc/"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/rest-services/login", nil)
	session, err := client.Login(context.Background(), "tok+en/1")
	require.NoError(t, err)
	assert.Equal(t, credential.Session{Token: "bh-1", BaseURL: "https://rest9.example.com/rest-services/abc/"}, session)
}

func TestClient_LoginFailures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantMsg    string
	}{
		{"missing restUrl", http.StatusOK, `{"BhRestToken":"bh-1"}`, http.StatusOK, "missing BhRestToken or restUrl"},
		{"missing token", http.StatusOK, `{"restUrl":"https://x/"}`, http.StatusOK, "missing BhRestToken or restUrl"},
		{"invalid json", http.StatusOK, `not json`, http.StatusOK, "invalid response body"},
		{"rejected", http.StatusUnauthorized, `{"errorMessage":"Invalid access token"}`, http.StatusUnauthorized, "Invalid access token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(server.URL, nil).Login(context.Background(), "secret-token")
			var bhErr *Error
			require.ErrorAs(t, err, &bhErr)
			assert.Equal(t, "login", bhErr.Op)
			assert.Equal(t, tt.wantStatus, bhErr.StatusCode)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.NotContains(t, err.Error(), "secret-token")
		})
	}
}

func TestClient_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest-services/abc/search/Candidate", r.URL.Path)
		assert.Equal(t, "bh-1", r.Header.Get("BhRestToken"))

		q := r.URL.Query()
		assert.Equal(t, `title:"SRE" AND isDeleted:false`, q.Get("query"))
		assert.Equal(t, "2", q.Get("count"))
		assert.Equal(t, "0", q.Get("start"))
		assert.Equal(t, SearchFields, q.Get("fields"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"total":3,"start":0,"count":3,"data":[
			{"id":11,"name":"Ada Lovelace"},
			{"id":12,"firstName":"Grace","lastName":"Hopper"},
			{"id":13,"name":"Extra"}
		]}`))
	}))
	defer server.Close()

	session := credential.Session{Token: "bh-1", BaseURL: server.URL + "/rest-services/abc/"}
	candidates, err := NewClient("", nil).Search(context.Background(), session, `title:"SRE" AND isDeleted:false`, 2)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, int64(11), candidates[0].ID)
	assert.Equal(t, "Ada Lovelace", candidates[0].Name)
	assert.Equal(t, "Grace Hopper", candidates[1].Name)
}

func TestClient_SearchEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"total":0,"data":[]}`))
	}))
	defer server.Close()

	candidates, err := NewClient("", nil).Search(context.Background(), credential.Session{Token: "t", BaseURL: server.URL + "/"}, "isDeleted:false", 5)
	require.NoError(t, err)
	assert.NotNil(t, candidates)
	assert.Empty(t, candidates)
}

func TestClient_SearchFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"server error", http.StatusInternalServerError, `{"errorMessage":"boom"}`, "boom"},
		{"missing data", http.StatusOK, `{"total":0}`, "response missing data"},
		{"not json", http.StatusOK, `<html></html>`, "invalid response body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient("", nil).Search(context.Background(), credential.Session{Token: "t", BaseURL: server.URL + "/"}, "isDeleted:false", 5)
			var bhErr *Error
			require.ErrorAs(t, err, &bhErr)
			assert.Equal(t, "search", bhErr.Op)
			assert.Equal(t, tt.status, bhErr.StatusCode)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}
