package state

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGistStore_RequiresCredentials(t *testing.T) {
	_, err := NewGistStore(GistConfig{GistID: "abc"}, nil)
	assert.Error(t, err)

	_, err = NewGistStore(GistConfig{Token: "tok"}, nil)
	assert.Error(t, err)
}

func TestGistStore_Load(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/gists/g1", r.URL.Path)
		assert.Equal(t, "token tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{"files":{
			"state.json":{"content":"{\"last_challenge_id\":\"abc\",\"last_challenge_date\":\"2026-08-23\",\"challenges_today_count\":1}"},
			"notes.md":{"content":"keep me"}
		}}`))
	}))
	defer srv.Close()

	store, err := NewGistStore(GistConfig{BaseURL: srv.URL, GistID: "g1", Token: "tok"}, nil)
	require.NoError(t, err)

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RunState{LastRunID: "abc", LastRunDate: "2026-08-23", Sequence: 1}, got)
}

func TestGistStore_LoadDegradesToZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	store, err := NewGistStore(GistConfig{BaseURL: srv.URL, GistID: "g1", Token: "tok"}, nil)
	require.NoError(t, err)

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestGistStore_SavePreservesOtherFiles(t *testing.T) {
	var patched gistDocument
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(`{"files":{
				"state.json":{"content":"{}"},
				"notes.md":{"content":"keep me"}
			}}`))
		case http.MethodPatch:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&patched))
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))
	defer srv.Close()

	store, err := NewGistStore(GistConfig{BaseURL: srv.URL, GistID: "g1", Token: "tok"}, nil)
	require.NoError(t, err)

	want := RunState{LastRunID: "xyz789", LastRunDate: "2026-08-23", Sequence: 2}
	require.NoError(t, store.Save(context.Background(), want))

	assert.Equal(t, "keep me", patched.Files["notes.md"].Content)

	var saved RunState
	require.NoError(t, json.Unmarshal([]byte(patched.Files["state.json"].Content), &saved))
	assert.Equal(t, want, saved)
}

func TestGistStore_SaveSurfacesFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write([]byte(`{"files":{}}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	store, err := NewGistStore(GistConfig{BaseURL: srv.URL, GistID: "g1", Token: "tok"}, nil)
	require.NoError(t, err)

	assert.Error(t, store.Save(context.Background(), RunState{LastRunID: "x"}))
}
