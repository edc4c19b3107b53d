package puzzle_client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/mcdev12/wordduel/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDocument = `{
  "grid": [["c","a","t"],["a"," ","o"],["b","e","e"]],
  "clueNumbers": [[1,0,2],[0,0,0],[3,0,0]],
  "clues": [
    {"number":1,"dir":"A","text":"Feline","word_id":101,"length":3,"row":0,"col":0,"word":"cat"},
    {"number":1,"dir":"D","text":"Taxi","word_id":102,"length":3,"row":0,"col":0,"word":"cab"},
    {"number":2,"dir":"D","text":"Digit","word_id":"103","length":3,"row":0,"col":2,"word":"toe"},
    {"number":3,"dir":"A","text":"Buzzer","word_id":104,"row":2,"col":0,"word":"bee"}
  ]
}`

func TestParse(t *testing.T) {
	p, err := Parse([]byte(sampleDocument))
	require.NoError(t, err)

	assert.Equal(t, 3, p.Size)
	assert.Equal(t, [][]string{{"C", "A", "T"}, {"A", models.BlockCell, "O"}, {"B", "E", "E"}}, p.Grid)
	assert.Equal(t, [][]int{{1, 0, 2}, {0, 0, 0}, {3, 0, 0}}, p.ClueNumbers)
	require.Len(t, p.Clues, 4)

	clue, ok := p.Clue("101")
	require.True(t, ok)
	assert.Equal(t, models.DirectionAcross, clue.Direction)
	assert.Equal(t, "CAT", clue.Answer)

	clue, ok = p.Clue("103")
	require.True(t, ok)
	assert.Equal(t, models.DirectionDown, clue.Direction)

	clue, ok = p.Clue("104")
	require.True(t, ok)
	assert.Equal(t, 3, clue.Length)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "not json", doc: `nope`},
		{name: "empty grid", doc: `{"grid":[],"clues":[{"number":1,"dir":"A","word_id":1,"word":"a"}]}`},
		{name: "no clues", doc: `{"grid":[["a"]],"clues":[]}`},
		{name: "ragged grid", doc: `{"grid":[["a","b"],["c"]],"clues":[{"number":1,"dir":"A","word_id":1,"word":"ab"}]}`},
		{name: "bad direction", doc: `{"grid":[["a"]],"clues":[{"number":1,"dir":"X","word_id":1,"word":"a"}]}`},
		{name: "missing word", doc: `{"grid":[["a"]],"clues":[{"number":1,"dir":"A","word_id":1}]}`},
		{name: "duplicate id", doc: `{"grid":[["a"]],"clues":[{"number":1,"dir":"A","word_id":1,"word":"a"},{"number":1,"dir":"D","word_id":1,"word":"a"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.ErrorIs(t, err, ErrInvalidPuzzle)
		})
	}
}

func TestHTTPClientRequestPuzzle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/puzzles", r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("size"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleDocument))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, time.Second)
	p, err := client.RequestPuzzle(context.Background(), 7)
	require.NoError(t, err)
	assert.Len(t, p.Clues, 4)
}

func TestHTTPClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "generator down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, time.Second).RequestPuzzle(context.Background(), 7)
	assert.Error(t, err)
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestProcessClientRequestPuzzle(t *testing.T) {
	requireShell(t)

	path := filepath.Join(t.TempDir(), "puzzle.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleDocument), 0o600))

	// sh -c script $0 $1 $2: the client appends "generate-sized 5".
	client := NewProcessClient(ProcessConfig{
		Command: "sh",
		Args:    []string{"-c", `test "$1" = generate-sized && test "$2" = 5 && cat "` + path + `"`, "generator"},
	})
	p, err := client.RequestPuzzle(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Size)
}

func TestProcessClientFailures(t *testing.T) {
	requireShell(t)

	t.Run("non-zero exit", func(t *testing.T) {
		client := NewProcessClient(ProcessConfig{
			Command: "sh",
			Args:    []string{"-c", `echo boom >&2; exit 3`, "generator"},
		})
		_, err := client.RequestPuzzle(context.Background(), 7)
		assert.Error(t, err)
	})

	t.Run("bad output", func(t *testing.T) {
		client := NewProcessClient(ProcessConfig{
			Command: "sh",
			Args:    []string{"-c", `echo not-json`, "generator"},
		})
		_, err := client.RequestPuzzle(context.Background(), 7)
		assert.ErrorIs(t, err, ErrInvalidPuzzle)
	})

	t.Run("timeout", func(t *testing.T) {
		client := NewProcessClient(ProcessConfig{
			Command: "sh",
			Args:    []string{"-c", `sleep 5`, "generator"},
			Timeout: 50 * time.Millisecond,
		})
		_, err := client.RequestPuzzle(context.Background(), 7)
		assert.Error(t, err)
	})
}
