package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/medibot/medibot-cli/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckStdinPipe(t *testing.T) {
	// Save original stdin
	origStdin := os.Stdin

	// Restore original stdin when test completes
	defer func() {
		os.Stdin = origStdin
	}()

	t.Run("WithPipedData", func(t *testing.T) {
		r, w, err := os.Pipe()
		require.NoError(t, err)
		os.Stdin = r

		testData := "test piped input"
		go func() {
			defer w.Close()
			w.Write([]byte(testData))
		}()

		data, hasPiped := checkStdinPipe()
		assert.True(t, hasPiped)
		assert.Equal(t, testData, data)
	})

	t.Run("WithoutPipedData", func(t *testing.T) {
		f := emptyStdin(t)
		os.Stdin = f

		data, hasPiped := checkStdinPipe()
		assert.False(t, hasPiped)
		assert.Empty(t, data)
	})
}

func TestJoinPrompt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prompt string
		piped  string
		want   string
	}{
		{"piped only", "", "dosis de paracetamol\n", "dosis de paracetamol"},
		{"blank prompt", "  ", "texto", "texto"},
		{"both", "Resume esto:", "nota clínica\n", "Resume esto:\n\nnota clínica"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, joinPrompt(tt.prompt, tt.piped))
		})
	}
}

func emptyStdin(t *testing.T) *os.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stdin")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// run executes the CLI in a fresh directory against server and returns
// stdout.
func run(t *testing.T, server string, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	t.Setenv("MEDIBOT_SERVER_URL", server)

	origStdin := os.Stdin
	os.Stdin = emptyStdin(t)
	t.Cleanup(func() { os.Stdin = origStdin })

	config.Reset()
	t.Cleanup(config.Reset)
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })
	// cobra only sets a subcommand's context when it is nil, so drop the
	// cancelled context left behind by the previous test.
	for _, sub := range rootCmd.Commands() {
		sub.SetContext(nil)
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(t.Context())
	return out.String(), err
}

func backend(t *testing.T, state string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": state, "details": "Modelo cargado"})
	})
	mux.HandleFunc("POST /api/chat", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"answer": "500mg cada 6 horas"})
	})
	mux.HandleFunc("POST /api/ingest_data", func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		assert.Len(t, r.MultipartForm.File["files"], 2)
		json.NewEncoder(w).Encode(map[string]string{"message": "2 documentos procesados"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestStatusCommand(t *testing.T) {
	srv := backend(t, "ready")

	out, err := run(t, srv.URL, "status")
	require.NoError(t, err)
	assert.Equal(t, "ready: Modelo cargado\n", out)
}

func TestStatusCommandNotReady(t *testing.T) {
	srv := backend(t, "installing")

	out, err := run(t, srv.URL, "status", "-f", "json")
	require.ErrorIs(t, err, errNotReady)

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "installing", got["state"])
	assert.Equal(t, srv.URL, got["server"])
}

func TestStatusCommandServerFlag(t *testing.T) {
	srv := backend(t, "ready")

	_, err := run(t, "http://127.0.0.1:1", "status", "--server", srv.URL)
	require.NoError(t, err)
}

func TestPromptMode(t *testing.T) {
	srv := backend(t, "ready")

	out, err := run(t, srv.URL, "-q", "-f", "json", "-p", "¿Cuál es la dosis máxima de paracetamol?")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "¿Cuál es la dosis máxima de paracetamol?", got["question"])
	assert.Equal(t, "500mg cada 6 horas", got["response"])
	assert.NotContains(t, got, "failed")

	// the conversation was saved on shutdown
	saved, err := filepath.Glob(filepath.Join(".medibot", "transcripts", "*.json"))
	require.NoError(t, err)
	assert.Len(t, saved, 1)
}

func TestIngestCommand(t *testing.T) {
	srv := backend(t, "ready")

	dir := t.TempDir()
	for _, name := range []string{"a.pdf", "b.txt", "c.docx"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644))
	}

	out, err := run(t, srv.URL, "ingest", "-q", filepath.Join(dir, "*"))
	require.NoError(t, err)
	assert.Equal(t, "2 documentos procesados\n", out)
}

func TestIngestCommandRejectsUnsupportedFile(t *testing.T) {
	srv := backend(t, "ready")

	path := filepath.Join(t.TempDir(), "notes.docx")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := run(t, srv.URL, "ingest", "-q", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load files")
}
