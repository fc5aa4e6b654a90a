package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/w-h-a/triage/repository"
)

func newTestApp(t *testing.T) (*app, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	return &app{
		globals:  &Globals{Backend: "memory", Table: repository.DefaultTable},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		out:      out,
		registry: prometheus.NewRegistry(),
	}, out
}

func TestReadRecord_FillsMissingIdentifiers(t *testing.T) {
	fixed := time.Date(2024, 1, 1, 10, 0, 0, 5, time.UTC)
	restore := now
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = restore })

	rec, err := readRecord(strings.NewReader("patient_id: PAT-1\nvitals:\n  temperature: 38.5\n  heart_rate: 90\n"))
	require.NoError(t, err)

	assert.Equal(t, "PAT-1", rec.PatientId())
	assert.Equal(t, fixed.Format(time.RFC3339Nano), rec.Timestamp())
	assert.Len(t, rec.TriageId(), 36)

	vitals, ok := rec["vitals"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 38.5, vitals["temperature"])
	assert.Equal(t, int64(90), vitals["heart_rate"])
}

func TestReadRecord_KeepsGivenIdentifiers(t *testing.T) {
	rec, err := readRecord(strings.NewReader(`{"patient_id": "PAT-1", "timestamp": "2024-01-01T10:00:00Z", "triage_id": "T-1"}`))
	require.NoError(t, err)

	assert.Equal(t, "2024-01-01T10:00:00Z", rec.Timestamp())
	assert.Equal(t, "T-1", rec.TriageId())
}

func TestReadRecord_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "not a mapping", input: "- a\n- b\n"},
		{name: "no patient", input: "timestamp: x\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readRecord(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestSaveAndListCommands(t *testing.T) {
	a, out := newTestApp(t)

	dir := t.TempDir()
	for _, ts := range []string{"2024-01-01T10:00:00Z", "2024-01-01T11:00:00Z"} {
		path := filepath.Join(dir, ts+".yaml")
		require.NoError(t, os.WriteFile(path, []byte("patient_id: PAT-1\ntimestamp: \""+ts+"\"\n"), 0o600))
		require.NoError(t, (&saveCmd{File: path}).Run(a))
	}

	dec := json.NewDecoder(bytes.NewReader(out.Bytes()))
	for range 2 {
		var saved map[string]any
		require.NoError(t, dec.Decode(&saved))
		assert.Equal(t, "PAT-1", saved["patient_id"])
		assert.NotEmpty(t, saved["triage_id"])
	}

	out.Reset()
	require.NoError(t, (&listCmd{PatientId: "PAT-1", Limit: 1}).Run(a))

	var listed []map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "2024-01-01T11:00:00Z", listed[0]["timestamp"])
}

func TestSaveCommand_MissingFile(t *testing.T) {
	a, _ := newTestApp(t)

	err := (&saveCmd{File: filepath.Join(t.TempDir(), "missing.yaml")}).Run(a)

	assert.Error(t, err)
}

func TestParser_TableFromEnvironment(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want string
	}{
		{name: "default", env: "", want: repository.DefaultTable},
		{name: "env override", env: "Triages-Staging", want: "Triages-Staging"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if len(tt.env) > 0 {
				t.Setenv(repository.TableEnv, tt.env)
			} else {
				t.Setenv(repository.TableEnv, "")
				os.Unsetenv(repository.TableEnv)
			}

			var cli CLI
			parser, err := kong.New(&cli, parserOptions()...)
			require.NoError(t, err)

			_, err = parser.Parse([]string{"list", "PAT-1"})
			require.NoError(t, err)

			assert.Equal(t, tt.want, cli.Table)
			assert.Equal(t, "PAT-1", cli.List.PatientId)
		})
	}
}
