package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/vizflow/processors"
	"github.com/c360/vizflow/property"
	"github.com/c360/vizflow/workspace"
)

func TestParseFlags(t *testing.T) {
	t.Setenv("VIZFLOW_PASSES", "4")
	t.Setenv("VIZFLOW_LOG_LEVEL", "debug")

	cfg, err := parseFlags([]string{"--workspace", "w.json", "--log-level", "warn", "--serve"})
	require.NoError(t, err)
	assert.Equal(t, "w.json", cfg.WorkspacePath)
	assert.Equal(t, 4, cfg.Passes, "env fallback")
	assert.Equal(t, "warn", cfg.LogLevel, "flag wins over env")
	assert.True(t, cfg.Serve)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestValidateFlags(t *testing.T) {
	existing := filepath.Join(t.TempDir(), "w.json")
	require.NoError(t, os.WriteFile(existing, []byte("{}"), 0o644))

	tests := []struct {
		name    string
		cfg     CLIConfig
		wantErr string
	}{
		{"defaults", CLIConfig{Passes: 1}, ""},
		{"version skips checks", CLIConfig{ShowVersion: true}, ""},
		{"missing config", CLIConfig{Passes: 1, ConfigPath: "/nope.yaml"}, "config file not found"},
		{"missing workspace", CLIConfig{Passes: 1, WorkspacePath: "/nope.json"}, "workspace file not found"},
		{"exclusive sources", CLIConfig{Passes: 1, WorkspacePath: existing, WorkspaceID: "x"}, "exclusive"},
		{"zero passes", CLIConfig{Passes: 0}, "invalid pass count"},
		{"bad level", CLIConfig{Passes: 1, LogLevel: "loud"}, "invalid log level"},
		{"bad format", CLIConfig{Passes: 1, LogFormat: "xml"}, "invalid log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFlags(&tt.cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(&buf, "warn", "json")
	logger.Info("hidden")
	logger.Warn("shown", "k", 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, appName, entry["service"])
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"--version"}, &out))
	assert.Contains(t, out.String(), "vizflow version "+Version)
}

func TestRun_List(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"--list", "--log-level", "error"}, &out))
	assert.Contains(t, out.String(), processors.ClassIntSum)
	assert.Contains(t, out.String(), processors.ClassSink)
}

func writeWorkspace(t *testing.T, dir string) string {
	t.Helper()
	doc := &workspace.Document{
		Version: workspace.CurrentVersion,
		Name:    "cli",
		Processors: []workspace.ProcessorDoc{
			{Identifier: "src", Class: processors.ClassIntSource, Properties: []workspace.PropertyDoc{
				{Identifier: "value", Class: property.ClassInt, Value: 6},
			}},
			{Identifier: "sink", Class: processors.ClassSink},
		},
		Connections: []workspace.ConnectionDoc{{
			Outport: workspace.PortRef{Processor: "src", Port: "outport"},
			Inport:  workspace.PortRef{Processor: "sink", Port: "inport"},
		}},
		Setup: map[string]any{"camera": "top"},
	}
	path := filepath.Join(dir, "in.yaml")
	require.NoError(t, workspace.WriteFile(path, doc))
	return path
}

func TestRun_EvaluateAndSave(t *testing.T) {
	dir := t.TempDir()
	in := writeWorkspace(t, dir)
	out := filepath.Join(dir, "out.json")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := run(ctx, []string{"--workspace", in, "--passes", "2", "--save", out, "--log-level", "error"}, &bytes.Buffer{})
	require.NoError(t, err)

	doc, err := workspace.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "cli", doc.Name)
	assert.Equal(t, map[string]any{"camera": "top"}, doc.Setup)
	require.Len(t, doc.Processors, 2)
	require.Len(t, doc.Connections, 1)
	value, ok := doc.Property(workspace.PropertyPath{"src", "value"})
	require.True(t, ok)
	assert.Equal(t, float64(6), value.Value)
}

func TestRun_Validate(t *testing.T) {
	dir := t.TempDir()
	in := writeWorkspace(t, dir)
	require.NoError(t, run(context.Background(), []string{"--workspace", in, "--validate", "--log-level", "error"}, &bytes.Buffer{}))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad,
		[]byte(`{"version": 1, "processors": [{"identifier": "x", "class": "org.example.Nope"}]}`), 0o644))
	err := run(context.Background(), []string{"--workspace", bad, "--validate", "--log-level", "error"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown class")
}

func TestRun_StoreNeedsNATS(t *testing.T) {
	err := run(context.Background(), []string{"--workspace-id", "abc", "--log-level", "error"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nats.urls")
}
