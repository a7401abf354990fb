package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contentops/packlint/internal/repo"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, string(repo.ModeUseGit), cfg.ExecutionMode)
	assert.Equal(t, "origin/master", cfg.BaselineRef)
	assert.Equal(t, "text", cfg.ReportFormat)
	assert.Equal(t, 1, cfg.Jobs)
	require.NoError(t, cfg.Validate())
}

func TestLoadWithoutConfigFile(t *testing.T) {
	cfg, err := Load(NewViper(t.TempDir()))
	require.NoError(t, err)
	assert.Equal(t, Defaults().ExecutionMode, cfg.ExecutionMode)
}

func TestLoadConfigFile(t *testing.T) {
	root := t.TempDir()
	content := "baseline_ref: upstream/main\nreport_format: json\nexclude_globs:\n  - \"Packs/NonSupported/**\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, ".packlint.yaml"), []byte(content), 0o644))

	cfg, err := Load(NewViper(root))
	require.NoError(t, err)
	assert.Equal(t, "upstream/main", cfg.BaselineRef)
	assert.Equal(t, "json", cfg.ReportFormat)
	assert.Equal(t, []string{"Packs/NonSupported/**"}, cfg.ExcludeGlobs)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("PACKLINT_BASELINE_REF", "origin/develop")
	cfg, err := Load(NewViper(t.TempDir()))
	require.NoError(t, err)
	assert.Equal(t, "origin/develop", cfg.BaselineRef)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RunConfig)
		wantErr bool
	}{
		{"defaults pass", func(*RunConfig) {}, false},
		{"unknown mode", func(c *RunConfig) { c.ExecutionMode = "everything" }, true},
		{"specific without paths", func(c *RunConfig) { c.ExecutionMode = string(repo.ModeSpecificFiles) }, true},
		{"specific with paths", func(c *RunConfig) {
			c.ExecutionMode = string(repo.ModeSpecificFiles)
			c.FilePaths = []string{"Packs/A/pack_metadata.json"}
		}, false},
		{"paths without specific mode", func(c *RunConfig) { c.FilePaths = []string{"x"} }, true},
		{"unknown format", func(c *RunConfig) { c.ReportFormat = "xml" }, true},
		{"zero jobs", func(c *RunConfig) { c.Jobs = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
