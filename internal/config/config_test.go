package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/query"
)

func requestFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("request", pflag.ContinueOnError)
	RegisterGlobalFlags(flags)
	RegisterRequestFlags(flags)
	require.NoError(t, flags.Parse(args))
	return flags
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dreq.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(requestFlags(t))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.True(t, cfg.Selector().All)
	assert.Equal(t, zapcore.InfoLevel, cfg.Level())
}

func TestLoadPrecedence(t *testing.T) {
	path := writeConfig(t, `
dreq-version: v1.1
export: from-file.json
priority-cutoff: medium
opportunities:
  - Ocean heat, uptake
  - Clouds
log-level: debug
`)

	t.Run("file", func(t *testing.T) {
		cfg, err := Load(requestFlags(t, "--config", path))
		require.NoError(t, err)
		assert.Equal(t, "v1.1", cfg.Version)
		assert.Equal(t, "from-file.json", cfg.Export)
		assert.Equal(t, "medium", cfg.Priority)
		assert.Equal(t, []string{"Ocean heat, uptake", "Clouds"}, cfg.Opportunities)
		assert.Equal(t, zapcore.DebugLevel, cfg.Level())
	})

	t.Run("env over file", func(t *testing.T) {
		t.Setenv("DREQ_EXPORT", "from-env.json")
		t.Setenv("DREQ_CHECK_CORE", "false")
		cfg, err := Load(requestFlags(t, "--config", path))
		require.NoError(t, err)
		assert.Equal(t, "from-env.json", cfg.Export)
		assert.False(t, cfg.CheckCore)
		assert.Equal(t, "v1.1", cfg.Version)
	})

	t.Run("flag over env", func(t *testing.T) {
		t.Setenv("DREQ_EXPORT", "from-env.json")
		t.Setenv("DREQ_OPPORTUNITIES", "Clouds , Aerosols")
		cfg, err := Load(requestFlags(t, "--config", path, "--export", "from-flag.json"))
		require.NoError(t, err)
		assert.Equal(t, "from-flag.json", cfg.Export)
		assert.Equal(t, []string{"Clouds", "Aerosols"}, cfg.Opportunities)
		assert.Equal(t, query.Titles("Aerosols", "Clouds"), cfg.Selector())
	})

	t.Run("flag list", func(t *testing.T) {
		cfg, err := Load(requestFlags(t, "-p", "A", "-p", "B"))
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B"}, cfg.Opportunities)
	})
}

func TestLoadMetadataFlags(t *testing.T) {
	flags := pflag.NewFlagSet("metadata", pflag.ContinueOnError)
	RegisterGlobalFlags(flags)
	RegisterMetadataFlags(flags)
	require.NoError(t, flags.Parse([]string{"--cmor-tables", "Amon,Omon", "-o", "vars.csv"}))

	cfg, err := Load(flags)
	require.NoError(t, err)
	opts := cfg.MetadataOptions()
	assert.Equal(t, []string{"Amon", "Omon"}, opts.CMORTables)
	assert.Empty(t, opts.CompoundNames)
	assert.Equal(t, "vars.csv", cfg.Output)
}

func TestLoadErrors(t *testing.T) {
	tests := map[string]struct {
		args []string
		body string
	}{
		"unknown file option":  {body: "colour: blue\n"},
		"bad priority":         {args: []string{"--priority-cutoff", "urgent"}},
		"bad log level":        {args: []string{"--log-level", "loud"}},
		"missing config file":  {args: []string{"--config", filepath.Join(os.TempDir(), "does-not-exist", "dreq.yaml")}},
		"malformed yaml":       {body: "export: [unterminated\n"},
		"bad priority in file": {body: "priority-cutoff: never\n"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			args := tc.args
			if tc.body != "" {
				args = append(args, "--config", writeConfig(t, tc.body))
			}
			_, err := Load(requestFlags(t, args...))
			require.Error(t, err)
			assert.True(t, Error.Has(err))
		})
	}
}
