// Package config gathers the settings of a dreq run from command-line flags,
// DREQ_* environment variables and an optional dreq.yaml file, in that
// priority order. Engines never read configuration themselves; commands pass
// the relevant fields explicitly.
package config

import (
	"errors"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/zeebo/errs"
	"go.uber.org/zap/zapcore"

	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/metadata"
	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/query"
)

// Error is the class of configuration errors.
var Error = errs.Class("config")

// EnvPrefix prefixes environment overrides, e.g. DREQ_LOG_LEVEL.
const EnvPrefix = "DREQ"

// FileName is the base name of the optional configuration file.
const FileName = "dreq"

// Keys double as flag names.
const (
	KeyConfig        = "config"
	KeyLogLevel      = "log-level"
	KeyVersion       = "dreq-version"
	KeyExport        = "export"
	KeyMapping       = "mapping"
	KeyCache         = "cache"
	KeyOpportunities = "opportunities"
	KeyPriority      = "priority-cutoff"
	KeyCheckCore     = "check-core"
	KeyOutput        = "output"
	KeyCompoundNames = "compound-names"
	KeyCMORTables    = "cmor-tables"
	KeyCMORVariables = "cmor-variables"
)

var fileKeys = []string{
	KeyLogLevel, KeyVersion, KeyExport, KeyMapping, KeyCache,
	KeyOpportunities, KeyPriority, KeyCheckCore, KeyOutput,
	KeyCompoundNames, KeyCMORTables, KeyCMORVariables,
}

// Config holds every setting a command may need.
type Config struct {
	LogLevel string
	// Version is the content version requested; empty lets a unified
	// export supply its own.
	Version string
	// Export is the path of the raw export JSON.
	Export string
	// Mapping is an alternative mapping spec file; empty uses the embedded one.
	Mapping string
	// Cache is a SQLite file holding the consolidated export.
	Cache string

	Opportunities []string
	Priority      string
	CheckCore     bool
	Output        string

	CompoundNames []string
	CMORTables    []string
	CMORVariables []string
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		LogLevel:      "info",
		Opportunities: []string{query.AllKeyword},
		Priority:      query.Low,
		CheckCore:     true,
	}
}

// RegisterGlobalFlags adds the flags shared by every command.
func RegisterGlobalFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.StringP(KeyConfig, "c", "", "configuration file (default ./dreq.yaml when present)")
	flags.String(KeyLogLevel, d.LogLevel, "log level: debug, info, warn or error")
	flags.String(KeyVersion, d.Version, "data request content version, e.g. v1.2")
	flags.StringP(KeyExport, "e", d.Export, "path to the raw export JSON")
	flags.String(KeyMapping, d.Mapping, "mapping spec file (default embedded)")
	flags.String(KeyCache, d.Cache, "SQLite file caching the consolidated export")
}

// RegisterRequestFlags adds the flags of requested-variable queries.
func RegisterRequestFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.StringSliceP(KeyOpportunities, "p", d.Opportunities, `opportunity titles, or "all"`)
	flags.String(KeyPriority, d.Priority, "lowest priority level to include")
	flags.Bool(KeyCheckCore, d.CheckCore, "require every experiment to request the same Core variables")
	flags.StringP(KeyOutput, "o", d.Output, "output file (default stdout)")
}

// RegisterMetadataFlags adds the flags of variable metadata queries.
func RegisterMetadataFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.StringSlice(KeyCompoundNames, nil, "only these compound names, e.g. Amon.tas")
	flags.StringSlice(KeyCMORTables, nil, "only these CMOR tables, e.g. Amon")
	flags.StringSlice(KeyCMORVariables, nil, "only these CMOR variable names, e.g. tas")
	flags.StringP(KeyOutput, "o", d.Output, "output file: .json, .csv or .xlsx (default JSON on stdout)")
}

// Load resolves the configuration for flags, which must already be parsed.
func Load(flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	d := Default()
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyOpportunities, d.Opportunities)
	v.SetDefault(KeyPriority, d.Priority)
	v.SetDefault(KeyCheckCore, d.CheckCore)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, Error.Wrap(err)
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if err := readFile(v, v.GetString(KeyConfig)); err != nil {
		return Config{}, err
	}

	cfg := Config{
		LogLevel:      v.GetString(KeyLogLevel),
		Version:       strings.TrimSpace(v.GetString(KeyVersion)),
		Export:        v.GetString(KeyExport),
		Mapping:       v.GetString(KeyMapping),
		Cache:         v.GetString(KeyCache),
		Opportunities: list(v, KeyOpportunities),
		Priority:      v.GetString(KeyPriority),
		CheckCore:     v.GetBool(KeyCheckCore),
		Output:        v.GetString(KeyOutput),
		CompoundNames: list(v, KeyCompoundNames),
		CMORTables:    list(v, KeyCMORTables),
		CMORVariables: list(v, KeyCMORVariables),
	}
	return cfg, cfg.Validate()
}

func readFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return Error.New("reading configuration file %q: %v", path, err)
	}
	for _, key := range v.AllKeys() {
		if v.InConfig(key) && !slices.Contains(fileKeys, key) {
			return Error.New("invalid option in configuration file: %v", key)
		}
	}
	return nil
}

// list reads a string list that may come from a YAML sequence, a flag, or a
// comma-separated environment value. Titles may contain spaces, so strings
// are only split on commas.
func list(v *viper.Viper, key string) []string {
	var raw []string
	switch val := v.Get(key).(type) {
	case nil:
		return nil
	case []string:
		raw = val
	case []any:
		for _, item := range val {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	case string:
		raw = strings.Split(val, ",")
	default:
		raw = v.GetStringSlice(key)
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks values that have a fixed vocabulary.
func (c Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return Error.New("invalid log level %q", c.LogLevel)
	}
	if _, err := query.PriorityLevelsUpTo(c.Priority); err != nil {
		return Error.Wrap(err)
	}
	return nil
}

// Level returns the configured log level.
func (c Config) Level() zapcore.Level {
	l, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// Selector returns the opportunity selection.
func (c Config) Selector() query.Selector { return query.ParseSelector(c.Opportunities) }

// MetadataOptions returns the variable metadata filters.
func (c Config) MetadataOptions() metadata.Options {
	return metadata.Options{
		CompoundNames: c.CompoundNames,
		CMORTables:    c.CMORTables,
		CMORVariables: c.CMORVariables,
	}
}
