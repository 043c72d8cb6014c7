package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/config"
)

// Version is the software version, reported as "dreq api version" in
// output headers. Release builds set it with -ldflags "-X ...cmd.Version=".
var Version = "1.2.0-dev"

// app carries the state shared by subcommands once flags are parsed.
type app struct {
	cfg config.Config
	log *zap.Logger
}

// NewRootCommand builds the dreq command tree writing results to stdout and
// logs and summaries to stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{cfg: config.Default(), log: zap.NewNop()}
	rc := &cobra.Command{
		Use:   "dreq",
		Short: "Consolidate and query the CMIP7 data request",
		Long: `dreq consolidates an export of the CMIP7 data request into a single set of
tables and answers questions about it: which variables each experiment must
produce for a set of opportunities, and the CMOR metadata of each variable.

Settings come from flags, DREQ_* environment variables and ./dreq.yaml.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = newLogger(cfg.Level(), stderr)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.log.Sync()
		},
	}
	config.RegisterGlobalFlags(rc.PersistentFlags())
	rc.SetOut(stdout)
	rc.SetErr(stderr)

	rc.AddCommand(
		a.consolidateCommand(),
		a.requestCommand(),
		a.metadataCommand(),
		a.selectCommand(),
		a.serveCommand(),
		versionCommand(),
	)
	return rc
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newLogger logs human-readable lines to w. Debug level adds caller
// information.
func newLogger(level zapcore.Level, w io.Writer) *zap.Logger {
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), level)
	if level == zapcore.DebugLevel {
		return zap.New(core, zap.AddCaller())
	}
	return zap.New(core)
}
