package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/config"
	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/export"
	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/store"
)

func (a *app) consolidateCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "consolidate",
		Short: "Merge an export into one set of tables",
		Long: `Merge a partitioned export into a single set of tables, or apply
version-consistency fixes to a release export.

The result is written as a release-style JSON export (default stdout) or, for
an output path ending in .db or .sqlite, as a SQLite cache usable with --cache.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, _, err := a.loadUnified()
			if err != nil {
				return err
			}
			out := a.cfg.Output
			switch strings.ToLower(filepath.Ext(out)) {
			case ".db", ".sqlite":
				if err := store.Save(out, u); err != nil {
					return err
				}
			case "":
				return writeRelease(cmd.OutOrStdout(), u)
			default:
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				if err := writeRelease(f, u); err != nil {
					_ = f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
			}
			a.log.Info("wrote consolidated export", zap.String("path", out), zap.String("version", u.Version))
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s (%d tables, version %s)\n", out, u.Base.Len(), u.Version)
			return nil
		},
	}
	c.Flags().StringP(config.KeyOutput, "o", "", "output file: .json, .db or .sqlite (default JSON on stdout)")
	return c
}

func writeRelease(w io.Writer, u *export.Unified) error {
	data, err := json.Marshal(u.Content())
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "    "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err = buf.WriteTo(w)
	return err
}
