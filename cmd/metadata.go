package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/config"
	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/metadata"
	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/query"
	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/report"
)

func (a *app) metadataCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "metadata",
		Short: "Write the CMOR metadata of data request variables",
		Example: `  dreq metadata -e dreq_release_export.json -o all_var_info.json
  dreq metadata -e dreq_release_export.json --cmor-tables Amon,Omon -o vars.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			set, prov, err := a.loadSet()
			if err != nil {
				return err
			}
			cat, err := metadata.Resolve(set, query.Context{Version: set.Version, Log: a.log}, a.cfg.MetadataOptions())
			if err != nil {
				return err
			}
			if a.cfg.Output == "" {
				return report.WriteMetadataJSON(cmd.OutOrStdout(), cat, prov)
			}
			if err := report.WriteMetadataFile(a.cfg.Output, cat, prov); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s for %d variables, dreq version = %s\n", a.cfg.Output, cat.Len(), cat.Version)
			return nil
		},
	}
	config.RegisterMetadataFlags(c.Flags())
	return c
}
