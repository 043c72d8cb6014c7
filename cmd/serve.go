package cmd

import (
	"github.com/spf13/cobra"

	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/mcpserve"
)

func (a *app) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve data request queries as MCP tools on stdio",
		Long: `Serve the list_opportunities, requested_variables and variable_metadata
tools over the Model Context Protocol on stdin and stdout. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			set, prov, err := a.loadSet()
			if err != nil {
				return err
			}
			return mcpserve.New(set, mcpserve.Options{
				Name:       "dreq",
				Version:    Version,
				Provenance: prov,
				Log:        a.log,
			}).ServeStdio()
		},
	}
}
