package cmd

import (
	"errors"
	"fmt"

	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/export"
)

func (a *app) selectCommand() *cobra.Command {
	var consolidated bool
	c := &cobra.Command{
		Use:   "select <jsonpath>",
		Short: "Evaluate a JSONPath expression against an export",
		Example: `  dreq select -e export.json '$["Data Request Opportunities (Public)"].Opportunity.records.*["Title of opportunity"]'
  dreq select -e export.json --dreq-version v1.2 --consolidated '$.*.Variables.records.*["CMIP6 Compound Name"]'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var src any
			if consolidated {
				u, _, err := a.loadUnified()
				if err != nil {
					return err
				}
				src = u.Content()
			} else {
				if a.cfg.Export == "" {
					return errors.New("no export to select from: set --export")
				}
				content, err := export.Load(a.cfg.Export)
				if err != nil {
					return err
				}
				src = content
			}

			doc, err := export.Generic(src)
			if err != nil {
				return err
			}
			results, err := export.Select(doc, args[0])
			if err != nil {
				return err
			}
			for _, r := range results {
				fmt.Fprintln(cmd.OutOrStdout(), oj.JSON(r, &ojg.Options{Sort: true}))
			}
			return nil
		},
	}
	c.Flags().BoolVar(&consolidated, "consolidated", false, "select from the consolidated export")
	return c
}
