package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/config"
	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/query"
	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/report"
)

func (a *app) requestCommand() *cobra.Command {
	var listOnly bool
	c := &cobra.Command{
		Use:   "request",
		Short: "List the variables requested from each experiment",
		Long: `List the variables requested from each experiment by the selected
opportunities. A variable requested at several priority levels is kept at the
highest one. Only levels at or above --priority-cutoff are considered.`,
		Example: `  dreq request -e dreq_release_export.json -p all
  dreq request -e export.json --dreq-version v1.2 -p "Ocean heat" -p Clouds --priority-cutoff high -o requested.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			set, prov, err := a.loadSet()
			if err != nil {
				return err
			}
			e, err := query.NewEngine(set, query.Context{Version: set.Version, Log: a.log})
			if err != nil {
				return err
			}

			if listOnly {
				for _, title := range e.Opportunities() {
					fmt.Fprintln(cmd.OutOrStdout(), title)
				}
				return nil
			}

			sel := a.cfg.Selector()
			res, err := e.RequestedVariables(sel, a.cfg.Priority, a.cfg.CheckCore)
			if err != nil {
				return err
			}
			if res.Empty() {
				a.log.Warn(res.Message(), zap.Stringer("opportunities", sel))
				fmt.Fprintln(cmd.ErrOrStderr(), res.Message())
				return nil
			}
			if err := report.WriteSummary(cmd.ErrOrStderr(), res); err != nil {
				return err
			}

			if a.cfg.Output == "" {
				return report.WriteRequested(cmd.OutOrStdout(), res, prov)
			}
			if err := report.WriteRequestedFile(a.cfg.Output, res, prov); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote requested variables to %s\n", a.cfg.Output)
			return nil
		},
	}
	config.RegisterRequestFlags(c.Flags())
	c.Flags().BoolVar(&listOnly, "list-opportunities", false, "only list the opportunity titles")
	return c
}
