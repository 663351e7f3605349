package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tablescope/tablescope/pkg/lineage"
)

// lineageCommand creates the "lineage" command: fetch lineage for a table
// and print or save the working graph.
func (c *CLI) lineageCommand() *cobra.Command {
	var (
		entityType string
		upDepth    int
		downDepth  int
		output     string
		noCache    bool
	)

	cmd := &cobra.Command{
		Use:   "lineage <fqn>",
		Short: "Fetch table lineage from the catalog",
		Long: `Fetch upstream and downstream lineage for a table and print graph
statistics. With -o, the working graph is written as JSON for later
rendering or exploration.

Examples:
  tablescope lineage warehouse.sales.db.orders
  tablescope lineage warehouse.sales.db.orders --upstream-depth 3 -o orders.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			fqn := args[0]

			backend := c.newCacheBackend(ctx, noCache)
			defer backend.Close()
			gateway, err := c.newGateway(backend)
			if err != nil {
				return err
			}

			progress := newProgress(c.Logger)
			spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Fetching lineage for %s", fqn))
			spinner.Start()

			session, err := lineage.OpenSession(ctx, fqn, lineage.SessionConfig{
				Gateway:         gateway,
				Logger:          c.Logger,
				EntityType:      entityType,
				UpstreamDepth:   upDepth,
				DownstreamDepth: downDepth,
			})
			if err != nil {
				spinner.StopWithError(fmt.Sprintf("Fetch failed: %v", err))
				return err
			}
			defer session.Close()

			entities, edges := session.Stats()
			spinner.StopWithSuccess(fmt.Sprintf("Fetched lineage for %s", StyleHighlight.Render(fqn)))
			printStats(entities, edges, false)
			progress.done(fmt.Sprintf("Resolved %d entities", entities))

			if output != "" {
				if err := lineage.WriteGraphFile(session.ExportGraph(), output); err != nil {
					return err
				}
				printFile(output)
				printNextStep("Render it", fmt.Sprintf("tablescope render %s", output))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&entityType, "type", "t", "table", "catalog entity type")
	cmd.Flags().IntVar(&upDepth, "upstream-depth", lineage.DefaultUpstreamDepth, "upstream traversal depth")
	cmd.Flags().IntVar(&downDepth, "downstream-depth", lineage.DefaultDownstreamDepth, "downstream traversal depth")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the working graph as JSON")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the response cache")
	return cmd
}
