package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/pathmap"
)

func newResolveCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "resolve URL...",
		Short: "Print the destination file each URL maps to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			layouts, err := pathmap.LoadLayouts(opts.layoutFile)
			if err != nil {
				return err
			}
			name := opts.layout
			if name == "" {
				name = "static"
			}
			layout, err := layouts.Lookup(name, pathmap.RouteStrategy(opts.routes))
			if err != nil {
				return err
			}

			batch, err := pathmap.ResolveBatch(args, layout)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(batch)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, m := range batch.Mappings {
				fmt.Fprintf(tw, "%s\t%s\n", m.SourceURL, m.DestinationPath)
			}
			for _, f := range batch.Failures {
				fmt.Fprintf(tw, "%s\tERROR %s %s\n", f.URL, f.Reason, f.Detail)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if len(batch.Failures) > 0 {
				return runtimeError{fmt.Errorf("%d url(s) could not be resolved", len(batch.Failures))}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the batch result as JSON")
	return cmd
}
