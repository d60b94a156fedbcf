package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/domain"
	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/pathmap"
	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/planner"
	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/repoclient"
	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/service"
)

type planFlags struct {
	manifest    string
	repo        string
	branch      string
	authorName  string
	authorEmail string
	maxDiff     int
}

func (f *planFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.manifest, "manifest", "m", "", "YAML manifest with site_url, layout and targets")
	cmd.Flags().StringVar(&f.repo, "repo", "", "local git checkout holding the current site source")
	cmd.Flags().StringVar(&f.branch, "branch", "", "branch the checkout must be on")
	cmd.Flags().StringVar(&f.authorName, "author-name", "content-writeback", "commit author name")
	cmd.Flags().StringVar(&f.authorEmail, "author-email", "writeback@localhost", "commit author email")
	cmd.Flags().IntVar(&f.maxDiff, "max-diff-bytes", 0, "bound on each rendered diff, 0 for the default")
	_ = cmd.MarkFlagRequired("manifest")
}

func (f *planFlags) factory() *repoclient.Factory {
	return &repoclient.Factory{Local: repoclient.LocalConfig{AuthorName: f.authorName, AuthorEmail: f.authorEmail}}
}

func (f *planFlags) destination() *domain.DestinationRepository {
	if f.repo == "" {
		return nil
	}
	return &domain.DestinationRepository{Provider: domain.ProviderLocal, LocalPath: f.repo, Branch: f.branch}
}

// planManifest plans the manifest's targets against the checkout named by the flags
func planManifest(ctx context.Context, opts *rootOptions, f *planFlags) (*manifest, planner.Result, error) {
	m, err := loadManifest(f.manifest)
	if err != nil {
		return nil, planner.Result{}, err
	}

	layouts, err := pathmap.LoadLayouts(opts.layoutFile)
	if err != nil {
		return nil, planner.Result{}, err
	}
	name, routes := m.layout(opts)

	plans := service.NewPlanService(layouts, f.factory(), 0, f.maxDiff, nil)
	res, err := plans.Plan(ctx, &service.PlanRequest{
		Targets:     m.targets(),
		Layout:      name,
		Routes:      routes,
		Destination: f.destination(),
	})
	if err != nil {
		return nil, planner.Result{}, err
	}
	return m, res, nil
}

func newPlanCmd(opts *rootOptions) *cobra.Command {
	f := &planFlags{}
	var out string
	var noDiff bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the file changes a manifest would make, without writing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, res, err := planManifest(cmd.Context(), opts, f)
			if err != nil {
				return err
			}

			printPlan(cmd.OutOrStdout(), cmd.ErrOrStderr(), res, !noDiff)

			if out != "" {
				data, err := json.MarshalIndent(res, "", "  ")
				if err != nil {
					return runtimeError{err}
				}
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return runtimeError{fmt.Errorf("write plan: %w", err)}
				}
			}
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the plan as JSON to this file")
	cmd.Flags().BoolVar(&noDiff, "no-diff", false, "print the summary only")
	return cmd
}

func printPlan(out, errOut io.Writer, res planner.Result, withDiff bool) {
	for i, c := range res.PlannedChanges {
		p := res.DiffPreviews[i]
		fmt.Fprintf(out, "%-7s %s (+%d -%d)\n", c.Action, c.DestinationPath, p.LinesAdded, p.LinesRemoved)
		for _, note := range c.ReviewNotes {
			fmt.Fprintf(out, "        note: %s\n", note)
		}
		if withDiff && p.RenderedDiff != "" {
			fmt.Fprint(out, p.RenderedDiff)
			if p.WasTruncated {
				fmt.Fprintln(out, "... diff truncated")
			}
		}
	}

	for _, pe := range res.PathErrors {
		fmt.Fprintf(errOut, "skipped %s: %s %s\n", pe.URL, pe.Reason, pe.Detail)
	}
	for _, be := range res.BlockErrors {
		fmt.Fprintf(errOut, "skipped %s: %s\n", be.URL, be.Message)
	}
}
