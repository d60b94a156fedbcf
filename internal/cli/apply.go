package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/domain"
	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/pathmap"
	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/repository"
	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/service"
)

func newApplyCmd(opts *rootOptions) *cobra.Command {
	f := &planFlags{}
	var yes bool

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Plan a manifest and commit the changes into a local git checkout",
		Long: "apply runs the same review lifecycle as the service: the plan becomes a session, " +
			"the session is approved and then applied, one commit per changed file. " +
			"Without --yes only the plan is printed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.repo == "" {
				return fmt.Errorf("--repo is required")
			}

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			m, res, err := planManifest(ctx, opts, f)
			if err != nil {
				return err
			}
			printPlan(out, cmd.ErrOrStderr(), res, !yes)

			if !hasWrites(res.PlannedChanges) {
				fmt.Fprintln(out, "nothing to apply")
				return nil
			}
			if !yes {
				fmt.Fprintln(out, "re-run with --yes to commit these changes")
				return nil
			}

			targetPaths := make([]string, 0, len(m.Targets))
			for _, t := range m.Targets {
				if p, err := pathmap.NormalizePath(t.URL); err == nil {
					targetPaths = append(targetPaths, p)
				}
			}

			reviews := service.NewReviewService(repository.NewMemoryStore(), f.factory())
			session, err := reviews.Create(ctx, &domain.CreateSessionRequest{
				SiteURL:        m.SiteURL,
				TargetPaths:    targetPaths,
				PlannedChanges: res.PlannedChanges,
				DiffPreviews:   res.DiffPreviews,
				Destination:    *f.destination(),
			})
			if err != nil {
				return err
			}
			if _, err := reviews.Approve(ctx, session.ID); err != nil {
				return runtimeError{err}
			}

			applied, err := reviews.Apply(ctx, session.ID)
			if err != nil {
				return runtimeError{err}
			}

			for _, file := range applied.Files {
				if file.Skipped {
					fmt.Fprintf(out, "unchanged %s\n", file.Path)
					continue
				}
				fmt.Fprintf(out, "committed %s %s\n", shortHash(file.CommitID), file.Path)
			}
			fmt.Fprintf(out, "%d commit(s): %s\n", len(applied.CommitIDs), strings.Join(applied.CommitIDs, " "))
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "commit without further confirmation")
	return cmd
}

func hasWrites(changes []domain.PlannedFileChange) bool {
	for _, c := range changes {
		if c.Action != domain.ActionNoOp {
			return true
		}
	}
	return false
}

func shortHash(id string) string {
	if len(id) > 10 {
		return id[:10]
	}
	return id
}
