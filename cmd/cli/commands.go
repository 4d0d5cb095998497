package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/acoyfellow/tax-agent/internal/migrate"
	"github.com/acoyfellow/tax-agent/internal/model"
	"github.com/acoyfellow/tax-agent/internal/service"
	"github.com/acoyfellow/tax-agent/internal/tracker"
)

func loadRequests(cmd *cobra.Command, path string) ([]model.FilingRequest, error) {
	data, err := readAll(cmd.InOrStdin(), path)
	if err != nil {
		return nil, err
	}
	return parseFixture(data)
}

func validateCmd(a *app) *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate one request or a batch from a YAML/JSON fixture (- for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, err := loadRequests(cmd, args[0])
			if err != nil {
				return err
			}

			var svc service.FilingService
			if offline {
				svc = a.offlineService()
			} else {
				s, err := a.service(cmd.Context())
				if err != nil {
					return err
				}
				svc = s
			}

			if len(reqs) == 1 {
				return printJSON(cmd.OutOrStdout(), svc.Validate(cmd.Context(), reqs[0]))
			}
			res, err := svc.ValidateBatch(cmd.Context(), reqs)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "structural checks only; no reviewer, provider or database")
	return cmd
}

func fileCmd(a *app) *cobra.Command {
	var batch bool
	cmd := &cobra.Command{
		Use:   "file FILE",
		Short: "Validate and file requests with the provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, err := loadRequests(cmd, args[0])
			if err != nil {
				return err
			}
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}

			if batch {
				res, err := svc.FileBatch(cmd.Context(), reqs)
				if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
					return perr
				}
				return err
			}

			if len(reqs) != 1 {
				return fmt.Errorf("fixture holds %d requests; use --batch", len(reqs))
			}
			res, err := svc.File(cmd.Context(), reqs[0])
			if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
				return perr
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&batch, "batch", false, "file every request in one submission")
	return cmd
}

func transmitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "transmit SUBMISSION_ID",
		Short: "Transmit a created submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			st, err := svc.Transmit(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"id": args[0], "status": st})
		},
	}
}

func statusCmd(a *app) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "status SUBMISSION_ID",
		Short: "Show a tracked submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				sub *model.Submission
				err error
			)
			if refresh {
				svc, serr := a.service(cmd.Context())
				if serr != nil {
					return serr
				}
				sub, err = svc.RefreshStatus(cmd.Context(), args[0])
			} else {
				tr, terr := a.tracker(cmd.Context())
				if terr != nil {
					return terr
				}
				sub, err = tr.GetSubmission(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sub)
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "pull the provider's current status first")
	return cmd
}

func submissionsCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "submissions",
		Short: "List tracked submissions, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tr, err := a.tracker(cmd.Context())
			if err != nil {
				return err
			}
			subs, err := tr.ListSubmissions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), subs)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", tracker.DefaultListLimit, fmt.Sprintf("maximum rows (capped at %d)", tracker.MaxListLimit))
	return cmd
}

func migrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|down|version]",
		Short:     "Apply, roll back or inspect schema migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			dir := "up"
			if len(args) == 1 {
				dir = args[0]
			}
			ctx := cmd.Context()
			switch dir {
			case "up":
				err = migrate.Up(ctx, cfg.Database.DSN)
			case "down":
				err = migrate.Down(ctx, cfg.Database.DSN)
			}
			if err != nil {
				return err
			}
			v, err := migrate.Version(ctx, cfg.Database.DSN)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
			return nil
		},
	}
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "taxagent %s (built %s)\n", version, buildDate)
		},
	}
}
