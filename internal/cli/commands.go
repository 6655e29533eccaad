package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"animevote/contexts/anime-voting/voting-engine/domain/entities"
	httptransport "animevote/contexts/anime-voting/voting-engine/transport/http"
	"animevote/internal/platform/httpserver"

	"github.com/spf13/cobra"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the schema for the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Opening a runtime migrates the store.
			runtime, err := opts.openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer runtime.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %s store\n", runtime.Driver())
			return nil
		},
	}
}

func newSessionsCommand(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List public voting sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runtime, err := opts.openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer runtime.Close()

			resp, err := runtime.Module.Handler.ListPublicSessionsHandler(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing sessions: %w", err)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			return printSessions(cmd, resp)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the listing as JSON")
	return cmd
}

func printSessions(cmd *cobra.Command, resp httptransport.SessionListResponse) error {
	if resp.Count == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no public sessions")
		return nil
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tMASTER\tITEMS\tCREATED")
	for _, session := range resp.Sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			session.SessionID, session.Title, session.MasterID, len(session.BangumiIDs), session.CreatedAt)
	}
	return w.Flush()
}

func newStatsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <session-id>",
		Short: "Print aggregated results for a session as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runtime, err := opts.openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer runtime.Close()

			resp, err := runtime.Module.Handler.SessionResultsHandler(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("computing stats: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), resp)
		},
	}
}

func newGradesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "grades",
		Short: "Print the grade table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "LEVEL\tSCORE\tLABEL")
			for _, grade := range entities.Grades() {
				fmt.Fprintf(w, "%s\t%d\t%s\n", grade.Level, grade.Score, grade.Label)
			}
			return w.Flush()
		},
	}
}

func newTokenCommand() *cobra.Command {
	var (
		secret string
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Sign a bearer token for local testing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(secret) == "" {
				cfg, err := (&rootOptions{}).loadConfig()
				if err != nil {
					return err
				}
				secret = cfg.JWTSecret
			}
			token, err := httpserver.IssueToken(secret, args[0], entities.ParseRole(role), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "Signing secret (defaults to JWT_SECRET)")
	cmd.Flags().StringVar(&role, "role", string(entities.RoleUser), "Role claim (admin, user, guest)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	return cmd
}
