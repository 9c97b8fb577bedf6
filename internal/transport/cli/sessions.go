package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"docchat/internal/bootstrap"
)

const previewLen = 80

func newSessionsCmd(opts *options) *cobra.Command {
	var (
		cursor string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List conversations, most recently active first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				page, err := app.ChatService.ListSessions(ctx, cursor, limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(page.Sessions) == 0 {
					fmt.Fprintln(out, "No sessions found.")
					return nil
				}
				for _, s := range page.Sessions {
					fmt.Fprintf(out, "%s\t%s\n", s.SessionID, humanize.Time(s.LastUpdated))
				}
				if page.NextCursor != nil {
					fmt.Fprintf(out, "\nnext cursor: %s\n", *page.NextCursor)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&cursor, "cursor", "", "Cursor returned by a previous page")
	cmd.Flags().IntVar(&limit, "limit", 0, "Page size (0 uses the configured default)")
	return cmd
}

func newHistoryCmd(opts *options) *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "history <session-id>",
		Short: "Print a conversation in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				turns, err := app.ChatService.History(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(turns) == 0 {
					fmt.Fprintf(out, "Session %s has no messages.\n", args[0])
					return nil
				}
				for _, turn := range turns {
					content := turn.Content
					if !full {
						content = preview(content, previewLen)
					}
					fmt.Fprintf(out, "[%s] %s\n", turn.Role, content)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "Print messages without shortening")
	return cmd
}

func newRemoveSessionCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rm-session <session-id>",
		Short: "Delete every message of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				if err := app.ChatService.DeleteSession(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Session %s removed.\n", args[0])
				return nil
			})
		},
	}
}

// preview flattens whitespace and shortens long messages for listing.
func preview(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
