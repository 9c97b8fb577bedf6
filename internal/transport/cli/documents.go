package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	appsvc "docchat/internal/app"
	"docchat/internal/bootstrap"
)

func newIngestCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file.pdf>...",
		Short: "Convert PDFs into corpus documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				out := cmd.OutOrStdout()
				for _, path := range args {
					result, err := ingestFile(ctx, app, path)
					if err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
					size := "0 B"
					if doc, err := app.Documents.Get(result.Document); err == nil {
						size = humanize.Bytes(uint64(len(doc.Content)))
					}
					fmt.Fprintf(out, "%s (%s of text)\n", result.Message, size)
				}
				return nil
			})
		},
	}
}

func ingestFile(ctx context.Context, app *bootstrap.App, path string) (*appsvc.UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return app.DocumentService.Upload(ctx, appsvc.UploadInput{FileName: filepath.Base(path), Data: f})
}

func newDocsCmd(opts *options) *cobra.Command {
	var (
		cursor string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "List corpus documents in name order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				page, err := app.DocumentService.ListDocuments(cursor, limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(page.Documents) == 0 {
					fmt.Fprintln(out, "No documents found.")
					return nil
				}
				for _, name := range page.Documents {
					doc, err := app.Documents.Get(name)
					if err != nil {
						fmt.Fprintf(out, "%s\t(unreadable)\n", name)
						continue
					}
					fmt.Fprintf(out, "%s\t%s\n", name, humanize.Bytes(uint64(len(doc.Content))))
				}
				if page.NextCursor != nil {
					fmt.Fprintf(out, "\nnext cursor: %s\n", *page.NextCursor)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&cursor, "cursor", "", "Continue after this document name")
	cmd.Flags().IntVar(&limit, "limit", 0, "Page size (0 uses the configured default)")
	return cmd
}

func newRemoveDocCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rm-doc <name.md>",
		Short: "Remove a document from the corpus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				if err := app.DocumentService.RemoveDocument(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s removed.\n", args[0])
				return nil
			})
		},
	}
}
