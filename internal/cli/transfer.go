package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mxyns/ietf-rfc-dep/internal/store"
)

// NewExportCommand creates the export command.
func NewExportCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Write the cache to a JSON file",
		Long: `Write every cached document, with its flags and reference tags, to a
JSON file keyed by id. The file is replaced atomically.

Example:
  rfcdep export cache.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, opts, cmd)
			if err != nil {
				return err
			}
			defer s.close()

			if err := store.ExportJSON(args[0], s.engine.Cache()); err != nil {
				return WrapExitError(ExitCommandError, "failed to export", err)
			}
			n := s.engine.Cache().Len()
			return s.succeed(map[string]any{"path": args[0], "documents": n}, func(w io.Writer) {
				fmt.Fprintf(w, "Exported %d documents to %s\n", n, args[0])
			})
		},
	}
}

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Replace bool
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Load documents from a JSON export",
		Long: `Load documents from a file written by export.

By default the documents are merged into the cache, replacing cached
documents with the same id. With --replace the cache is discarded first.
References are retagged against the resulting cache either way.

Example:
  rfcdep import cache.json
  rfcdep import --replace cache.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, opts.RootOptions, cmd)
			if err != nil {
				return err
			}
			defer s.close()

			loaded, err := store.ImportJSON(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to import", err)
			}
			n := loaded.Len()
			if opts.Replace {
				if err := s.engine.Replace(loaded, true); err != nil {
					return s.fail(ExitFailure, "failed to import", err)
				}
			} else {
				s.engine.Merge(loaded)
			}
			if err := s.save(ctx); err != nil {
				return err
			}
			total := s.engine.Cache().Len()
			return s.succeed(map[string]int{"imported": n, "documents": total}, func(w io.Writer) {
				fmt.Fprintf(w, "Imported %d documents (%d cached)\n", n, total)
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Replace, "replace", false, "discard the cache before importing")

	return cmd
}

// LookupOptions holds flags for the lookup command.
type LookupOptions struct {
	*RootOptions
	Add bool
}

// NewLookupCommand creates the lookup command.
func NewLookupCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LookupOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "lookup <title>",
		Short: "Search the registry by title",
		Long: `Search the registry for documents whose title contains the query,
ignoring case. The result limit and whether drafts are included come from
the query section of the settings.

Example:
  rfcdep lookup "IPv6 Specification"
  rfcdep lookup --add "IPv6 Specification"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, opts.RootOptions, cmd)
			if err != nil {
				return err
			}
			defer s.close()

			summaries, err := s.engine.Lookup(ctx, args[0])
			if err != nil {
				return s.fail(ExitFailure, "failed to look up", err)
			}
			if opts.Add {
				for _, sum := range summaries {
					if _, err := s.engine.ImportByID(ctx, sum.ID); err != nil {
						return s.fail(ExitFailure, "failed to add documents", err)
					}
				}
				if err := s.save(ctx); err != nil {
					return err
				}
			}
			return s.succeed(summaries, func(w io.Writer) {
				if len(summaries) == 0 {
					fmt.Fprintln(w, "No match.")
					return
				}
				for _, sum := range summaries {
					fmt.Fprintf(w, "%s\t%s\n", sum.ID, sum.Title)
				}
				if opts.Add {
					fmt.Fprintf(w, "Added %d documents\n", len(summaries))
				}
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Add, "add", false, "add every match to the cache")

	return cmd
}
