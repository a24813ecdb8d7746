package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mxyns/ietf-rfc-dep/internal/doc"
	"github.com/mxyns/ietf-rfc-dep/internal/engine"
)

// DocumentView is the output form of a cached document.
type DocumentView struct {
	ID          string         `json:"id"`
	Revision    string         `json:"revision"`
	Title       string         `json:"title"`
	IsRFC       bool           `json:"is_rfc"`
	URL         string         `json:"url"`
	MissingDeps int            `json:"missing_deps"`
	IsRead      bool           `json:"is_read"`
	IsSelected  bool           `json:"is_selected"`
	Relations   []RelationView `json:"relations,omitempty"`
}

// RelationView is one relation of a DocumentView. List relations fill
// References; the others fill Name.
type RelationView struct {
	Kind       doc.Kind `json:"kind"`
	References []string `json:"references,omitempty"`
	Name       string   `json:"name,omitempty"`
}

func newDocumentView(st *doc.State, withRelations bool) DocumentView {
	s := st.Doc.Summary
	v := DocumentView{
		ID:          s.ID,
		Revision:    s.Revision,
		Title:       s.Title,
		IsRFC:       s.IsRFC,
		URL:         s.URL.HTML,
		MissingDeps: st.MissingDeps,
		IsRead:      st.IsRead,
		IsSelected:  st.IsSelected,
	}
	if !withRelations {
		return v
	}
	for _, m := range st.Doc.Meta {
		rel := RelationView{Kind: m.Kind, Name: m.Name}
		for _, ref := range m.Refs {
			rel.References = append(rel.References, ref.String())
		}
		v.Relations = append(v.Relations, rel)
	}
	return v
}

func renderTable(w io.Writer, views []DocumentView) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tREV\tMISSING\tFLAGS\tTITLE")
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", v.ID, v.Revision, v.MissingDeps, flags(v), v.Title)
	}
	tw.Flush()
}

func flags(v DocumentView) string {
	f := []byte("--")
	if v.IsRead {
		f[0] = 'r'
	}
	if v.IsSelected {
		f[1] = 's'
	}
	return string(f)
}

// NewAddCommand creates the add command.
func NewAddCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <name>...",
		Short: "Fetch documents from the registry and cache them",
		Long: `Fetch documents by name from the registry and add them to the cache.

Names are normalised, so "RFC 8200" and "rfc8200" are the same document.
A document already cached is replaced by the registry version.

Example:
  rfcdep add "RFC 8200" draft-ietf-6man-rfc2460bis`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, opts, cmd)
			if err != nil {
				return err
			}
			defer s.close()

			var added []DocumentView
			var firstErr error
			for _, name := range args {
				st, err := s.engine.ImportByID(ctx, name)
				if err != nil {
					if firstErr == nil {
						firstErr = err
					}
					continue
				}
				added = append(added, newDocumentView(st, false))
			}
			if err := s.save(ctx); err != nil {
				return err
			}
			if firstErr != nil {
				return s.fail(ExitFailure, "failed to add documents", firstErr)
			}
			return s.succeed(added, func(w io.Writer) {
				for _, v := range added {
					fmt.Fprintf(w, "Added %s (%d missing dependencies)\n", v.ID, v.MissingDeps)
				}
			})
		},
	}
}

// ListOptions holds flags for the ls command.
type ListOptions struct {
	*RootOptions
	Incomplete bool
	Selected   bool
}

// NewListCommand creates the ls command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List cached documents",
		Long: `List cached documents in id order.

FLAGS shows r for read documents and s for selected ones.

Example:
  rfcdep ls --incomplete`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, opts.RootOptions, cmd)
			if err != nil {
				return err
			}
			defer s.close()

			var ids []string
			if opts.Incomplete {
				// Read from the index so the listing matches what is stored.
				ids, err = s.store.Incomplete(ctx)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to query database", err)
				}
			} else {
				ids = s.engine.Cache().Keys()
			}

			views := []DocumentView{}
			for _, id := range ids {
				st, ok := s.engine.Get(id)
				if !ok || (opts.Selected && !st.IsSelected) {
					continue
				}
				views = append(views, newDocumentView(st, false))
			}
			return s.succeed(views, func(w io.Writer) {
				if len(views) == 0 {
					fmt.Fprintln(w, "No documents.")
					return
				}
				renderTable(w, views)
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Incomplete, "incomplete", false, "only documents with missing dependencies")
	cmd.Flags().BoolVar(&opts.Selected, "selected", false, "only selected documents")

	return cmd
}

// NewShowCommand creates the show command.
func NewShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a cached document and its relations",
		Long: `Show a cached document with every relation.

References print as Cached(id) when the target is cached and Unknown(id)
otherwise.

Example:
  rfcdep show rfc8200`,
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

			id := doc.NameToID(args[0])
			st, ok, err := s.store.Get(ctx, id)
			if err != nil {
				return s.fail(ExitCommandError, "failed to read document", err)
			}
			if !ok {
				err := &engine.Error{
					Code:    engine.ErrCodeNotCached,
					Message: "documents are not cached",
					IDs:     []string{id},
				}
				return s.fail(ExitFailure, "failed to show document", err)
			}
			v := newDocumentView(st, true)
			return s.succeed(v, func(w io.Writer) {
				fmt.Fprintf(w, "%s-%s  %s\n", v.ID, v.Revision, v.Title)
				fmt.Fprintf(w, "  url:      %s\n", v.URL)
				fmt.Fprintf(w, "  missing:  %d\n", v.MissingDeps)
				fmt.Fprintf(w, "  flags:    %s\n", flags(v))
				for _, rel := range v.Relations {
					if rel.Name != "" {
						fmt.Fprintf(w, "  %s: %s\n", rel.Kind, rel.Name)
						continue
					}
					fmt.Fprintf(w, "  %s: %v\n", rel.Kind, rel.References)
				}
			})
		},
	}
}

// RemoveOptions holds flags for the rm command.
type RemoveOptions struct {
	*RootOptions
	Selected bool
}

// NewRemoveCommand creates the rm command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RemoveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rm [id...]",
		Short: "Remove documents from the cache",
		Long: `Remove documents from the cache. References to them become Unknown
again and the missing dependency counts of the remaining documents are
updated.

Example:
  rfcdep rm rfc1883 rfc2460
  rfcdep rm --selected`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Selected == (len(args) > 0) {
				return NewExitError(ExitCommandError, "rm takes either ids or --selected")
			}
			ctx := cmd.Context()
			s, err := openSession(ctx, opts.RootOptions, cmd)
			if err != nil {
				return err
			}
			defer s.close()

			removed := len(args)
			if opts.Selected {
				removed = s.engine.RemoveSelected()
			} else if err := s.engine.Remove(args...); err != nil {
				return s.fail(ExitFailure, "failed to remove documents", err)
			}
			if err := s.save(ctx); err != nil {
				return err
			}
			return s.succeed(map[string]int{"removed": removed}, func(w io.Writer) {
				fmt.Fprintf(w, "Removed %d documents\n", removed)
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Selected, "selected", false, "remove the selected documents")

	return cmd
}

// MarkOptions holds flags for the mark command.
type MarkOptions struct {
	*RootOptions
	Read     bool
	Unread   bool
	Select   bool
	Deselect bool
}

// NewMarkCommand creates the mark command.
func NewMarkCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MarkOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "mark [id...]",
		Short: "Set the read and selected flags of cached documents",
		Long: `Set the read and selected flags of cached documents.

Without ids, --select and --deselect apply to every cached document.
--read and --unread need at least one id.

Example:
  rfcdep mark --read rfc8200
  rfcdep mark --deselect`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Read && opts.Unread || opts.Select && opts.Deselect {
				return NewExitError(ExitCommandError, "conflicting flags")
			}
			if !(opts.Read || opts.Unread || opts.Select || opts.Deselect) {
				return NewExitError(ExitCommandError, "mark needs --read, --unread, --select, or --deselect")
			}
			if (opts.Read || opts.Unread) && len(args) == 0 {
				return NewExitError(ExitCommandError, "--read and --unread need at least one id")
			}
			ctx := cmd.Context()
			s, err := openSession(ctx, opts.RootOptions, cmd)
			if err != nil {
				return err
			}
			defer s.close()

			if opts.Read || opts.Unread {
				for _, id := range args {
					if err := s.engine.MarkRead(id, opts.Read); err != nil {
						return s.fail(ExitFailure, "failed to mark documents", err)
					}
				}
			}
			switch {
			case opts.Select:
				_, err = s.engine.Select(args...)
			case opts.Deselect:
				_, err = s.engine.Deselect(args...)
			}
			if err != nil {
				return s.fail(ExitFailure, "failed to mark documents", err)
			}
			if err := s.save(ctx); err != nil {
				return err
			}
			selected := s.engine.SelectedIDs()
			return s.succeed(map[string][]string{"selected": selected}, func(w io.Writer) {
				fmt.Fprintf(w, "%d documents selected\n", len(selected))
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Read, "read", false, "mark as read")
	cmd.Flags().BoolVar(&opts.Unread, "unread", false, "mark as unread")
	cmd.Flags().BoolVar(&opts.Select, "select", false, "select")
	cmd.Flags().BoolVar(&opts.Deselect, "deselect", false, "deselect")

	return cmd
}
