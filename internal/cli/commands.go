package cli

import (
	"fmt"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/kinomark/internal/domain"
	"github.com/mmcdole/kinomark/internal/search"
	"github.com/mmcdole/kinomark/internal/tui"
	"github.com/mmcdole/kinomark/internal/tui/styles"
	"github.com/spf13/cobra"
)

// ListOptions holds options for the list command.
type ListOptions struct {
	JSON bool
}

// NewListCommand creates the list command.
func NewListCommand(global *GlobalOptions) *cobra.Command {
	opts := &ListOptions{}

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved movies",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, global, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Output the saved collection as JSON")

	return cmd
}

func runList(cmd *cobra.Command, global *GlobalOptions, opts *ListOptions) error {
	return withSession(cmd, global, func(s *session) error {
		items := s.store.Saved()
		if opts.JSON {
			return writeJSON(cmd.OutOrStdout(), items)
		}
		writeTable(cmd.OutOrStdout(), items, emptyCollection)
		return nil
	})
}

// NewAddCommand creates the add command.
func NewAddCommand(global *GlobalOptions) *cobra.Command {
	opts := &MovieInput{}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Save a movie",
		Long: "Save a movie record. The record is read as JSON (a single object or an\n" +
			"array of objects, each with an integer \"id\") or built from flags.",
		Example: "  kinomark add --id 603 --title \"The Matrix\" --release-date 1999-03-31\n" +
			"  curl -s $CATALOG/movie/603 | kinomark add --json -",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			movies, err := opts.Movies(cmd)
			if err != nil {
				return err
			}
			return withSession(cmd, global, func(s *session) error {
				for _, m := range movies {
					if s.store.Add(m) {
						fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", describe(m))
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "%s is already saved\n", describe(m))
					}
				}
				return nil
			})
		},
	}

	opts.bind(cmd)
	return cmd
}

// NewRemoveCommand creates the remove command.
func NewRemoveCommand(global *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "remove ID...",
		Aliases: []string{"rm"},
		Short:   "Remove saved movies by id",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int, len(args))
			for i, arg := range args {
				id, err := strconv.Atoi(arg)
				if err != nil {
					return fmt.Errorf("invalid movie id %q", arg)
				}
				ids[i] = id
			}

			return withSession(cmd, global, func(s *session) error {
				for _, id := range ids {
					item, ok := s.store.Get(id)
					if !s.store.Remove(id) {
						fmt.Fprintf(cmd.OutOrStdout(), "Movie %d is not saved\n", id)
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", describeSaved(item, ok, id))
				}
				return nil
			})
		},
	}
}

// NewToggleCommand creates the toggle command.
func NewToggleCommand(global *GlobalOptions) *cobra.Command {
	opts := &MovieInput{}

	cmd := &cobra.Command{
		Use:   "toggle",
		Short: "Save a movie, or remove it if already saved",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			movies, err := opts.Movies(cmd)
			if err != nil {
				return err
			}
			return withSession(cmd, global, func(s *session) error {
				for _, m := range movies {
					if s.store.Toggle(m) {
						fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", describe(m))
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", describe(m))
					}
				}
				return nil
			})
		},
	}

	opts.bind(cmd)
	return cmd
}

// SearchOptions holds options for the search command.
type SearchOptions struct {
	Fuzzy bool
	JSON  bool
}

// NewSearchCommand creates the search command.
func NewSearchCommand(global *GlobalOptions) *cobra.Command {
	opts := &SearchOptions{}

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search saved movies by title or overview",
		Long: "Search saved movies. By default a movie matches when its title or overview\n" +
			"contains the query. With --fuzzy, titles are ranked with typo tolerance.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := joinArgs(args)
			return withSession(cmd, global, func(s *session) error {
				var items []domain.SavedItem
				if opts.Fuzzy {
					for _, r := range search.Rank(query, s.store.Saved()) {
						items = append(items, r.Item)
					}
				} else {
					items = search.Filter(query, s.store.Saved())
				}

				if opts.JSON {
					return writeJSON(cmd.OutOrStdout(), items)
				}
				writeTable(cmd.OutOrStdout(), items, emptySearch)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&opts.Fuzzy, "fuzzy", "f", false, "Rank titles with typo-tolerant matching")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Output matches as JSON")

	return cmd
}

// NewBrowseCommand creates the browse command.
func NewBrowseCommand(global *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse saved movies interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBrowse(cmd, global)
		},
	}
}

// runBrowse starts the TUI application
func runBrowse(cmd *cobra.Command, global *GlobalOptions) error {
	return withSession(cmd, global, func(s *session) error {
		if s.cfg.UI.Accent != "" {
			styles.SetAccent(lipgloss.Color(s.cfg.UI.Accent))
		}

		model := tui.NewModel(s.store, s.logger)
		defer model.Close()

		p := tea.NewProgram(model,
			tea.WithAltScreen(),
			tea.WithContext(cmd.Context()),
			tea.WithInput(cmd.InOrStdin()),
			tea.WithOutput(cmd.OutOrStdout()),
		)

		s.logger.Info("starting TUI")
		if _, err := p.Run(); err != nil {
			s.logger.Error("TUI error", "error", err)
			return fmt.Errorf("TUI error: %w", err)
		}
		return nil
	})
}

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "kinomark %s\n", version)
		},
	}
}
