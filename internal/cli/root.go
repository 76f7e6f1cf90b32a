package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// GlobalOptions holds flags shared by every command.
type GlobalOptions struct {
	ConfigFile string
	Backend    string
	Path       string
}

// NewRootCommand creates the root command.
func NewRootCommand(version string) *cobra.Command {
	opts := &GlobalOptions{}

	cmd := &cobra.Command{
		Use:   "kinomark",
		Short: "Kinomark - saved movies from the terminal",
		Long: "Kinomark keeps a local list of bookmarked movies.\n" +
			"Run without arguments to browse them, or pipe the output to list them.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if isTerminal(cmd.OutOrStdout()) {
				return runBrowse(cmd, opts)
			}
			return runList(cmd, opts, &ListOptions{})
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.ConfigFile, "config", "c", "", "Config file (default ~/.config/kinomark/config.yaml)")
	flags.StringVar(&opts.Backend, "backend", "", "Storage backend: bolt, file, sqlite, redis, memory")
	flags.StringVar(&opts.Path, "path", "", "Storage file or directory, depending on backend")

	// Add subcommands
	cmd.AddCommand(
		NewListCommand(opts),
		NewAddCommand(opts),
		NewRemoveCommand(opts),
		NewToggleCommand(opts),
		NewSearchCommand(opts),
		NewBrowseCommand(opts),
		NewVersionCommand(version),
	)

	return cmd
}

// isTerminal reports whether w is an interactive terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
