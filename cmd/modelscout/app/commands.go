package app

import (
	"github.com/spf13/cobra"

	"github.com/modelscout/modelscout/cmd/modelscout/cmd/aggregate"
	"github.com/modelscout/modelscout/cmd/modelscout/cmd/providers"
	"github.com/modelscout/modelscout/cmd/modelscout/cmd/scan"
	"github.com/modelscout/modelscout/cmd/modelscout/cmd/sessions"
	"github.com/modelscout/modelscout/cmd/modelscout/cmd/update"
)

// registerCommands wires all subcommands onto the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	// Core commands
	rootCmd.AddCommand(scan.NewCommand(a))
	rootCmd.AddCommand(aggregate.NewCommand(a))
	rootCmd.AddCommand(update.NewCommand(a))

	// Management commands
	rootCmd.AddCommand(sessions.NewCommand(a))
	rootCmd.AddCommand(providers.NewCommand(a))

	// Utility commands
	rootCmd.AddCommand(a.newVersionCommand())
}

// newVersionCommand creates the version command.
func (a *App) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("modelscout %s\n", a.version)
			if a.config.Verbose {
				cmd.Printf("  commit:   %s\n", a.commit)
				cmd.Printf("  built:    %s\n", a.date)
				cmd.Printf("  built by: %s\n", a.builtBy)
			}
		},
	}
}
