// Package sessions implements the sessions command group: listing scan
// sessions and resuming interrupted ones from their checkpoints.
package sessions

import (
	"github.com/spf13/cobra"

	"github.com/modelscout/modelscout/internal/appcontext"
)

// NewCommand creates the sessions command using the app context.
func NewCommand(ac appcontext.Interface) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		GroupID: "management",
		Short:   "Inspect and resume scan sessions",
		Long: `Sessions tracks every scan as a session with periodic checkpoints. This
command group lists known sessions, active and archived, and resumes an
interrupted session from its last checkpoint.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newListCommand(ac))
	cmd.AddCommand(newResumeCommand(ac))

	return cmd
}
