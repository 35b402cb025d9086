package sessions

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/modelscout/modelscout/internal/appcontext"
	"github.com/modelscout/modelscout/internal/render"
)

// newListCommand creates the sessions list subcommand.
func newListCommand(ac appcontext.Interface) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scan sessions, newest first",
		Long: `List shows every known scan session: active ones still tracked in memory
and completed, failed, or stopped ones from the archived session log.`,
		Example: `  modelscout sessions list
  modelscout sessions list -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sc, err := ac.Scout()
			if err != nil {
				return err
			}

			history, err := sc.Sessions().History()
			if err != nil {
				return err
			}

			format := render.Detect(ac.OutputFormat())
			if format == render.FormatJSON || format == render.FormatYAML {
				return render.New(format).Format(os.Stdout, history)
			}
			return render.New(format).Format(os.Stdout, render.Sessions(history))
		},
	}
}
