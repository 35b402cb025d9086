// Package providers implements the providers command: inspecting the
// registry, its scan strategies, and probing individual models.
package providers

import (
	"context"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/modelscout/modelscout/internal/appcontext"
	registry "github.com/modelscout/modelscout/internal/providers"
	"github.com/modelscout/modelscout/internal/render"
	"github.com/modelscout/modelscout/pkg/errors"
)

// Flags holds the providers command's flag values.
type Flags struct {
	Test string
	Full bool
}

// NewCommand creates the providers command using the app context.
func NewCommand(ac appcontext.Interface) *cobra.Command {
	flags := &Flags{}

	cmd := &cobra.Command{
		Use:     "providers [name]",
		GroupID: "management",
		Args:    cobra.MaximumNArgs(1),
		Short:   "Show registered providers and their scan strategies",
		Long: `Providers lists the registered provider variants with their traversal
strategy: complete catalogs fetched in one call, paginated hubs walked in
resumable pages, and API-discovery providers probed before listing.

With a provider name and --test, a single model is probed for
availability against the live API.`,
		Example: `  modelscout providers                       # List the registry
  modelscout providers huggingface           # One provider's strategy
  modelscout providers openai --test gpt-4o  # Probe a model
  modelscout providers openai --test gpt-4o --full`,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) > 0 {
				name = args[0]
			}
			return runProviders(cmd.Context(), ac, name, flags)
		},
	}

	cmd.Flags().StringVar(&flags.Test, "test", "", "probe this model ID against the provider API")
	cmd.Flags().BoolVar(&flags.Full, "full", false, "probe capabilities and metadata completeness, not just existence")

	return cmd
}

// runProviders dispatches between registry listing and model probing.
func runProviders(ctx context.Context, ac appcontext.Interface, name string, flags *Flags) error {
	if name == "" {
		return printRegistry(ac, registry.List())
	}
	if !registry.Has(name) {
		return errors.NewNotFoundError("provider", name)
	}
	if flags.Test != "" {
		return testModel(ctx, ac, name, flags)
	}
	return printRegistry(ac, []string{name})
}

// printRegistry renders provider strategies in the effective output format.
func printRegistry(ac appcontext.Interface, names []string) error {
	format := render.Detect(ac.OutputFormat())

	if format == render.FormatJSON || format == render.FormatYAML {
		strategies := make(map[string]registry.Strategy, len(names))
		for _, name := range names {
			strategies[name] = registry.StrategyFor(name)
		}
		return render.New(format).Format(os.Stdout, strategies)
	}
	return render.New(format).Format(os.Stdout, render.Strategies(names))
}

// testModel probes one model against the live provider API.
func testModel(ctx context.Context, ac appcontext.Interface, name string, flags *Flags) error {
	client, err := registry.New(name, registry.Config{APIKey: ac.APIKey(name)})
	if err != nil {
		return err
	}
	if err := client.Initialize(ctx); err != nil {
		return err
	}

	mode := registry.TestQuick
	if flags.Full {
		mode = registry.TestFull
	}
	report, err := client.TestModel(ctx, flags.Test, mode)
	if err != nil {
		return err
	}

	format := render.Detect(ac.OutputFormat())
	if format == render.FormatJSON || format == render.FormatYAML {
		return render.New(format).Format(os.Stdout, report)
	}

	if report.Available {
		color.New(color.FgGreen).Printf("%s/%s available (%s, %s probe)\n",
			report.Provider, report.ModelID, report.Latency.Round(time.Millisecond), report.Mode)
	} else {
		color.New(color.FgRed).Printf("%s/%s unavailable (%s probe)\n",
			report.Provider, report.ModelID, report.Mode)
	}
	if report.Message != "" {
		color.New(color.FgYellow).Println(report.Message)
	}
	return nil
}
