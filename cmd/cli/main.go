// Package main provides the flystocks CLI: repository stats, manual
// refreshes, searches, and imports without going through the HTTP API.
//
// Run with: go run ./cmd/cli search 80563 --repository bdsc
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fleveque/flystocks/internal/app"
	"github.com/fleveque/flystocks/internal/config"
	"github.com/fleveque/flystocks/internal/model"
	"github.com/fleveque/flystocks/internal/provider"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootCmd creates the root command:
//
//	flystocks repositories
//	flystocks stats --repository bdsc
//	flystocks refresh --force
//	flystocks search "UAS-GFP" --limit 5
//	flystocks import --tenant lab-a --repository bdsc 80563 80560
func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "flystocks",
		Short:        "FlyBase stock center import tools",
		SilenceUsage: true,
	}

	root.AddCommand(repositoriesCmd(), statsCmd(), refreshCmd(), searchCmd(), importCmd())
	return root
}

// withApp loads config, wires the app, and runs fn with a context that is
// cancelled on Ctrl+C.
func withApp(fn func(ctx context.Context, a *app.App, logger *zap.Logger) error) error {
	cfg, err := config.Load(os.Getenv("FLYSTOCKS_CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Always use development mode for CLI
	logger, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return fn(ctx, a, logger)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func repositoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repositories",
		Short: "List supported stock centers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(_ context.Context, a *app.App, _ *zap.Logger) error {
				return printJSON(a.Registry.List())
			})
		},
	}
}

func statsCmd() *cobra.Command {
	var repo string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cached counts and freshness per repository (never downloads)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App, _ *zap.Logger) error {
				// Stats only reads what is loaded; load from the local cache
				// first when one exists so counts are meaningful.
				if _, valid := a.Store.CacheStatus(); valid {
					if _, err := a.Store.Ensure(ctx); err != nil {
						return err
					}
				}

				repos := a.Registry.List()
				if repo != "" {
					repos = []model.RepositoryInfo{{ID: model.Repository(repo)}}
				}

				out := make([]*model.SourceStats, 0, len(repos))
				for _, info := range repos {
					p, err := a.Registry.Get(info.ID)
					if err != nil {
						return err
					}
					stats, err := p.Stats(ctx)
					if err != nil {
						return err
					}
					out = append(out, stats)
				}
				return printJSON(out)
			})
		},
	}

	cmd.Flags().StringVar(&repo, "repository", "", "Only this repository (default all)")
	return cmd
}

func refreshCmd() *cobra.Command {
	var (
		repo  string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Download the FlyBase stocks file if stale (or always with --force) and rebuild the index",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App, logger *zap.Logger) error {
				p, err := a.Registry.Get(model.Repository(repo))
				if err != nil {
					return err
				}
				res, err := p.Refresh(ctx, force)
				if err != nil {
					return err
				}
				if res.FetchFailed {
					logger.Warn(res.Warning)
				}
				return printJSON(res)
			})
		},
	}

	cmd.Flags().StringVar(&repo, "repository", string(model.RepoBDSC), "Repository to report counts for")
	cmd.Flags().BoolVar(&force, "force", false, "Download even if the cache is fresh")
	return cmd
}

func searchCmd() *cobra.Command {
	var (
		repo  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search by stock number prefix or genotype substring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App, _ *zap.Logger) error {
				results, err := a.Registry.Search(ctx, args[0], model.Repository(repo), searchLimit(cmd, a.Config, limit))
				if err != nil {
					return err
				}
				return printJSON(results)
			})
		},
	}

	cmd.Flags().StringVar(&repo, "repository", "", "Only search this repository (default all)")
	cmd.Flags().IntVar(&limit, "limit", provider.DefaultSearchLimit, "Maximum number of results (default flybase.search_limit)")
	return cmd
}

// searchLimit prefers an explicit --limit, then the configured limit.
func searchLimit(cmd *cobra.Command, cfg *config.Config, flagLimit int) int {
	if cmd.Flags().Changed("limit") || cfg == nil || cfg.FlyBase.SearchLimit <= 0 {
		return flagLimit
	}
	return cfg.FlyBase.SearchLimit
}

func importCmd() *cobra.Command {
	var (
		tenant   string
		repo     string
		location string
	)

	cmd := &cobra.Command{
		Use:   "import <external_id>...",
		Short: "Import stocks into a tenant's inventory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App, logger *zap.Logger) error {
				items := make([]model.ImportItem, len(args))
				for i, id := range args {
					items[i] = model.ImportItem{
						ExternalID: id,
						Repository: model.Repository(repo),
						Location:   location,
					}
				}

				outcome, err := a.ImportService.Import(ctx, tenant, items)
				if err != nil {
					return err
				}
				if len(outcome.ErrorMessages) > 0 {
					logger.Warn("import had errors", zap.Int("count", len(outcome.ErrorMessages)))
				}
				return printJSON(outcome)
			})
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant that will own the imported stocks")
	cmd.Flags().StringVar(&repo, "repository", string(model.RepoBDSC), "Repository the ids belong to")
	cmd.Flags().StringVar(&location, "location", "", "Storage location recorded on every imported stock")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}
