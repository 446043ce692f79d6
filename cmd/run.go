package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/appsight/insights-cli/internal/artifact"
	"github.com/appsight/insights-cli/internal/model"
	"github.com/appsight/insights-cli/internal/pipeline"
	"github.com/appsight/insights-cli/pkg/embed"
	"github.com/appsight/insights-cli/pkg/llm"
	"github.com/appsight/insights-cli/pkg/scraper"
)

var (
	runPackage string
	runLocale  string
	runSort    string
)

// initPipeline wires the store and API clients into a Pipeline.
func initPipeline(ctx context.Context) (*pipeline.Pipeline, artifact.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, nil, eris.Wrap(err, "migrate store")
	}

	scraperClient := scraper.NewClient(cfg.Reviews.Key,
		scraper.WithBaseURL(cfg.Reviews.BaseURL),
		scraper.WithRateLimit(cfg.Reviews.RateRPS, cfg.Reviews.RateBurst),
		scraper.WithPageSize(cfg.Reviews.PageSize),
	)
	embedClient := embed.NewClient(cfg.Embedding.Key,
		embed.WithBaseURL(cfg.Embedding.BaseURL),
		embed.WithModel(cfg.Embedding.Model),
		embed.WithRateLimit(cfg.Embedding.RateRPS, cfg.Embedding.RateBurst),
	)
	llmClient := llm.NewClient(cfg.Anthropic.Key)

	var rules []pipeline.Rule
	if cfg.Pipeline.RulesPath != "" {
		rules, err = pipeline.LoadRules(cfg.Pipeline.RulesPath)
		if err != nil {
			st.Close()
			return nil, nil, err
		}
	}

	return pipeline.New(cfg, st, scraperClient, embedClient, llmClient, rules), st, nil
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Analyze reviews for a single app package",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		p, st, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		app := model.App{
			PackageID: runPackage,
			Locale:    runLocale,
			Sort:      model.FetchSort(runSort),
		}

		result, err := p.Run(ctx, app)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("analysis complete",
			zap.String("package", app.PackageID),
			zap.Int("reviews", result.Reviews),
			zap.Int("findings", len(result.Findings)),
			zap.Int("total_tokens", result.TotalTokens),
			zap.Float64("total_cost", result.TotalCost),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	runCmd.Flags().StringVar(&runPackage, "package", "", "app package ID (required)")
	runCmd.Flags().StringVar(&runLocale, "locale", "en_US", "review locale")
	runCmd.Flags().StringVar(&runSort, "sort", string(model.FetchSortNewest), "fetch order: newest, rating, helpful")
	_ = runCmd.MarkFlagRequired("package")
	rootCmd.AddCommand(runCmd)
}
