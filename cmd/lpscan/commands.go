package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/lp-portfolio/internal/app"
	"github.com/lp-portfolio/internal/config"
	"github.com/lp-portfolio/internal/logging"
	"github.com/lp-portfolio/internal/models"
	"github.com/lp-portfolio/internal/registry"
	"github.com/lp-portfolio/internal/storage"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func setup(cmd *cobra.Command) (*config.Config, *logging.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	level, _ := cmd.Flags().GetString("log-level")
	if level == "" {
		level = cfg.Logging.Level
	}
	logger := logging.NewLogger(logging.ParseLogLevel(level), logging.ParseLogFormat(cfg.Logging.Format))
	logger.SetOutput(cmd.ErrOrStderr())
	return cfg, logger, nil
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	address, _ := cmd.Flags().GetString("address")
	chainNames, _ := cmd.Flags().GetStringSlice("chains")
	output, _ := cmd.Flags().GetString("output")
	if output != "table" && output != "json" {
		return fmt.Errorf("unknown output format %q", output)
	}

	var chains = cfg.Pipeline.EnabledChains
	if len(chainNames) > 0 {
		if chains, err = registry.ParseChainKeys(chainNames); err != nil {
			return err
		}
	}

	application, err := app.New(cfg, logger, app.Options{})
	if err != nil {
		return err
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := application.Loader.Load(ctx, address, chains)
	if err != nil {
		return err
	}

	if output == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return writeTable(cmd.OutOrStdout(), result)
}

func writeTable(out io.Writer, result *models.PortfolioResult) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "CHAIN\tPROTOCOL\tPAIR\tSTATUS\tVALUE\tPNL\tAPY\n")
	for _, p := range result.Positions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t$%.2f\t$%.2f\t%.2f%%\n",
			p.Chain,
			p.Protocol.Name,
			p.TokenPair.DisplayName,
			p.Status,
			p.CurrentValue,
			p.PnL,
			p.APY,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	m := result.Metrics
	fmt.Fprintf(out, "\nTotal value $%.2f  PnL $%.2f (%.2f%%)  fees $%.2f  active %d  closed %d\n",
		m.TotalValue, m.TotalPnL, m.TotalPnLPercent, m.TotalFeesEarned, m.ActivePositions, m.ClosedPositions)
	return nil
}

func runPrices(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	symbols, _ := cmd.Flags().GetStringSlice("symbols")

	application, err := app.New(cfg, logger, app.Options{})
	if err != nil {
		return err
	}
	defer application.Close()

	prices := application.Prices.GetPrices(cmd.Context(), symbols)
	keys := make([]string, 0, len(prices))
	for k := range prices {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s\n", k, formatPrice(prices[k]))
	}
	return nil
}

func formatPrice(p float64) string {
	if p == 0 {
		return "unknown"
	}
	return fmt.Sprintf("$%.4f", p)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	path, _ := cmd.Flags().GetString("path")
	if path == "" {
		path = cfg.Database.Postgres.MigrationsPath
	}
	migrator := storage.NewMigrator(cfg.Database.Postgres.URL(), path, logger)

	switch strings.ToLower(args[0]) {
	case "up":
		return migrator.Up()
	case "down":
		return migrator.Down()
	case "version":
		version, dirty, err := migrator.Version()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %v)\n", version, dirty)
		return nil
	default:
		return fmt.Errorf("unknown action: %s", args[0])
	}
}
