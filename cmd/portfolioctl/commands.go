package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"portfolio_aggregator/internal/app"
	"portfolio_aggregator/internal/app/service"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/configloader"
	"portfolio_aggregator/internal/infrastructure/walletloader"
	"portfolio_aggregator/internal/pkg/logger"
	"portfolio_aggregator/internal/pkg/utils"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "portfolioctl",
		Short:         "Inspect DeFi wallet portfolios from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to the YAML configuration (defaults only when empty)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr")

	root.AddCommand(newPortfolioCmd(opts), newAggregateCmd(), newBatchCmd(opts))
	return root
}

func newPortfolioCmd(opts *rootOptions) *cobra.Command {
	var networks string
	var refresh bool
	cmd := &cobra.Command{
		Use:   "portfolio <wallet>",
		Short: "Build the categorized portfolio of one wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApplication(cmd.Context(), opts, func(ctx context.Context, a *app.Application) error {
				ids := splitNetworks(networks)
				if refresh {
					if err := a.Portfolio.Invalidate(ctx, args[0], ids); err != nil {
						return err
					}
				}
				portfolio, err := a.Portfolio.GetPortfolio(ctx, args[0], ids)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), portfolio)
			})
		},
	}
	cmd.Flags().StringVar(&networks, "networks", "", "comma-separated network identifiers (tracked networks when empty)")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "drop the cached structure before building")
	return cmd
}

func newAggregateCmd() *cobra.Command {
	var wallet string
	cmd := &cobra.Command{
		Use:   "aggregate <raw-positions.json>",
		Short: "Aggregate and categorize a JSON array of raw positions offline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := utils.LoadJSONFile[[]entity.RawPosition](args[0])
			if err != nil {
				return err
			}
			networks := distinctNetworks(raw)
			structure := service.BuildStructure(
				service.NewPositionAggregator(logger.NewNop()),
				service.PositionCategorizer{},
				strings.ToLower(wallet),
				networks,
				raw,
			)
			return writeJSON(cmd.OutOrStdout(), structure)
		},
	}
	cmd.Flags().StringVar(&wallet, "wallet", "", "wallet address recorded in the output")
	return cmd
}

func newBatchCmd(opts *rootOptions) *cobra.Command {
	var walletsFile, networks string
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Build portfolios for every wallet of a wallet list file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApplication(cmd.Context(), opts, func(ctx context.Context, a *app.Application) error {
				wallets := a.Wallets
				if walletsFile != "" {
					wallets = walletloader.NewWalletFileLoader(walletsFile, logger.NewZapAdapter(zap.NewNop()))
				}
				list, err := wallets.GetWallets()
				if err != nil {
					return err
				}
				portfolios, failures := a.Portfolio.FetchWalletsPortfolio(ctx, list, splitNetworks(networks))
				if err := writeJSON(cmd.OutOrStdout(), map[string]any{
					"portfolios": portfolios,
					"errors":     failures,
				}); err != nil {
					return err
				}
				if len(failures) > 0 {
					return fmt.Errorf("%d of %d wallets failed", len(failures), len(list))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&walletsFile, "wallets", "", "wallet list file (configured file when empty)")
	cmd.Flags().StringVar(&networks, "networks", "", "comma-separated network identifiers")
	return cmd
}

func withApplication(ctx context.Context, opts *rootOptions, run func(context.Context, *app.Application) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := configloader.Load(opts.configPath)
	if err != nil {
		return err
	}
	zl, err := logger.New(logger.Options{Level: opts.logLevel, Output: os.Stderr})
	if err != nil {
		return err
	}
	defer zl.Sync()

	a, err := app.Build(ctx, cfg, zl)
	if err != nil {
		return err
	}
	defer a.Close()
	return run(ctx, a)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func splitNetworks(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func distinctNetworks(raw []entity.RawPosition) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range raw {
		if _, ok := seen[p.Network]; ok || p.Network == "" {
			continue
		}
		seen[p.Network] = struct{}{}
		out = append(out, p.Network)
	}
	return out
}
