package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"trading-terminal-go/internal/guard"
	"trading-terminal-go/internal/models"
	"trading-terminal-go/internal/portfolio"
	"trading-terminal-go/internal/query"
	"trading-terminal-go/internal/views"
)

func (a *App) newWalletCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wallet",
		Short: "Show the cash balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.enter(ctx, guard.RouteDashboard); err != nil {
				return err
			}
			wallet, err := query.Get(ctx, a.cache, a.resources.Wallet())
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, views.Wallet(wallet))
			return nil
		},
	}
}

func (a *App) newDepositCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deposit AMOUNT",
		Short: "Add funds to the wallet (at most 1,000,000 per deposit)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			amount, err := decimal.NewFromString(args[0])
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[0])
			}
			if err := a.enter(ctx, guard.RouteDashboard); err != nil {
				return err
			}
			if _, err := a.resources.Deposit().Do(ctx, a.cache, amount); err != nil {
				return err
			}

			fmt.Fprintf(a.out, "Deposited %s.\n", views.FormatINR(amount))
			wallet, err := query.Get(ctx, a.cache, a.resources.Wallet())
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, views.Wallet(wallet))
			return nil
		},
	}
}

func (a *App) newPortfolioCmd() *cobra.Command {
	var fromBackend bool
	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Show holdings, profit and allocation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.enter(ctx, guard.RoutePortfolio); err != nil {
				return err
			}
			p, err := query.Get(ctx, a.cache, a.resources.Portfolio())
			if err != nil {
				return err
			}
			p = a.quoted(ctx, p)
			wallet, err := query.Get(ctx, a.cache, a.resources.Wallet())
			if err != nil {
				return err
			}

			slices := portfolio.Allocation(wallet.Balance, p.Holdings)
			if fromBackend {
				backend, err := query.Get(ctx, a.cache, a.resources.Allocation())
				if err != nil {
					return err
				}
				slices = portfolio.FromBackend(backend)
			}

			rows := portfolio.Rows(p.Holdings)
			fmt.Fprintln(a.out, views.Portfolio(rows))
			fmt.Fprintf(a.out, "Realized PnL %s   Unrealized PnL %s\n\n",
				views.FormatINR(p.RealizedPnL), views.FormatINR(portfolio.UnrealizedPnL(rows)))
			fmt.Fprintln(a.out, views.Allocation(slices))
			return nil
		},
	}
	cmd.Flags().BoolVar(&fromBackend, "backend-allocation", false, "Use the backend's allocation breakdown")
	return cmd
}

// quoted fills in current prices the backend left off holdings, one quote
// per symbol. A quote that cannot be fetched stays pending.
func (a *App) quoted(ctx context.Context, p *models.Portfolio) *models.Portfolio {
	quotes := make(map[string]decimal.Decimal)
	for _, h := range p.Holdings {
		if h.HasQuote() {
			continue
		}
		q, err := query.Get(ctx, a.cache, a.resources.Price(h.Symbol))
		if err != nil {
			a.logger.Debug("Quote unavailable", zap.String("symbol", h.Symbol), zap.Error(err))
			continue
		}
		quotes[strings.ToUpper(h.Symbol)] = q.CurrentPrice
	}
	if len(quotes) == 0 {
		return p
	}
	out := *p
	out.Holdings = portfolio.WithQuotes(p.Holdings, quotes)
	return &out
}
