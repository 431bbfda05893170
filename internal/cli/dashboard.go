package cli

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"trading-terminal-go/internal/guard"
	"trading-terminal-go/internal/metrics"
	"trading-terminal-go/internal/models"
	"trading-terminal-go/internal/portfolio"
	"trading-terminal-go/internal/query"
	"trading-terminal-go/internal/views"
)

// board is the latest data the dashboard draws.
type board struct {
	mu        sync.Mutex
	wallet    *models.Wallet
	portfolio *models.Portfolio
	orders    []models.Order
}

func (b *board) summary() portfolio.Summary {
	b.mu.Lock()
	defer b.mu.Unlock()
	return portfolio.Summarize(b.wallet, b.portfolio, b.orders)
}

func (a *App) newDashboardCmd() *cobra.Command {
	var once bool
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Live account overview, refreshed by polling",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.enter(ctx, guard.RouteDashboard); err != nil {
				return err
			}
			if once {
				return a.drawOnce(ctx)
			}
			if metricsAddr == "" {
				metricsAddr = a.cfg.Metrics.Listen
			}
			return a.runDashboard(ctx, cmd.InOrStdin(), metricsAddr)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "Draw a single frame and exit")
	cmd.Flags().StringVar(&metricsAddr, "metrics-listen", "", "Serve Prometheus metrics on this address while running")
	return cmd
}

func (a *App) drawOnce(ctx context.Context) error {
	wallet, err := query.Get(ctx, a.cache, a.resources.Wallet())
	if err != nil {
		return err
	}
	p, err := query.Get(ctx, a.cache, a.resources.Portfolio())
	if err != nil {
		return err
	}
	p = a.quoted(ctx, p)
	orders, err := query.Get(ctx, a.cache, a.resources.Orders())
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, views.Dashboard(portfolio.Summarize(wallet, p, orders)))
	return nil
}

// runDashboard polls the wallet and orders until ctx is done, the user quits
// or the session is lost. Orders refresh the portfolio, which has no
// interval of its own.
func (a *App) runDashboard(ctx context.Context, in io.Reader, metricsAddr string) error {
	b := &board{}
	sc := &screen{out: a.out, notice: a.notices, frame: func() string {
		return views.Dashboard(b.summary())
	}}

	return a.live(ctx, in, guard.RouteDashboard, sc, func(ctx context.Context) {
		if metricsAddr != "" {
			go func() {
				if err := metrics.Serve(ctx, metricsAddr, a.logger); err != nil {
					a.logger.Error("Metrics listener failed", zap.Error(err))
				}
			}()
		}

		g := new(errgroup.Group)
		g.Go(func() error {
			query.Poll(ctx, a.cache, a.resources.Wallet(), func(w *models.Wallet, err error) {
				if err != nil {
					a.logger.Debug("Wallet refresh failed", zap.Error(err))
					return
				}
				a.notices.Recovered()
				b.mu.Lock()
				b.wallet = w
				b.mu.Unlock()
				sc.redraw()
			})
			return nil
		})
		g.Go(func() error {
			query.Poll(ctx, a.cache, a.resources.Orders(), func(orders []models.Order, err error) {
				if err != nil {
					a.logger.Debug("Orders refresh failed", zap.Error(err))
					return
				}
				p, err := query.Get(ctx, a.cache, a.resources.Portfolio())
				if err == nil {
					p = a.quoted(ctx, p)
				}
				b.mu.Lock()
				b.orders = orders
				if err == nil {
					b.portfolio = p
				}
				b.mu.Unlock()
				sc.redraw()
			})
			return nil
		})
		_ = g.Wait()
	})
}
