package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"trading-terminal-go/internal/guard"
	"trading-terminal-go/internal/models"
	"trading-terminal-go/internal/query"
	"trading-terminal-go/internal/views"
)

func (a *App) newStocksCmd() *cobra.Command {
	var page int
	var search string
	var live bool
	cmd := &cobra.Command{
		Use:   "stocks",
		Short: "List stocks, one page at a time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.enter(ctx, guard.RouteStocks); err != nil {
				return err
			}
			if page < 1 {
				page = 1
			}
			if live {
				return watch(ctx, a, cmd.InOrStdin(), guard.RouteStocks, a.resources.Stocks(page), func(stocks []models.Stock) string {
					return views.Stocks(stocks, search, page)
				})
			}
			stocks, err := query.Get(ctx, a.cache, a.resources.Stocks(page))
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, views.Stocks(stocks, search, page))
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number, starting at 1")
	cmd.Flags().StringVar(&search, "search", "", "Filter the page by symbol or description")
	cmd.Flags().BoolVar(&live, "watch", false, "Keep the page on screen and refresh it")
	return cmd
}

func (a *App) newPriceCmd() *cobra.Command {
	var history, live bool
	cmd := &cobra.Command{
		Use:   "price SYMBOL",
		Short: "Show the latest price of a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.enter(ctx, guard.RouteMarket); err != nil {
				return err
			}

			q := a.resources.Price(args[0])
			if live {
				return watch(ctx, a, cmd.InOrStdin(), guard.RouteMarket, q, func(quote *models.Quote) string {
					updated, _ := a.cache.UpdatedAt(q.Key)
					return views.Price(args[0], quote, updated)
				})
			}
			quote, err := query.Get(ctx, a.cache, q)
			if err != nil {
				return err
			}
			updated, _ := a.cache.UpdatedAt(q.Key)
			fmt.Fprintln(a.out, views.Price(args[0], quote, updated))

			if history {
				points, err := query.Get(ctx, a.cache, a.resources.History(args[0]))
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, views.History(args[0], points))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&history, "history", false, "Also show recent price history")
	cmd.Flags().BoolVar(&live, "watch", false, "Keep the price on screen and refresh it until interrupted")
	return cmd
}
