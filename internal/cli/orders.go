package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"trading-terminal-go/internal/api"
	"trading-terminal-go/internal/guard"
	"trading-terminal-go/internal/models"
	"trading-terminal-go/internal/query"
	"trading-terminal-go/internal/resources"
	"trading-terminal-go/internal/ticket"
	"trading-terminal-go/internal/views"
)

func (a *App) newOrderCmd(side models.Side) *cobra.Command {
	var dryRun bool
	verb := strings.ToLower(string(side))
	cmd := &cobra.Command{
		Use:   verb + " SYMBOL QUANTITY PRICE",
		Short: fmt.Sprintf("Place a %s limit order", side),
		Long: fmt.Sprintf(`Place a %s limit order. The order stays OPEN until it is executed or
cancelled. Example: trading-terminal %s AAPL 10 189.50`, side, verb),
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			draft, errs := ticket.ParseDraft(args[0], args[1], args[2])
			if errs != nil {
				return errs
			}
			if err := a.enter(ctx, guard.RouteMarket); err != nil {
				return err
			}

			snap, err := a.snapshot(ctx)
			if err != nil {
				return err
			}
			form := a.tickets[side]
			draft = draft.Normalize()
			fmt.Fprintln(a.out, views.Ticket(draft, form.Assess(draft, snap), form))
			if dryRun {
				return nil
			}

			order, err := form.Submit(ctx, draft, snap, a.place)
			if err != nil {
				if _, ok := api.AsAPIError(err); ok {
					fmt.Fprintln(a.errOut, views.Ticket(draft, form.Assess(draft, snap), form))
				}
				return err
			}
			fmt.Fprintf(a.out, "Placed %s order %s: %s × %s at %s\n",
				order.Side, order.ID, views.FormatQuantity(order.Quantity), order.Symbol, views.FormatINR(order.Price))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show the ticket checks without placing the order")
	return cmd
}

// snapshot reads the wallet and holdings the ticket checks run against.
func (a *App) snapshot(ctx context.Context) (ticket.Snapshot, error) {
	wallet, err := query.Get(ctx, a.cache, a.resources.Wallet())
	if err != nil {
		return ticket.Snapshot{}, err
	}
	p, err := query.Get(ctx, a.cache, a.resources.Portfolio())
	if err != nil {
		return ticket.Snapshot{}, err
	}
	return ticket.Snapshot{Balance: wallet.Balance, Holdings: p.Holdings}, nil
}

func (a *App) place(ctx context.Context, side models.Side, req api.OrderRequest) (*models.Order, error) {
	return a.resources.PlaceOrder().Do(ctx, a.cache, resources.OrderInput{Side: side, Request: req})
}

func (a *App) newOrdersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "orders",
		Short: "List your orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.enter(ctx, guard.RouteOrders); err != nil {
				return err
			}
			orders, err := query.Get(ctx, a.cache, a.resources.Orders())
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, views.Orders(orders))
			return nil
		},
	}
}

func (a *App) newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ORDER_ID",
		Short: "Cancel an open order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.enter(ctx, guard.RouteOrders); err != nil {
				return err
			}
			if _, err := a.resources.Cancel().Do(ctx, a.cache, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Cancelled order %s.\n", args[0])
			return nil
		},
	}
}

func (a *App) newExecuteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "execute ORDER_ID",
		Short: "Force-execute an open order at its limit price",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.enter(ctx, guard.RouteOrders); err != nil {
				return err
			}
			if _, err := a.resources.Execute().Do(ctx, a.cache, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Executed order %s.\n", args[0])
			return nil
		},
	}
}

func (a *App) newLogsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logs ORDER_ID",
		Short: "Show the audit trail of an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.enter(ctx, guard.RouteOrders); err != nil {
				return err
			}
			logs, err := a.backend.OrderLogs(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, views.OrderLogs(logs))
			return nil
		},
	}
}

func (a *App) newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List orders placed from this terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return errors.New("limit must be at least 1")
			}
			receipts, err := a.journal.Recent(limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, views.Receipts(receipts))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of receipts to show")
	return cmd
}
