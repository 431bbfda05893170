// Package cli is the cobra front end of the trading terminal.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"trading-terminal-go/internal/api"
	"trading-terminal-go/internal/config"
	"trading-terminal-go/internal/database"
	"trading-terminal-go/internal/guard"
	"trading-terminal-go/internal/logger"
	"trading-terminal-go/internal/models"
	"trading-terminal-go/internal/query"
	"trading-terminal-go/internal/resources"
	"trading-terminal-go/internal/session"
	"trading-terminal-go/internal/signals"
	"trading-terminal-go/internal/ticket"
	"trading-terminal-go/internal/views"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

// ErrSignInRequired is returned when a protected command runs without a
// session.
var ErrSignInRequired = errors.New("sign in required")

// annotation marking commands that need no backend connection.
const offline = "offline"

// App holds everything a command needs. It is wired once per process in the
// root command's PersistentPreRunE.
type App struct {
	out    io.Writer
	errOut io.Writer

	configPath string
	cfg        config.Config
	logger     *zap.Logger

	db        *gorm.DB
	bus       *signals.Bus
	backend   api.Backend
	router    *guard.Router
	session   *session.Store
	cache     *query.Cache
	resources *resources.Resources
	notices   *views.Notices
	journal   *database.Journal
	tickets   map[models.Side]*ticket.Form
}

// NewApp creates an unwired App writing to out and errOut.
func NewApp(out, errOut io.Writer) *App {
	return &App{out: out, errOut: errOut, logger: zap.NewNop()}
}

// Command builds the command tree.
func (a *App) Command() *cobra.Command {
	root := &cobra.Command{
		Use:   "trading-terminal",
		Short: "Terminal client for the Trading Core backend",
		Long: `trading-terminal signs in to a Trading Core backend and lets you watch your
wallet, portfolio and orders, browse the market and place limit orders.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(); err != nil {
				return err
			}
			if cmd.Annotations[offline] == "true" {
				return nil
			}
			return a.connect()
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)
	root.PersistentFlags().StringVar(&a.configPath, "config", "./configs", "Directory holding config.yml")

	root.AddCommand(
		a.newLoginCmd(),
		a.newSignupCmd(),
		a.newLogoutCmd(),
		a.newWhoamiCmd(),
		a.newWalletCmd(),
		a.newDepositCmd(),
		a.newStocksCmd(),
		a.newPriceCmd(),
		a.newOrderCmd(models.SideBuy),
		a.newOrderCmd(models.SideSell),
		a.newOrdersCmd(),
		a.newCancelCmd(),
		a.newExecuteCmd(),
		a.newLogsCmd(),
		a.newPortfolioCmd(),
		a.newHistoryCmd(),
		a.newDashboardCmd(),
		a.newConfigCmd(),
		a.newVersionCmd(),
	)
	return root
}

func (a *App) load() error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		return fmt.Errorf("could not initialize logger: %w", err)
	}
	a.cfg = cfg
	a.logger = log
	return nil
}

// connect opens the local store and the backend client, then wires them.
func (a *App) connect() error {
	db, err := database.NewDatabase(a.cfg.Database.DSN)
	if err != nil {
		return err
	}
	a.db = db

	bus := signals.NewBus()
	creds := database.NewCredentialStore(db, a.cfg.Backend.BaseURL)
	client, err := api.NewClient(&a.cfg.Backend, creds, bus, a.logger)
	if err != nil {
		return err
	}
	a.wire(bus, client, database.NewJournal(db), database.NewCooldownStore(db, a.cfg.Backend.BaseURL))
	return nil
}

// wire builds the client-side state around backend. Unauthorized signals
// reach the session store; every signal reaches the notices.
func (a *App) wire(bus *signals.Bus, backend api.Backend, journal *database.Journal, cooldowns ticket.CooldownStore) {
	a.bus = bus
	a.backend = backend
	a.journal = journal
	a.router = guard.NewRouter(guard.RouteAuth)
	a.cache = query.NewCache(a.logger)
	a.resources = resources.New(backend, a.cache, a.cfg.Polling, journal, a.logger)
	a.session = session.NewStore(backend, a.router, a.logger)
	a.notices = views.NewNotices()
	a.tickets = make(map[models.Side]*ticket.Form, 2)
	for _, side := range []models.Side{models.SideBuy, models.SideSell} {
		a.tickets[side] = ticket.NewForm(side,
			ticket.WithDefaultCooldown(a.cfg.Backend.DefaultRetryAfter),
			ticket.WithLogger(a.logger),
			ticket.WithCooldownStore(cooldowns),
		)
	}

	a.session.OnReset(a.cache.Reset)
	for _, form := range a.tickets {
		a.session.OnReset(form.Clear)
	}
	a.session.Subscribe(bus)
	a.notices.Subscribe(bus)
}

// enter runs the session probe and the guard for route. A redirect prints
// the sign-in hint and returns ErrSignInRequired.
func (a *App) enter(ctx context.Context, route string) error {
	s := a.session.Start(ctx)
	outcome := guard.Apply(s, route, a.router)
	if outcome.Kind == guard.Redirect {
		fmt.Fprintln(a.errOut, views.SignInRequired(outcome.From))
		return ErrSignInRequired
	}
	a.router.Replace(outcome.To)
	return nil
}

// Close flushes notices and releases the local store.
func (a *App) Close() {
	if a.notices != nil {
		if text := views.RenderNotices(a.notices); text != "" {
			fmt.Fprintln(a.errOut, text)
		}
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	_ = a.logger.Sync()
}

// Execute runs the terminal with args and returns the process exit code.
func Execute(ctx context.Context, args []string, out, errOut io.Writer) int {
	app := NewApp(out, errOut)
	defer app.Close()

	root := app.Command()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, ErrSignInRequired) {
			fmt.Fprintln(errOut, "Error:", err)
		}
		return 1
	}
	return 0
}
