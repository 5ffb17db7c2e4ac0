package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/s0up4200/epoch/api"
	"github.com/s0up4200/epoch/booking"
	"github.com/s0up4200/epoch/config"
	"github.com/s0up4200/epoch/session"
)

var (
	cfgFile   string
	cfg       *config.Config
	logger    zerolog.Logger
	registry  *prometheus.Registry
	tokens    *api.TokenHolder
	client    *api.Client
	authStore *session.AuthStore
	bookings  *session.BookingStore
	machine   *booking.Machine
	watcher   *booking.NavigationWatcher
	closers   []func() error

	version   = "dev"
	buildTime = "unknown"
)

// routeAnnotation maps a command onto the client route it stands for, so
// leaving the booking flow behaves the same as in the browser
const routeAnnotation = "route"

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "epoch",
	Short: "Browse the cinema catalogue and book tickets",
	Long: `epoch is a CLI client for the epoch cinema API. It lets you browse movies
by era, search the catalogue, inspect screenings and seat maps, and book and
pay for tickets.`,
	SilenceUsage:       true,
	PersistentPreRunE:  initializeApp,
	PersistentPostRunE: shutdownApp,
}

// SetVersion sets the build information reported by the version and update
// commands
func SetVersion(v, built string) {
	version = v
	buildTime = built
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
}

// initializeApp initializes the configuration and clients
func initializeApp(cmd *cobra.Command, args []string) error {
	// Load configuration
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logger
	logger = setupLogger(cfg.Logging)

	// Restore the login from the previous run
	authPath := cfg.Auth.File
	if authPath == "" {
		if authPath, err = session.DefaultAuthPath(); err != nil {
			return fmt.Errorf("failed to resolve auth file: %w", err)
		}
	}
	authStore = session.NewAuthStore(authPath)
	tokens = api.NewTokenHolder("")
	if _, err := authStore.Restore(tokens); err != nil {
		logger.Warn().Err(err).Msg("Failed to restore login, continuing logged out")
	}

	// Create API client
	registry = prometheus.NewRegistry()
	client, err = api.NewClient(cfg.API.BaseURL, tokens, logger,
		api.WithTimeout(cfg.API.Timeout),
		api.WithUserAgent(cfg.API.UserAgent),
		api.WithRateLimit(cfg.API.RateLimit, cfg.API.Burst),
		api.WithMetrics(registry),
	)
	if err != nil {
		return fmt.Errorf("failed to create API client: %w", err)
	}

	// Open the session store holding the pending booking
	kv, err := openSessionStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	bookings = session.NewBookingStore(kv, session.WithLogger(logger))
	watcher = booking.NewNavigationWatcher(bookings, logger)
	machine = booking.NewMachine(bookings, client, tokens, logger,
		booking.WithProfileHandler(func(user *api.User) {
			if err := authStore.SaveUser(user); err != nil {
				logger.Warn().Err(err).Msg("Failed to cache refreshed profile")
			}
		}),
	)
	machine.OnTransition(func(from, to booking.State) {
		logger.Debug().Str("from", from.String()).Str("to", to.String()).Msg("Booking step")
	})

	if route, ok := cmd.Annotations[routeAnnotation]; ok {
		if _, err := watcher.Navigate(cmd.Context(), route); err != nil {
			logger.Warn().Err(err).Str("route", route).Msg("Failed to update booking session")
		}
	}

	return nil
}

// shutdownApp releases backend connections and reports request metrics
func shutdownApp(cmd *cobra.Command, args []string) error {
	logRequestMetrics()
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Debug().Err(err).Msg("Failed to close resource")
		}
	}
	closers = nil
	return nil
}

// openSessionStore picks the session backend from config
func openSessionStore(cfg *config.Config) (session.KV, error) {
	switch cfg.Session.Backend {
	case "memory":
		return session.NewMemoryStore(), nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		closers = append(closers, rdb.Close)
		return session.NewRedisStore(rdb, sessionScope(cfg.Session), cfg.Session.TTL)
	default:
		return session.NewFileStore(cfg.Session.Dir, sessionScope(cfg.Session))
	}
}

// sessionScope is the configured scope, or one per terminal: every command
// run from the same shell shares the parent process id
func sessionScope(cfg config.SessionConfig) string {
	if cfg.Scope != "" {
		return cfg.Scope
	}
	return fmt.Sprintf("tty-%d", os.Getppid())
}

// setupLogger configures the zerolog logger
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "trace":
		level = zerolog.TraceLevel
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Configure output format
	if cfg.Format == "json" {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	// Console format
	noColor := !cfg.Color || !isatty.IsTerminal(os.Stderr.Fd())
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    noColor,
	}

	return zerolog.New(output).With().Timestamp().Logger()
}

// logRequestMetrics writes the request counters gathered during the command
func logRequestMetrics() {
	if registry == nil {
		return
	}
	families, err := registry.Gather()
	if err != nil {
		logger.Debug().Err(err).Msg("Failed to gather request metrics")
		return
	}
	for _, mf := range families {
		if mf.GetName() != "epoch_api_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			event := logger.Debug()
			for _, label := range m.GetLabel() {
				event = event.Str(label.GetName(), label.GetValue())
			}
			event.Float64("count", m.GetCounter().GetValue()).Msg("API requests")
		}
	}
}

// withRoute marks cmd as a client route for the navigation watcher
func withRoute(cmd *cobra.Command, route string) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[routeAnnotation] = route
	return cmd
}

// requireArg returns a trimmed positional argument or a usage error
func requireArg(args []string, name string) (string, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return strings.TrimSpace(args[0]), nil
}
