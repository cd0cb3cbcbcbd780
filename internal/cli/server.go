package cli

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.uber.org/zap"

	"daily-puzzle-service/internal/app"
	"daily-puzzle-service/internal/clock"
	"daily-puzzle-service/internal/config"
	"daily-puzzle-service/internal/infra/memory"
	pginfra "daily-puzzle-service/internal/infra/postgres"
	redisinfra "daily-puzzle-service/internal/infra/redis"
	"daily-puzzle-service/internal/notify"
	transport "daily-puzzle-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the puzzle competition server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// stores bundles the durable ports; memory and postgres both satisfy it.
type stores interface {
	app.ProblemStore
	app.Ledger
	app.RatingStore
	app.StreakStore
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	clk := clock.New(loc)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var store stores = memory.NewStore()
	if cfg.Postgres.URL != "" {
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		db := bun.NewDB(sqldb, pgdialect.New())
		defer db.Close()

		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()

		store = pginfra.NewStore(db, pool)
	}

	cacheTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
	var cache app.ProblemCache = memory.NewProblemCache(store, cacheTTL)
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cache = redisinfra.NewProblemCache(redisClient, store, cacheTTL)
	}

	rules := app.DefaultRules()
	rules.BasePoints = config.IntOrDefault(cfg.Competition.BasePoints, rules.BasePoints)
	if secs := cfg.Competition.DecayIntervalSeconds; secs > 0 {
		rules.DecayInterval = time.Duration(secs) * time.Second
	}
	rules.WrongPenalty = config.IntOrDefault(cfg.Competition.WrongPenalty, rules.WrongPenalty)
	rules.AuthorBonus = config.IntOrDefault(cfg.Competition.AuthorBonusPerSolve, rules.AuthorBonus)
	if hours := cfg.Competition.MaxDecayHours; hours > 0 {
		rules.MaxDecay = time.Duration(hours) * time.Hour
	}
	if window := config.TTLDuration(cfg.Competition.Window, 0); window > 0 {
		rules.Window = window
	}

	notifier := notify.NewLogNotifier(logger)
	streaks := app.NewStreakTracker(store, clk)
	review := app.NewReviewService(store, cache, clk, notifier, logger)
	scoring := app.NewScoringEngine(cache, store, streaks, rules, clk, logger)
	scheduler := app.NewScheduler(store, cache, rules, clk, notifier, logger, loc)
	leaderboards := app.NewLeaderboardService(store, store, store, store, clk)
	admin := app.NewAdminService(store, store, clk, logger)
	ratings := app.NewRatingService(store, store, store, clk)

	schedule := cfg.Competition.DailySchedule
	if schedule == "" {
		schedule = "0 12 * * *"
	}
	if err := scheduler.Start(schedule); err != nil {
		return err
	}
	defer scheduler.Stop()

	hub := transport.NewHub()
	handler := transport.NewHandler(review, scoring, scheduler, leaderboards, admin, ratings, hub, logger)

	mux := http.NewServeMux()
	handler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting puzzle service", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
