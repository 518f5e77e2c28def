package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"rezerv/internal/api"
	"rezerv/internal/booking"
	"rezerv/internal/config"
	"rezerv/internal/events"
	"rezerv/internal/export"
	"rezerv/internal/metrics"
	"rezerv/internal/model"
	"rezerv/internal/notify"
	"rezerv/internal/session"
)

func main() {
	var (
		companySlug = flag.String("company", "", "company url slug")
		date        = flag.String("date", time.Now().Format(model.DateLayout), "calendar date (YYYY-MM-DD)")
		serviceID   = flag.String("service", "", "service id to book")
		timeLabel   = flag.String("time", "", "time label to pick (HH:00)")
		save        = flag.Bool("save", false, "confirm and submit the pending selection")
		cancelID    = flag.String("cancel", "", "booking id to cancel")
		exportPath  = flag.String("export", "", "write the user's reservations to this .xlsx file")
	)
	flag.Parse()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("REZERV_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.API.BaseURL == "" {
		logger.Fatal().Msg("set api.base_url in config")
	}

	store, err := session.Open(cfg.Session.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open session store")
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := store.Hydrate(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("hydrate session")
	}

	token := sess.Token
	if token == "" {
		token = cfg.API.Token
	}
	client := api.NewClient(cfg.API.BaseURL, token, sess.Language)
	if cfg.Redis.Address != "" && cfg.CacheTTL() > 0 {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		client.UseRedisCache(rdb, cfg.CacheTTL())
	}
	if cfg.API.RateLimitPerSecond > 0 {
		client.SetRateLimit(cfg.API.RateLimitPerSecond, cfg.API.RateLimitBurst)
	}

	if cfg.Monitoring.PrometheusEnabled {
		port := cfg.Monitoring.PrometheusPort
		if port == 0 {
			port = 9090
		}
		metrics.Register()
		go startMetricsServer(port, &logger)
	}

	slug := *companySlug
	if slug == "" && sess.SelectedCompany == "" {
		logger.Fatal().Msg("pass -company or select one first")
	}

	bus := events.NewBus()
	bus.SubscribeAll(func(e events.Event) {
		switch e.Type {
		case events.TypeBookingFailed:
			logger.Error().Err(e.Err).Msg(e.Message)
		case events.TypeWarning, events.TypeAuthRequired:
			logger.Warn().Msg(e.Message)
		default:
			logger.Info().Msg(e.Message)
		}
	})
	if cfg.Telegram.Enabled && cfg.Telegram.BotToken != "" {
		tg, err := notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram notifier disabled")
		} else {
			tg.Attach(bus)
		}
	}

	var company *model.Company
	if slug != "" {
		company, err = client.CompanyByURL(ctx, slug)
		if err != nil {
			logger.Fatal().Err(err).Str("company", slug).Msg("resolve company")
		}
		if err := store.SetSelectedCompany(ctx, company.ID); err != nil {
			logger.Warn().Err(err).Msg("remember selected company")
		}
	} else {
		company = &model.Company{ID: sess.SelectedCompany}
	}

	orch := booking.NewOrchestrator(client, store, bus, logger)
	orch.SetUser(sess.UserID)
	orch.SetCompany(company.ID, "/reserve/"+slug)
	orch.SetDate(*date)
	orch.Refresh(ctx)

	if *serviceID != "" {
		if err := orch.SelectService(ctx, *serviceID); err != nil {
			logger.Fatal().Err(err).Msg("select service")
		}
	}
	if *timeLabel != "" {
		if err := orch.SelectTime(*date, *timeLabel); err != nil {
			logger.Fatal().Err(err).Msg("select time")
		}
	}
	if *save {
		if _, err := orch.ConfirmSave(ctx); err != nil {
			os.Exit(1)
		}
	}
	if *cancelID != "" {
		if err := orch.RequestDelete(*cancelID); err != nil {
			logger.Fatal().Err(err).Msg("request delete")
		}
		if err := orch.ConfirmDelete(ctx); err != nil {
			os.Exit(1)
		}
	}

	if *exportPath != "" {
		f, err := os.Create(*exportPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("create export file")
		}
		defer f.Close()
		if err := export.WriteBookings(f, orch.UserBookings(), orch.Services()); err != nil {
			logger.Fatal().Err(err).Msg("export reservations")
		}
		logger.Info().Str("path", *exportPath).Msg("reservations exported")
	}

	printDay(orch, *date)
}

func printDay(orch *booking.Orchestrator, date string) {
	fmt.Printf("slots for %s:\n", date)
	for _, t := range orch.SelectableTimes() {
		st := orch.TimeStatus(t)
		marker := " "
		switch {
		case st.UserBooking != nil:
			marker = "*" // booked by you
		case st.IsActive:
			marker = ">" // pending pick
		}
		fmt.Printf("  %s %s\n", marker, t)
	}
	for _, b := range orch.UserBookings() {
		fmt.Printf("reserved: %s %s %v [%s]\n", b.ServiceID, b.SelectedDate, b.SelectedTimes, b.Status)
	}
}

func startMetricsServer(port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	logger.Info().Str("addr", addr).Msg("metrics server listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("metrics server stopped")
	}
}
