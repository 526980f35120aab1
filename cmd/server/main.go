package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/auth"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/balance"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/config"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/handler"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/limiter"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/metrics"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/middleware"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/promo"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/rates"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/reclaimer"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/seal"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/service"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/settings"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/slip"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/store"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	// ── Configuration ──
	cfg := config.Load()
	log := config.NewLogger(cfg)

	// ── Redis ──
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("failed to connect to redis")
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("connected to redis")

	// ── SQL Store ──
	db, err := store.Open(store.DSN(cfg))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	st, err := store.New(db, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init store")
	}
	log.Info().Str("host", cfg.DBHost).Str("db", cfg.DBName).Msg("database initialised")

	// ── Settings ──
	sets := settings.NewStore(db, rdb, cfg.SettingsCacheTTL, log)
	// Seeding never overwrites a stored key, so the file goes first and the
	// env defaults fill whatever it leaves out.
	if cfg.SettingsSeedFile != "" {
		docs, err := settings.LoadSeedFile(cfg.SettingsSeedFile)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to read settings seed file")
		}
		if err := sets.Seed(ctx, docs); err != nil {
			log.Fatal().Err(err).Msg("failed to seed settings from file")
		}
	}
	if err := sets.Seed(ctx, settings.Defaults(cfg)); err != nil {
		log.Fatal().Err(err).Msg("failed to seed settings")
	}
	resolver := rates.NewResolver(sets, settings.DefaultCreditRates(cfg), log)

	var sealer *seal.Sealer
	if cfg.ConfigSealKey != "" {
		if sealer, err = seal.New(cfg.ConfigSealKey); err != nil {
			log.Fatal().Err(err).Msg("invalid CONFIG_SEAL_KEY")
		}
	} else {
		log.Warn().Msg("CONFIG_SEAL_KEY not set, reservations carry no prompt config")
	}

	// ── Auth ──
	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init token issuer")
	}
	userSvc := auth.NewUserService(db)
	ledger := balance.NewLedger(db)

	// ── WebSocket Hub & Metrics ──
	hub := ws.NewHub(log)
	m := metrics.New()

	// ── Services ──
	promos := promo.NewService(db, cfg.NewUserWindow, log)
	if cfg.SlipVerifyURL == "" {
		log.Warn().Msg("SLIP_VERIFY_URL not set, top-ups will fail")
	}
	verifier := slip.NewHTTPVerifier(cfg.SlipVerifyURL, cfg.SlipVerifyAPIKey, cfg.SlipVerifyTimeout, log)
	jobs := service.NewJobService(st, resolver, sets, sealer, hub, m, cfg, log)
	topups := service.NewTopUpService(db, verifier, promos, sets, hub, m, cfg, log)

	// ── Reclaimer (background) ──
	rec, err := reclaimer.New(jobs, promos, rdb, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init reclaimer")
	}
	rec.Start()

	// ── Gin Router ──
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.Logger(log, m))
	r.Use(middleware.IPRateLimit(cfg.IPRateLimit, cfg.IPRateBurst))

	userAuth := middleware.BearerAuth(tokens, userSvc)
	adminAuth := middleware.AdminTokenAuth(cfg.AdminToken)
	topupLimit := middleware.UserRateLimit(limiter.New(rdb, "topup"), cfg.TopupRateLimit, cfg.TopupRateWindow, log)

	h := handler.NewHandler(db, rdb, hub, m, log)
	authHandler := handler.NewAuthHandler(userSvc, tokens, log)
	userHandler := handler.NewUserHandler()
	jobHandler := handler.NewJobHandler(jobs, log)
	creditHandler := handler.NewCreditHandler(topups, ledger, resolver, log)
	adminHandler := handler.NewAdminHandler(userSvc, ledger, jobs, promos, sets, hub, log)

	h.RegisterRoutes(r, userAuth)
	authHandler.RegisterRoutes(r)

	api := r.Group("", userAuth)
	userHandler.RegisterRoutes(api)
	jobHandler.RegisterRoutes(api)
	creditHandler.RegisterRoutes(api, topupLimit)

	adminHandler.RegisterRoutes(r.Group("/admin", adminAuth))
	adminHandler.RegisterSystemRoutes(r.Group("/system", adminAuth))

	// ── HTTP Server with graceful shutdown ──
	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", cfg.ServerAddr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen error")
		}
	}()

	// ── Graceful Shutdown ──
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")
	<-rec.Stop().Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	st.Close()
	_ = rdb.Close()
	log.Info().Msg("server exited cleanly")
}
