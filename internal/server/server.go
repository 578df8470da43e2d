// Package server is the composition root: it wires the database, session
// store, external clients, services and handlers into one chi router, and
// owns the process lifecycle (serve, sweep ticker, graceful shutdown).
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"

	"github.com/sakif/editorial-bot/internal/auth"
	"github.com/sakif/editorial-bot/internal/bot"
	"github.com/sakif/editorial-bot/internal/completion/deepseek"
	"github.com/sakif/editorial-bot/internal/config"
	"github.com/sakif/editorial-bot/internal/gate"
	"github.com/sakif/editorial-bot/internal/handler"
	"github.com/sakif/editorial-bot/internal/middleware"
	"github.com/sakif/editorial-bot/internal/payment/yoomoney"
	sqliteRepo "github.com/sakif/editorial-bot/internal/repository/sqlite"
	"github.com/sakif/editorial-bot/internal/service"
	"github.com/sakif/editorial-bot/internal/session"
)

// Server owns the HTTP router and every long-lived resource behind it.
type Server struct {
	router   *chi.Mux
	cfg      *config.Config
	logger   *slog.Logger
	db       *sqliteRepo.DB
	payments *service.PaymentService
}

// New assembles the whole dependency chain. Each layer receives only the
// interfaces it programs against; this function is the one place that knows
// the concrete types.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

func (s *Server) sessionStore() session.Store {
	if s.cfg.Session.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     s.cfg.Session.Redis.Addr,
			Password: s.cfg.Session.Redis.Password,
			DB:       s.cfg.Session.Redis.DB,
		})
		s.logger.Info("using redis session store", slog.String("addr", s.cfg.Session.Redis.Addr))
		return session.NewRedisStore(client, s.cfg.Session.TTL)
	}
	return session.NewMemoryStore()
}

func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// External collaborators.
	completer := deepseek.New(deepseek.Config{
		APIKey:      s.cfg.LLM.APIKey,
		BaseURL:     s.cfg.LLM.BaseURL,
		Model:       s.cfg.LLM.Model,
		MaxTokens:   s.cfg.LLM.MaxTokens,
		Temperature: s.cfg.LLM.Temperature,
		Timeout:     s.cfg.LLM.Timeout,
	}, s.logger)

	provider := yoomoney.New(yoomoney.Config{
		Token:          s.cfg.Payment.Token,
		ReceiverWallet: s.cfg.Payment.ReceiverWallet,
	}, s.logger)

	// Services.
	userSvc := service.NewUserService(s.db.Users(), s.logger)
	analysisSvc := service.NewAnalysisService(
		s.db.Users(),
		s.db.Analyses(),
		gate.New(s.cfg.Limits.MaxTextChars, s.cfg.Limits.MaxTokens, s.logger),
		completer,
		s.cfg,
		s.logger,
	)
	paymentSvc := service.NewPaymentService(
		s.db.Payments(),
		provider,
		s.cfg,
		s.cfg.Payment.TokenNamespace,
		s.cfg.Payment.ReceiverWallet,
		s.logger,
	)
	supportSvc := service.NewSupportService(s.db.Support(), s.logger)
	s.payments = paymentSvc

	dispatcher := bot.NewDispatcher(
		s.sessionStore(),
		userSvc,
		analysisSvc,
		paymentSvc,
		supportSvc,
		s.cfg.Roles,
		s.cfg.Tariffs,
		s.cfg.Limits.ReplyChunkLen,
		s.logger,
	)

	// Handlers.
	eventHandler := handler.NewEventHandler(dispatcher, s.logger)
	userHandler := handler.NewUserHandler(userSvc, s.logger)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/events", eventHandler.Handle)
		r.Get("/users/{id}/balance", userHandler.Balance)
	})

	// Operator routes are registered only when access is configured;
	// otherwise the bot runs headless and reconciliation relies on the
	// background sweep alone.
	if s.cfg.Operator.JWTSecret == "" {
		s.logger.Warn("operator.jwt_secret not set, operator API is disabled")
		return nil
	}

	tokens, err := auth.NewTokenService(s.cfg.Operator.JWTSecret, s.cfg.Operator.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	operatorHandler := handler.NewOperatorHandler(
		tokens,
		auth.NewPasswordService(),
		s.cfg.Operator.PasswordHash,
		supportSvc,
		paymentSvc,
		s.logger,
	)

	s.router.Route("/api/operator", func(r chi.Router) {
		r.Post("/login", operatorHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireOperator(tokens))
			r.Get("/support", operatorHandler.ListSupport)
			r.Put("/support/{id}/status", operatorHandler.SetSupportStatus)
			r.Get("/payments", operatorHandler.ListPayments)
			r.Post("/payments/sweep", operatorHandler.Sweep)
		})
	})

	return nil
}

// runSweeper runs the payment reconciliation sweep on a ticker until ctx is
// cancelled. It is the backstop for users who pay and never tap the
// confirmation control; Complete's idempotency makes overlap with
// user-triggered confirmations safe.
func (s *Server) runSweeper(ctx context.Context) {
	interval := s.cfg.Payment.SweepInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("payment sweep started", slog.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("payment sweep stopped")
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
			if _, err := s.payments.SweepPending(sweepCtx); err != nil {
				s.logger.Error("payment sweep failed", slog.String("error", err.Error()))
			}
			cancel()
		}
	}
}

// Start serves HTTP and blocks until SIGINT/SIGTERM or a fatal server
// error, then shuts down gracefully: stop accepting connections, drain
// in-flight requests, stop the sweeper, close the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // analysis requests wait on the completion call
		IdleTimeout:  60 * time.Second,
	}

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	if s.cfg.Payment.Token != "" {
		go s.runSweeper(sweepCtx)
	} else {
		s.logger.Warn("payment.token not set, reconciliation sweep is disabled")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Server.Port),
			slog.String("database", s.cfg.Database.Path),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
