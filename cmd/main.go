package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frisbee-cz/evidence/clients"
	"github.com/frisbee-cz/evidence/config"
	"github.com/frisbee-cz/evidence/db"
	"github.com/frisbee-cz/evidence/handlers"
	"github.com/frisbee-cz/evidence/middleware"
	"github.com/frisbee-cz/evidence/notifications"
	"github.com/frisbee-cz/evidence/repositories"
	"github.com/frisbee-cz/evidence/routes"
	"github.com/frisbee-cz/evidence/services"
	"github.com/frisbee-cz/evidence/storage"
	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
)

const (
	draftResendInterval  = 10 * time.Minute
	invoiceCheckInterval = time.Hour
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	uploader, err := storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2Bucket,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	})
	if err != nil {
		logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Cloudflare R2 uploader initialized")

	hub := notifications.NewHub(logger)
	go hub.Run()
	logger.Info("notification hub started")

	agentRepo := repositories.NewPostgresAgentRepository(dbConn)
	clubRepo := repositories.NewPostgresClubRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	memberRepo := repositories.NewPostgresMemberRepository(dbConn)
	seasonRepo := repositories.NewPostgresSeasonRepository(dbConn)
	competitionRepo := repositories.NewPostgresCompetitionRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	applicationRepo := repositories.NewPostgresApplicationRepository(dbConn)
	rosterRepo := repositories.NewPostgresRosterRepository(dbConn)
	transferRepo := repositories.NewPostgresTransferRepository(dbConn)
	invoiceRepo := repositories.NewPostgresInvoiceRepository(dbConn)
	internationalRepo := repositories.NewPostgresInternationalRepository(dbConn)
	logger.Info("repositories initialized")

	emailService := services.NewEmailService(cfg, logger)
	fakturoidClient := clients.NewHTTPFakturoidClient(
		cfg.FakturoidBaseURL,
		cfg.FakturoidAccountSlug,
		cfg.FakturoidClientID,
		cfg.FakturoidClientSecret,
	)

	authService := services.NewAuthService(agentRepo, cfg.JWTSecretKey, logger)
	clubService := services.NewClubService(clubRepo, teamRepo, agentRepo, uploader, emailService, hub, logger)
	memberService := services.NewMemberService(
		memberRepo,
		agentRepo,
		clubRepo,
		emailService,
		services.MemberConfig{EmailRequired: cfg.EmailVerificationRequired},
		logger,
	)
	competitionService := services.NewCompetitionService(
		dbConn,
		seasonRepo,
		competitionRepo,
		tournamentRepo,
		applicationRepo,
		teamRepo,
		agentRepo,
		clubService,
		logger,
	)
	rosterService := services.NewRosterService(
		rosterRepo,
		tournamentRepo,
		competitionRepo,
		seasonRepo,
		memberRepo,
		agentRepo,
		internationalRepo,
		clubService,
		services.RosterConfig{
			EmailVerificationRequired:  cfg.EmailVerificationRequired,
			MinAgeVerificationRequired: cfg.MinAgeVerificationRequired,
			NationalTeamClubID:         cfg.NationalTeamClubID,
		},
		logger,
	)
	transferService := services.NewTransferService(
		dbConn,
		transferRepo,
		memberRepo,
		clubRepo,
		agentRepo,
		clubService,
		logger,
	)
	feeService := services.NewFeeService(
		seasonRepo,
		competitionRepo,
		rosterRepo,
		internationalRepo,
		emailService,
		logger,
	)
	invoiceService := services.NewInvoiceService(
		repositories.NewTxBeginner(dbConn),
		seasonRepo,
		clubRepo,
		invoiceRepo,
		applicationRepo,
		competitionRepo,
		feeService,
		fakturoidClient,
		clubService,
		emailService,
		logger,
	)
	exportService := services.NewExportService(memberRepo, feeService, emailService, logger)
	internationalService := services.NewInternationalService(
		internationalRepo,
		teamRepo,
		competitionRepo,
		agentRepo,
		cfg.NationalTeamClubID,
		logger,
	)
	logger.Info("services initialized")

	// Draft invoices that failed to reach Fakturoid are retried, and open
	// invoices are reconciled against Fakturoid payment status.
	go func() {
		resend := time.NewTicker(draftResendInterval)
		check := time.NewTicker(invoiceCheckInterval)
		defer resend.Stop()
		defer check.Stop()
		logger.Info("invoice scheduler started",
			slog.Duration("resend_interval", draftResendInterval),
			slog.Duration("check_interval", invoiceCheckInterval),
		)

		for {
			select {
			case <-resend.C:
				if err := invoiceService.ResendDraftInvoices(context.Background()); err != nil {
					logger.Error("scheduler: draft invoice resend failed", slog.Any("error", err))
				}
			case <-check.C:
				if err := invoiceService.CheckFakturoidInvoices(context.Background()); err != nil {
					logger.Error("scheduler: invoice status check failed", slog.Any("error", err))
				}
			}
		}
	}()

	authenticator := middleware.NewAuthenticator(cfg.JWTSecretKey)
	authHandler := handlers.NewAuthHandler(authService)
	clubHandler := handlers.NewClubHandler(clubService)
	memberHandler := handlers.NewMemberHandler(memberService)
	competitionHandler := handlers.NewCompetitionHandler(competitionService)
	rosterHandler := handlers.NewRosterHandler(rosterService)
	transferHandler := handlers.NewTransferHandler(transferService)
	financeHandler := handlers.NewFinanceHandler(invoiceService, feeService, exportService, authService, cfg.FeesCheckEmail)
	internationalHandler := handlers.NewInternationalHandler(internationalService)
	webSocketHandler := handlers.NewWebSocketHandler(hub, authenticator, agentRepo, logger)
	logger.Info("HTTP handlers initialized")

	router := chi.NewRouter()
	routes.SetupRoutes(
		router,
		authenticator,
		authHandler,
		clubHandler,
		memberHandler,
		competitionHandler,
		rosterHandler,
		transferHandler,
		financeHandler,
		internationalHandler,
		webSocketHandler,
	)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shut down gracefully")
	}
}
