package main

import (
	"context"
	"crypto/tls"
	"errors"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NomadCrew/feedback-attestation/config"
	apperrors "github.com/NomadCrew/feedback-attestation/errors"
	"github.com/NomadCrew/feedback-attestation/handlers"
	"github.com/NomadCrew/feedback-attestation/internal/store"
	"github.com/NomadCrew/feedback-attestation/logger"
	"github.com/NomadCrew/feedback-attestation/models"
	"github.com/NomadCrew/feedback-attestation/pkg/eas"
	"github.com/NomadCrew/feedback-attestation/pkg/wallet"
	"github.com/NomadCrew/feedback-attestation/router"
	"github.com/NomadCrew/feedback-attestation/services"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	logger.InitLogger()
	log := logger.GetLogger()
	defer logger.Close()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	// Ethereum node
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	ethClient, err := ethclient.DialContext(dialCtx, cfg.Ethereum.RPCURL)
	cancel()
	if err != nil {
		log.Fatalf("Failed to connect to Ethereum RPC %s: %v", logger.MaskRPCURL(cfg.Ethereum.RPCURL), err)
	}
	defer ethClient.Close()

	chainID := big.NewInt(cfg.Ethereum.ChainID)
	if cfg.Ethereum.ChainID == 0 {
		idCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		chainID, err = ethClient.ChainID(idCtx)
		cancel()
		if err != nil {
			log.Fatalf("Failed to query chain id: %v", err)
		}
	}
	log.Infow("Connected to Ethereum node", "chain_id", chainID.String())

	// Wallet
	provider, err := wallet.NewProviderFromConfig(cfg.Wallet, chainID)
	if apperrors.IsType(err, apperrors.ProviderUnavailableError) {
		log.Warnw("Wallet provider unavailable, submissions will fail", "error", err)
		provider, err = nil, nil
	}
	if err != nil {
		log.Fatalf("Failed to initialize wallet provider: %v", err)
	}
	if provider == nil {
		log.Warn("No wallet configured: attestation submissions will fail until WALLET_MODE is set")
	}
	if ext, ok := provider.(*wallet.ExternalProvider); ok {
		defer ext.Close()
	}

	registry, err := eas.NewClient(common.HexToAddress(cfg.Attestation.EASContractAddress), ethClient)
	if err != nil {
		log.Fatalf("Failed to bind EAS contract: %v", err)
	}

	// Redis
	var redisClient *redis.Client
	if cfg.RedisEnabled() {
		redisOptions := &redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		}
		if cfg.Redis.UseTLS {
			redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient = redis.NewClient(redisOptions)
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Warnw("Redis not reachable at startup", "error", err)
		}
		cancel()
	}

	var formStore store.FormStore
	switch cfg.Forms.Store {
	case "redis":
		formStore = store.NewRedisFormStore(redisClient, cfg.Forms.SessionTTL())
	default:
		formStore = store.NewMemoryFormStore(cfg.Forms.SessionTTL())
	}

	// Services
	attestationService := services.NewAttestationService(provider, registry, cfg.Attestation)
	encodeOpts := models.EncodeOptions{
		FeedbackSchemaUID:  common.HexToHash(cfg.Attestation.FeedbackSchemaUID),
		NotUsefulSchemaUID: common.HexToHash(cfg.Attestation.NotUsefulSchemaUID),
		PermissiveNumbers:  cfg.Encoder.PermissiveNumbers,
	}
	for _, m := range encodeOpts.SchemaUIDMismatches() {
		log.Warnw("Configured schema UID differs from the derived registry UID",
			"schema", m.Schema,
			"configured", m.Configured.Hex(),
			"derived", m.Derived.Hex(),
		)
	}
	feedbackService := services.NewFeedbackService(formStore, attestationService, attestationService, encodeOpts)
	// A submit claim must outlive the confirmation wait it guards.
	if timeout := cfg.Attestation.ConfirmationTimeout(); timeout > 0 {
		feedbackService.SetSubmitClaimTTL(timeout + time.Minute)
	}
	healthService := services.NewHealthService(ethClient, redisClient, provider != nil, cfg.Server.Version)

	deps := router.Dependencies{
		Config:          cfg,
		FeedbackHandler: handlers.NewFeedbackHandler(feedbackService),
		HealthHandler:   handlers.NewHealthHandler(healthService),
		Logger:          log,
	}
	if redisClient != nil {
		deps.RateLimiter = services.NewRateLimitService(redisClient)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router.SetupRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Infof("Starting server on port %s", cfg.Server.Port)
		errChan <- srv.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	case sig := <-sigChan:
		log.Infow("Shutting down", "signal", sig.String())
		// Confirmation waits can be long; give in-flight submissions time to finish.
		shutdownCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorw("Graceful shutdown failed", "error", err)
		}
	}
}
