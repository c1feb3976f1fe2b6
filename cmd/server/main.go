package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/tenant-branding-service/internal/api"
	"github.com/teresa-solution/tenant-branding-service/internal/auth"
	"github.com/teresa-solution/tenant-branding-service/internal/branding"
	"github.com/teresa-solution/tenant-branding-service/internal/config"
	"github.com/teresa-solution/tenant-branding-service/internal/crypto"
	"github.com/teresa-solution/tenant-branding-service/internal/identity"
	"github.com/teresa-solution/tenant-branding-service/internal/monitoring"
	"github.com/teresa-solution/tenant-branding-service/internal/notify"
	"github.com/teresa-solution/tenant-branding-service/internal/objectstore"
	"github.com/teresa-solution/tenant-branding-service/internal/service"
	"github.com/teresa-solution/tenant-branding-service/internal/store"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	setupLogger(cfg.Log)

	if err := crypto.Configure(cfg.Crypto.Key); err != nil {
		log.Fatal().Err(err).Msg("Invalid encryption key")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.NewPool(ctx, cfg.Database.DSN, store.PoolConfig{
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	cache := store.NewTenantCache(redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}), cfg.Redis.CacheTTL)
	defer cache.Close()

	tenants := store.NewTenantRepository(pool, cache)
	users := store.NewUserRepository(pool)
	notifications := store.NewNotificationRepository(pool)
	sagas := store.NewProvisioningRepository(pool)

	// Initialize metrics
	monitoring.InitMetrics()

	resolver := branding.NewResolver(tenants)
	mutator := branding.NewMutator(tenants)

	var uploader service.LogoUploader
	if cfg.ObjectStore.AccessKey != "" {
		u, err := objectstore.NewUploader(objectstore.Config{
			Endpoint:  cfg.ObjectStore.Endpoint,
			AccessKey: cfg.ObjectStore.AccessKey,
			SecretKey: cfg.ObjectStore.SecretKey,
			Bucket:    cfg.ObjectStore.Bucket,
			UseSSL:    cfg.ObjectStore.UseSSL,
			PublicURL: cfg.ObjectStore.PublicURL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create object store client")
		}
		uploader = u
	} else {
		log.Warn().Msg("Object store credentials not set, logo uploads disabled")
	}

	provisioning := service.NewProvisioningService(uploader, identity.NewProvider(users), tenants, mutator, sagas,
		service.ProvisioningOptions{
			MaxLogoBytes:     cfg.ObjectStore.MaxLogoBytes,
			BrandingAttempts: cfg.Provisioning.BrandingAttempts,
			BrandingBackoff:  cfg.Provisioning.BrandingBackoff,
		})
	go provisioning.RunRepairWorker(ctx)
	if _, err := provisioning.ResumePartial(ctx, sagas); err != nil {
		log.Error().Err(err).Msg("Failed to load partial provisioning sagas")
	}

	sender := notify.NewSender(cfg.Notify.PushURL, cfg.Notify.Timeout)
	defer sender.Close()
	notifier := notify.NewNotifier(notifications, sender)
	tokens := notify.NewTokenRegistrar(nil, nil, users)

	var (
		desktops service.DesktopLocator
		sessions api.SessionManager
	)
	nc, err := connectNATS(cfg.NATS)
	if err != nil {
		log.Warn().Err(err).Msg("NATS unavailable, desktop notifications disabled")
	} else {
		defer nc.Drain()
		bus := notify.NewNATSBus(nc)
		feed := notify.NewChangeFeed(notifications)
		go func() {
			if err := feed.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("Notification change feed stopped")
			}
		}()

		manager := notify.NewSessionManager(bus, feed, users, notify.BridgeOptions{
			SuppressDuplicates: cfg.Notify.SuppressDuplicates,
			SeenSetSize:        cfg.Notify.SeenSetSize,
		})
		defer manager.CloseAll()
		sessions = manager
		desktops = func(deviceID string) notify.DesktopBridge {
			return notify.NewBusDesktop(bus, deviceID)
		}
	}

	var validator service.TokenValidator
	if cfg.JWT.Secret != "" {
		validator = auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Issuer)
	} else {
		log.Warn().Msg("JWT secret not set, all callers are anonymous")
	}

	brandingService := service.NewBrandingService(service.BrandingDeps{
		Resolver:    resolver,
		Mutator:     mutator,
		Provisioner: provisioning,
		Tokens:      tokens,
		Notifier:    notifier,
		Desktops:    desktops,
		Auth:        validator,
	})

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to listen")
	}

	server := grpc.NewServer()
	service.RegisterBrandingService(server, brandingService)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus(service.BrandingServiceName, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(server)

	go func() {
		log.Info().Msgf("gRPC server listening at %v", lis.Addr())
		if err := server.Serve(lis); err != nil {
			log.Fatal().Err(err).Msg("Failed to start gRPC server")
		}
	}()

	httpServer := api.NewServer(api.Deps{
		Resolver:     resolver,
		Mutator:      mutator,
		Provisioner:  provisioning,
		Tokens:       tokens,
		Notifier:     notifier,
		Desktops:     desktops,
		Sessions:     sessions,
		Auth:         validator,
		MaxLogoBytes: cfg.ObjectStore.MaxLogoBytes,
		AllowOrigins: cfg.Server.AllowOrigins,
	}, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)

	go func() {
		if err := httpServer.ListenAndServe(fmt.Sprintf(":%d", cfg.Server.HTTPPort)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	healthServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	server.GracefulStop()
	log.Info().Msg("Server exiting")
}

func setupLogger(cfg config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.Format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func connectNATS(cfg config.NATSConfig) (*nats.Conn, error) {
	return nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	)
}
