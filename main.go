package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/example/eye-diagnosis/internal/auth"
	"github.com/example/eye-diagnosis/internal/config"
	"github.com/example/eye-diagnosis/internal/diagnosis"
	"github.com/example/eye-diagnosis/internal/handlers"
	"github.com/example/eye-diagnosis/internal/inference"
	"github.com/example/eye-diagnosis/internal/logging"
	"github.com/example/eye-diagnosis/internal/store"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	logger, err := logging.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	cfg := config.Load()
	if err := cfg.EnsureUploadDir(); err != nil {
		logger.Fatal("failed to create upload directory", zap.Error(err))
	}

	// Dependencies that may be down at boot are wired in lazily so the
	// process comes up degraded instead of refusing to start; /health
	// reports which of them is unavailable.
	mongoClient, err := store.Connect(ctx, cfg.MongoURI)
	if err != nil {
		logger.Fatal("invalid mongo configuration", zap.Error(err))
	}
	defer mongoClient.Disconnect(context.Background()) //nolint:errcheck
	db := mongoClient.Database(cfg.MongoDB)

	users := store.NewUserStore(db)
	history := store.NewHistoryStore(db)
	if err := users.EnsureIndexes(ctx); err != nil {
		logger.Warn("could not ensure user indexes, continuing degraded", zap.Error(err))
	}

	cache := initCache(ctx, cfg.RedisAddr, logger)

	classifier, conn, err := inference.Dial(ctx, cfg.ModelAddr, logger)
	if err != nil {
		logger.Fatal("invalid model server address", zap.Error(err))
	}
	defer conn.Close()

	authSvc := auth.NewService(users, logger)
	diagSvc := diagnosis.NewService(
		classifier,
		history,
		cache,
		func(ctx context.Context) error { return store.Ping(ctx, mongoClient) },
		cfg.UploadDir,
		logger,
	)

	r := gin.Default()
	r.MaxMultipartMemory = handlers.MaxUploadSize

	handlers.RegisterRoutes(r, authSvc, diagSvc, cfg.JWTSecret, auth.Middleware(cfg.JWTSecret))

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	logger.Info("diagnosis API listening", zap.String("addr", server.Addr))
	if err := serveHTTPServer(server, 15*time.Second, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func initCache(ctx context.Context, addr string, logger *zap.Logger) diagnosis.Cache {
	client := redis.NewClient(&redis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, prediction caching disabled", zap.Error(err), zap.String("addr", addr))
		return diagnosis.NoopCache{}
	}
	return diagnosis.NewRedisCache(client)
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithListener(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, listener, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
