package main

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dkwon/balancebook/internal/api"
	"github.com/dkwon/balancebook/internal/config"
	"github.com/dkwon/balancebook/internal/lock"
	"github.com/dkwon/balancebook/internal/service"
	"github.com/dkwon/balancebook/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg.Env)
	defer logger.Sync()

	ctx := context.Background()

	dbPool, err := store.Connect(ctx, cfg.DBSource)
	if err != nil {
		logger.Fatal("unable to connect to database", zap.Error(err))
	}
	defer dbPool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("unable to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	locker := lock.NewManager(redisClient, lock.Config{
		WaitTimeout:  cfg.LockWait,
		LeaseTimeout: cfg.LockLease,
		RetryDelay:   lock.DefaultConfig().RetryDelay,
	}, logger)

	ledgerStore := store.NewPostgres(dbPool)
	engine := service.NewTransactionService(ledgerStore, logger)
	transactions := service.NewLockedTransactionService(engine, locker, logger)
	accounts := service.NewAccountService(ledgerStore, logger)
	handler := api.NewHandler(transactions, accounts, logger)

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	handler.Routes(r)

	logger.Info("server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(env string) *zap.Logger {
	if env == "production" {
		logger, err := zap.NewProduction()
		if err != nil {
			panic(err)
		}
		return logger
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	return logger
}
