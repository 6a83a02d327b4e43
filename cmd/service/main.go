package main

import (
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"warehouse-service/config"
	"warehouse-service/internal/cache"
	"warehouse-service/internal/producer"
	"warehouse-service/internal/repository"
	"warehouse-service/internal/service"
	gtransport "warehouse-service/internal/transport/grpc"
	"warehouse-service/pkg/database"
	"warehouse-service/pkg/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	_ = godotenv.Load()
	isDev := os.Getenv("ENV") == "development"
	if err := logger.Init(isDev); err != nil {
		panic(err)
	}

	defer logger.Sync()

	log := logger.L()

	cfg := config.Load(log)
	db := database.ConnectDB(&cfg.DB.Config, log)
	defer database.CloseDB(db, log)

	txOpts := repository.DefaultTxOptions()
	txOpts.LockTimeout = cfg.Ledger.LockTimeout
	txOpts.MaxRetries = cfg.Ledger.MaxRetries
	txOpts.OnRetry = func(attempt int, err error) {
		log.Warn("Повтор транзакции после конфликта", zap.Int("attempt", attempt), zap.Error(err))
	}
	repos := repository.NewWithOptions(db, txOpts)

	var opts []service.Option
	if cfg.Redis.Enabled {
		rc, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			log.Fatal("Не удалось подключиться к Redis", zap.Error(err))
		}
		defer rc.Close()
		opts = append(opts, service.WithStockCache(cache.NewStockCache(rc, time.Duration(cfg.Redis.TTLSeconds)*time.Second)))
	}
	if len(cfg.Kafka.Brokers) > 0 {
		prod := producer.NewMovementProducer(cfg.Kafka.Brokers, cfg.Kafka.MovementsTopic)
		defer prod.Close()
		opts = append(opts, service.WithEventBus(prod))
		log.Info("Публикация движений в Kafka включена", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.MovementsTopic))
	}

	inventory := service.NewInventoryService(repos, log, opts...)
	production := service.NewProductionService(repos, log, opts...)

	lis, err := net.Listen("tcp", cfg.Port)
	if err != nil {
		log.Fatal("failed to listen", zap.Error(err))
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(gtransport.NewLoggingUnaryServerInterceptor(log)),
	)

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthSrv.SetServingStatus(gtransport.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(grpcServer, healthSrv)

	reflection.Register(grpcServer)

	gtransport.Register(grpcServer, gtransport.NewHandler(inventory, production, service.NewResolver(repos, log)))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("Starting Warehouse gRPC server", zap.String("addr", cfg.Port))
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatal("gRPC server failed", zap.Error(err))
		}
	}()

	<-quit
	log.Info("Shutting down Warehouse gRPC server...")
	healthSrv.Shutdown()
	grpcServer.GracefulStop()
	log.Info("Warehouse gRPC server stopped gracefully")
}
