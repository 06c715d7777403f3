package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "task_chat_service/docs"
	"task_chat_service/internal/chat/app"
	"task_chat_service/internal/chat/domain"
	"task_chat_service/internal/chat/repository"
	"task_chat_service/internal/chat/router"
	member_app "task_chat_service/internal/member/app"
	member_repository "task_chat_service/internal/member/repository"
	notify_app "task_chat_service/internal/notification/app"
	notify_repository "task_chat_service/internal/notification/repository"
	task_app "task_chat_service/internal/task/app"
	task_repository "task_chat_service/internal/task/repository"
	"task_chat_service/pkg/breaker"
	"task_chat_service/pkg/config"
	"task_chat_service/pkg/database"
	errprocess "task_chat_service/pkg/err"
	"task_chat_service/pkg/logger"
	testtool "task_chat_service/pkg/test_tool"
	t_token "task_chat_service/pkg/token"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"go.uber.org/zap"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// @title Task Chat Service
// @version 1.0
// @description realtime chat and unread sync for task participants
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	logger.Log = logger.Initialize(config.EnvConfig.ChatService, config.EnvConfig.ChatServiceLogPath)
	defer logger.Log.Sync()

	cfg := config.LoadConfig[config.Chat](config.EnvConfig.ChatService, config.EnvConfig.ChatServiceYAMLPath)
	cfg.ApplyDefaults()
	if cfg.JWT.Secret == "" {
		logger.Log.Fatal("jwt.secret is required")
	}
	if cfg.InstanceID == "" {
		host, _ := os.Hostname()
		cfg.InstanceID = fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
	}
	if config.EnvConfig.ChatServicePort != "" {
		cfg.Port = config.EnvConfig.ChatServicePort
	}

	testtool.StartPprof()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Mongo (rooms / messages / tasks)
	uri := fmt.Sprintf("mongodb://%s:%s@%s:%d", cfg.MongoSQL.User, cfg.MongoSQL.Password, cfg.MongoSQL.Host, cfg.MongoSQL.Port)
	mongo, err := database.NewMongoDB(ctx,
		database.Connection{
			ConnectStr:    uri,
			RetryCount:    cfg.MongoSQL.RetryCount,
			RetryInterval: time.Duration(cfg.MongoSQL.RetryInterval) * time.Second,
		},
		cfg.MongoSQL.Database)
	if err != nil {
		logger.Log.Fatal(
			"Unable to connect to mongoDB database after retries",
			zap.String("address", fmt.Sprintf("[%s:%d]", cfg.MongoSQL.Host, cfg.MongoSQL.Port)),
			zap.Error(err),
		)
	}
	defer mongo.Close(context.Background())

	roomRepo := repository.NewMongoChatRepository(mongo.Database)
	msgRepo := repository.NewMongoChatMessageRepository(mongo.Database)
	if err := roomRepo.EnsureIndexes(ctx); err != nil {
		logger.Log.Fatal("ensure room indexes", zap.Error(err))
	}
	if err := msgRepo.EnsureIndexes(ctx); err != nil {
		logger.Log.Fatal("ensure message indexes", zap.Error(err))
	}

	// 2. Redis (bus / presence / profile cache)
	redisClient, err := newRedis(cfg.Redis)
	if err != nil {
		logger.Log.Fatal("connect redis", zap.Error(err))
	}
	defer redisClient.Close()

	// 3. Postgres (member profile / devices)
	pgConn := database.Connection{
		ConnectStr: fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
			cfg.PostgreSQL.User, cfg.PostgreSQL.Password, cfg.PostgreSQL.Host, cfg.PostgreSQL.Port, cfg.PostgreSQL.Database),
		RetryCount:    cfg.PostgreSQL.RetryCount,
		RetryInterval: time.Duration(cfg.PostgreSQL.RetryInterval) * time.Second,
	}
	pool, err := database.NewDatabaseConnection(pgConn)
	if err != nil {
		logger.Log.Fatal("Unable to connect to postgreSQL database after retries", zap.Error(err))
	}
	defer pool.Close()

	gormDB, err := database.NewPGConnection(pgConn)
	if err != nil {
		logger.Log.Fatal("Unable to open gorm connection", zap.Error(err))
	}
	deviceRepo := member_repository.NewDeviceRepository(gormDB)
	if err := deviceRepo.AutoMigrate(); err != nil {
		logger.Log.Fatal("migrate member devices", zap.Error(err))
	}

	memberUC := member_app.NewMemberUseCase(
		member_repository.NewMemberRepository(pool),
		deviceRepo,
		database.NewRedisRepository[domain.ProfileSummary](redisClient, "chat:profile:"),
		cfg.ProfileCacheTTL,
	)

	// 4. MinIO (task pictures)，沒設定就直接回存的 url
	var signer task_repository.AssetSigner
	if cfg.MinIO.Host != "" {
		mc, err := database.NewMinIOConnection(database.MinIOConnection{
			Endpoint:      fmt.Sprintf("%s:%d", cfg.MinIO.Host, cfg.MinIO.Port),
			User:          cfg.MinIO.User,
			Password:      cfg.MinIO.Password,
			BucketName:    cfg.MinIO.BucketName,
			UseSSL:        cfg.MinIO.UseSSL,
			RetryCount:    cfg.MinIO.RetryCount,
			RetryInterval: cfg.MinIO.RetryInterval,
		})
		if err != nil {
			logger.Log.Warn("minio unavailable, task pictures not presigned", zap.Error(err))
		} else {
			signer = mc
		}
	}

	contexts := task_app.NewContextResolver(
		task_repository.NewTaskRepository(mongo.Database),
		signer,
		cfg.MinIO.PresignExpiry,
		breakerSettings("task-context", cfg.Breaker),
	)

	// 5. push dispatcher
	dispatcher, closeDispatcher, err := newDispatcher(cfg.Notify)
	if err != nil {
		logger.Log.Fatal("init push dispatcher", zap.Error(err))
	}
	defer closeDispatcher()
	notifier := notify_app.NewPushNotifier(memberUC, dispatcher, breakerSettings("push", cfg.Breaker))

	// 6. use case / gateway
	chatUC := app.NewChatUseCase(roomRepo, msgRepo, memberUC, contexts)
	syncUC := app.NewSyncUseCase(chatUC, roomRepo, msgRepo, memberUC, contexts, cfg.SyncSkew)
	hub := app.NewHub()
	gw := app.NewChatWebsocketHandler(
		cfg.InstanceID,
		chatUC,
		hub,
		repository.NewRedisPubSub(redisClient),
		repository.NewRedisPresenceRepository(redisClient),
		notifier,
		cfg.WS,
	)
	if err := gw.Start(ctx); err != nil {
		logger.Log.Fatal("subscribe broadcast bus", zap.Error(err))
	}

	// 7. grpc health
	grpcServer, healthServer, err := database.NewGRPCHealthServer(cfg.GRPCPort)
	if err != nil {
		logger.Log.Fatal("start grpc health", zap.Error(err))
	}
	healthServer.SetServingStatus(config.EnvConfig.ChatService, healthpb.HealthCheckResponse_SERVING)

	// 8. Fiber
	r := fiber.New(fiber.Config{
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
		BodyLimit:   int(cfg.WS.MaxMessageSize) * 4,
	})
	r.Use(recover.New())

	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.ChatServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()
	r.Use(fiber_log.New(fiber_log.Config{
		Output: file,
	}))

	router.RegisterRoutes(r, t_token.NewVerifier(cfg.JWT.Secret, cfg.JWT.VerifyExpiration), router.Handlers{
		Chat:    app.NewChatHandler(chatUC, syncUC, gw),
		Gateway: gw,
		Member:  member_app.NewMemberHandler(memberUC),
	})

	go func() {
		port := ":" + cfg.Port
		logger.Log.Info("Chat Service listening", zap.String("port", port), zap.String("instance", cfg.InstanceID))
		if err := r.Listen(port); err != nil {
			logger.Log.Fatal("Failed to start Fiber", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("shutting down chat service")
	healthServer.SetServingStatus(config.EnvConfig.ChatService, healthpb.HealthCheckResponse_NOT_SERVING)
	hub.CloseAll()
	if err := r.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Log.Warn("fiber shutdown", zap.Error(err))
	}
	cancel()
	gw.Wait()
	grpcServer.GracefulStop()
}

// newRedis Addr 有值走單機，否則用 .env 的 sentinel
func newRedis(c config.RedisConfig) (*redis.Client, error) {
	if c.Addr != "" {
		return database.NewRedisStandalone(c.Addr, c.Password, c.RedisDB)
	}
	masterName, sentinel := config.GetRedisSetting()
	return database.NewRedisClient(masterName, sentinel, c.RedisDB)
}

func newDispatcher(c config.NotifyConfig) (notify_repository.Dispatcher, func(), error) {
	switch c.Driver {
	case config.NotifyKafka:
		if len(c.Kafka.Brokers) == 0 {
			return nil, nil, errprocess.Set("notify.kafka.brokers is empty")
		}
		w, err := database.NewKafkaWriterWithRetry(database.KafkaConnection{
			Brokers:       c.Kafka.Brokers,
			Topic:         c.Kafka.Topic,
			RetryCount:    c.Kafka.RetryCount,
			RetryInterval: c.Kafka.RetryInterval,
		})
		if err != nil {
			return nil, nil, err
		}
		return notify_repository.NewKafkaDispatcher(w), func() { _ = w.Close() }, nil

	case config.NotifyRabbitMQ:
		conn, err := database.ConnectRabbitMQWithRetry(database.Connection{
			ConnectStr:    fmt.Sprintf("amqp://%s:%s@%s:%s/", c.RabbitMQ.User, c.RabbitMQ.Password, c.RabbitMQ.IP, c.RabbitMQ.Port),
			RetryCount:    c.RabbitMQ.RetryCount,
			RetryInterval: c.RabbitMQ.RetryInterval,
		})
		if err != nil {
			return nil, nil, err
		}
		ch, err := database.GetRabbitMQChannelWithRetry(conn, c.RabbitMQ.Queue, c.RabbitMQ.RetryCount, c.RabbitMQ.RetryInterval)
		if err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		closer := func() {
			_ = ch.Close()
			_ = conn.Close()
		}
		return notify_repository.NewRabbitDispatcher(database.NewRabbitRepository(ch), c.RabbitMQ.Queue), closer, nil

	case config.NotifyLog:
		return notify_repository.NewLogDispatcher(), func() {}, nil

	default:
		return nil, nil, errprocess.Set(fmt.Sprintf("unknown notify driver [%s]", c.Driver))
	}
}

func breakerSettings(name string, c config.BreakerConfig) breaker.Settings {
	return breaker.Settings{
		Name:             name,
		MaxRequests:      c.MaxRequests,
		Interval:         c.Interval,
		Timeout:          c.Timeout,
		FailureThreshold: c.FailureThreshold,
	}
}
