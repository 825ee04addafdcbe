package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"classroom-session-service/internal/app"
	"classroom-session-service/internal/auth"
	"classroom-session-service/internal/config"
	"classroom-session-service/internal/infra/memory"
	"classroom-session-service/internal/infra/openai"
	pgstore "classroom-session-service/internal/infra/postgres"
	redisstore "classroom-session-service/internal/infra/redis"
	transport "classroom-session-service/internal/transport/http"
)

// NewServeCmd builds the CLI subcommand to start the server.
func NewServeCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the classroom session server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	// Storage preference: Postgres, then Redis, then in-memory for local runs.
	var sessions app.SessionRepository
	switch {
	case cfg.Postgres.URL != "":
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		sessions = pgstore.NewSessionRepository(pool)
		logger.Info("using postgres session store")
	case cfg.Redis.Addr != "":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		ttl := config.TTLDuration(cfg.Redis.TTL, 24*time.Hour)
		sessions = redisstore.NewSessionRepository(client, ttl)
		logger.Info("using redis session store")
	default:
		sessions = memory.NewSessionRepository()
		logger.Warn("using in-memory session store; sessions are lost on restart")
	}

	var questions app.QuestionStore
	if cfg.OpenAI.APIKey != "" {
		apiURL := cfg.OpenAI.APIURL
		if apiURL == "" {
			apiURL = "https://api.openai.com/v1"
		}
		model := cfg.OpenAI.Model
		if model == "" {
			model = "gpt-4o-mini"
		}
		questions = openai.NewQuestionStore(apiURL, cfg.OpenAI.APIKey, model)
		logger.Info("using generative question store", zap.String("model", model))
	} else {
		questions = memory.NewStaticQuestionStore()
		logger.Warn("no question API key configured; serving placeholder questions")
	}

	jwtSecret := cfg.JWT.Secret
	if jwtSecret == "" {
		jwtSecret = "change-me-in-production"
		logger.Warn("using default jwt secret")
	}
	jwtService := auth.NewJWTService(jwtSecret, config.TTLDuration(cfg.JWT.TTL, 24*time.Hour))

	service := app.NewSessionService(sessions, questions)
	sessionHandler := transport.NewSessionHandler(service, logger)
	rankingStream := transport.NewRankingStreamHandler(service, jwtService, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(transport.Logger(logger))
	router.Use(cors.New(corsConfig(cfg.Server.CORSOrigins)))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ws/sessions", rankingStream.ServeWS)

	api := router.Group("")
	api.Use(transport.Authenticate(jwtService))
	sessionHandler.Register(api)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting classroom session service", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func corsConfig(origins string) cors.Config {
	c := cors.DefaultConfig()
	c.AllowHeaders = append(c.AllowHeaders, "Authorization")
	if origins == "" || origins == "*" {
		c.AllowAllOrigins = true
		return c
	}
	for _, o := range strings.Split(origins, ",") {
		if t := strings.TrimSpace(o); t != "" {
			c.AllowOrigins = append(c.AllowOrigins, t)
		}
	}
	return c
}

func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := cfg.Build()
	return logger
}
