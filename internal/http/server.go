package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jmehdipour/reminder/internal/config"
	"github.com/jmehdipour/reminder/internal/http/middleware"
	"github.com/jmehdipour/reminder/internal/integration"
	"github.com/jmehdipour/reminder/internal/logger"
	"github.com/jmehdipour/reminder/internal/repository"
	"github.com/jmehdipour/reminder/internal/service/command"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct{ e *echo.Echo }

// NewServer wires the command API. clickhouseDB and rds may be nil: the
// delivery report then answers 503 and rate limiting is off.
func NewServer(cfg config.Config, mysqlDB, clickhouseDB *sqlx.DB, rds *redis.Client, publisher integration.Publisher) *Server {
	// repos (MySQL)
	usersRepo := repository.NewUsersRepository(mysqlDB)
	friendshipsRepo := repository.NewFriendshipsRepository(mysqlDB)
	groupsRepo := repository.NewGroupEventsRepository(mysqlDB)
	invitationsRepo := repository.NewInvitationsRepository(mysqlDB)
	personalRepo := repository.NewPersonalEventsRepository(mysqlDB)

	// repos (ClickHouse)
	var deliveriesRepo repository.DeliveriesRepository
	if clickhouseDB != nil {
		deliveriesRepo = repository.NewCHDeliveriesRepository(clickhouseDB)
	}

	// services
	translators := integration.Translators(groupsRepo, time.Now)
	var exec *command.Executor
	if outbox, ok := publisher.(*integration.OutboxPublisher); ok {
		// events commit with the command that raised them
		exec = command.NewStagingExecutor(mysqlDB, integration.NewOutboxStager(outbox, translators...), logger.Log)
	} else {
		exec = command.NewExecutor(mysqlDB, integration.NewDomainDispatcher(publisher, logger.Log, translators...), logger.Log)
	}
	svc := command.NewService(
		exec,
		usersRepo,
		friendshipsRepo,
		groupsRepo,
		invitationsRepo,
		personalRepo,
		repository.NewNotificationsRepository(mysqlDB),
	)

	// echo
	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(echoLevel(cfg.Log.Level))
	log.SetLevel(echoLevel(cfg.Log.Level))
	e.Use(echoMid.Recover(), echoMid.RequestLoggerWithConfig(echoMid.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echoMid.RequestLoggerValues) error {
			logger.Log.Info("http request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			)
			return nil
		},
	}))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	authMW := middleware.UserIDMiddleware(usersRepo)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          rds,
		RPS:            cfg.RateLimit.RPS + cfg.RateLimit.Burst,
		KeyPrefix:      "rl:user:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	h := handlers{svc: svc}

	// routes
	e.POST("/v1/users", h.registerUser, rlMW)

	v1 := e.Group("/v1", authMW, rlMW)
	v1.POST("/friendships", h.requestFriendship)
	v1.POST("/friendships/:id/accept", h.acceptFriendship)
	v1.POST("/group-events", h.createGroupEvent)
	v1.POST("/group-events/:id/invitations", h.invite)
	v1.POST("/group-events/:id/cancel", h.cancelGroupEvent)
	v1.POST("/group-events/:id/reschedule", h.rescheduleGroupEvent)
	v1.POST("/invitations/:id/accept", h.acceptInvitation)
	v1.POST("/personal-events", h.createPersonalEvent)
	v1.POST("/personal-events/:id/cancel", h.cancelPersonalEvent)
	v1.GET("/reports/deliveries", listDeliveriesHandler(deliveriesRepo))

	return &Server{e: e}
}

func echoLevel(level string) log.Lvl {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	default:
		return log.INFO
	}
}

func (s *Server) Start(addr string) error {
	logger.Log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }

// ServeHTTP lets tests drive the router directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.e.ServeHTTP(w, r) }
