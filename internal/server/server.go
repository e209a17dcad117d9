package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthv1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/victornm/qrally/internal/api"
	"github.com/victornm/qrally/internal/archive"
	"github.com/victornm/qrally/internal/directory"
	"github.com/victornm/qrally/internal/domain"
	"github.com/victornm/qrally/internal/event"
	"github.com/victornm/qrally/internal/metrics"
	"github.com/victornm/qrally/internal/pin"
	"github.com/victornm/qrally/internal/quiz"
	"github.com/victornm/qrally/internal/score"
	"github.com/victornm/qrally/internal/session"
	"github.com/victornm/qrally/internal/telemetry"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	GRPC struct {
		Port int32
	}

	Redis struct {
		Addrs  []string
		Pass   string
		Prefix string
	}

	Postgres struct {
		Quiz struct {
			Addr string
			User string
			Pass string
			Name string
		}

		History struct {
			Addr string
			User string
			Pass string
			Name string
		}
	}

	Session struct {
		TokenTTL         time.Duration
		InactivityWindow time.Duration
		SweepInterval    time.Duration
	}
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis redis.UniversalClient

		postgres struct {
			quiz    *pgxpool.Pool
			history *pgxpool.Pool
		}
	}

	metrics *metrics.Metrics

	directory *directory.Directory
	pins      *pin.Allocator

	service struct {
		session *session.Service
	}

	http *http.Server
	grpc *grpc.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()
	s.metrics = metrics.New(prometheus.DefaultRegisterer)

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	if err := s.initEngine(); err != nil {
		return nil, fmt.Errorf("server: init engine: %w", err)
	}

	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    s.c.Redis.Addrs,
		Password: s.c.Redis.Pass,
	})

	if err := telemetry.MonitorRedis(r); err != nil {
		return err
	}

	if err := r.Ping(ctx).Err(); err != nil {
		return err
	}

	s.infra.redis = r
	return nil
}

func (s *Server) initPostgres() (err error) {
	connect := func(addr, user, pass, name string) (*pgxpool.Pool, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", user, pass, addr, name))
		if err != nil {
			return nil, err
		}
		cc.ConnConfig.Tracer = telemetry.PostgresTracer()

		db, err := pgxpool.NewWithConfig(ctx, cc)
		if err != nil {
			return nil, err
		}

		if err := db.Ping(ctx); err != nil {
			return nil, err
		}

		return db, nil
	}

	s.infra.postgres.quiz, err = connect(s.c.Postgres.Quiz.Addr, s.c.Postgres.Quiz.User, s.c.Postgres.Quiz.Pass, s.c.Postgres.Quiz.Name)
	if err != nil {
		return fmt.Errorf("quiz: %w", err)
	}

	s.infra.postgres.history, err = connect(s.c.Postgres.History.Addr, s.c.Postgres.History.User, s.c.Postgres.History.Pass, s.c.Postgres.History.Name)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}

	return nil
}

// initEngine wires the session engine: the pin allocator loads the durable
// active-code set once, then the directory, archiver and session service are
// built on top of it.
func (s *Server) initEngine() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pins, err := pin.NewAllocator(ctx, pin.Config{
		Registry: pin.NewRedisRegistry(s.infra.redis, s.c.Redis.Prefix),
	})
	if err != nil {
		return fmt.Errorf("pin allocator: %w", err)
	}
	s.pins = pins

	s.directory = directory.New(directory.Config{
		TokenTTL:         s.c.Session.TokenTTL,
		InactivityWindow: s.c.Session.InactivityWindow,
		SweepInterval:    s.c.Session.SweepInterval,
		OnEvict:          s.onSweepEvict,
	})

	archiver := archive.NewArchiver(archive.Config{
		History:   archive.NewPostgresHistory(s.infra.postgres.history),
		Directory: s.directory,
		Pins:      s.pins,
	})

	s.service.session = session.NewService(session.Config{
		Directory: s.directory,
		Quiz:      quiz.NewPostgresStore(s.infra.postgres.quiz),
		Score:     score.NewService(),
		Pins:      s.pins,
		Archiver:  archiver,
		EventBus:  s.eb,
		Metrics:   s.metrics,
	})

	return nil
}

// onSweepEvict releases the join code of a session removed by the inactivity
// sweep. Swept sessions are discarded, not archived.
func (s *Server) onSweepEvict(sess *domain.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.metrics.SessionsActive.Dec()
	s.metrics.SessionsSwept.Inc()

	if err := s.pins.Release(ctx, sess.JoinCode()); err != nil {
		slog.ErrorContext(ctx, "server: release swept join code failed",
			"join_code", sess.JoinCode(),
			"error", err,
		)
	}
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	api.New(api.Config{
		Router:       e,
		EventBus:     s.eb,
		Session:      s.service.session,
		Redis:        s.infra.redis,
		PubsubPrefix: s.c.Redis.Prefix,
	})

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor())
	healthv1.RegisterHealthServer(s.grpc, health.NewServer())

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	s.directory.StartSweep()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.directory.Stop()
	s.eb.Stop()

	slog.InfoContext(ctx, "server: shutdown completed")
}
