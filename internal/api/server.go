package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/rtmctl/internal/logging"
	"github.com/danmuck/rtmctl/internal/observability"
	"github.com/danmuck/rtmctl/internal/rtm"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const Version = "0.1.0"

// Options configures the HTTP control API.
type Options struct {
	// DefaultHost is used when a request names no host.
	DefaultHost string
	CorsOrigins []string
	// CallTimeout bounds the remote calls made for one request.
	CallTimeout time.Duration
	// Token, when set, is required as a bearer token on mutating routes.
	Token string
}

// Server is the HTTP front of one discovery client.
type Server struct {
	name     string
	client   *rtm.Client
	opts     Options
	router   *gin.Engine
	appeared time.Time
}

// New builds the router and registers every route.
func New(name string, client *rtm.Client, opts Options) *Server {
	observability.RegisterMetrics()
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 10 * time.Second
	}
	if strings.TrimSpace(opts.DefaultHost) == "" {
		opts.DefaultHost = rtm.DefaultHostName()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(name))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(opts.CorsOrigins),
		AllowMethods: []string{"GET", "POST", "PUT"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		name:     name,
		client:   client,
		opts:     opts,
		router:   r,
		appeared: time.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logging.Infof("api listening addr=%q name=%q", addr, s.name)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"http://localhost:3000"}
	}
	return out
}
