package inspector

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/surfacekit/internal/mounting"
	"github.com/danmuck/surfacekit/internal/observability"
	"github.com/danmuck/surfacekit/internal/presenter"
	"github.com/danmuck/surfacekit/internal/surface"
)

// Server exposes a read-only debug view of the presenter: the surface
// table, view-registry stats, and prometheus metrics.
type Server struct {
	addr      string
	presenter *presenter.Presenter
	mounting  *mounting.Manager
	router    *gin.Engine
	http      *http.Server
	started   time.Time
}

func New(addr string, p *presenter.Presenter, m *mounting.Manager, corsOrigins []string) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		addr:      addr,
		presenter: p,
		mounting:  m,
		router:    r,
		started:   time.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(s.started).String(),
		})
	})
	s.router.GET("/surfaces", func(c *gin.Context) {
		surfaces := s.presenter.Surfaces()
		out := make([]gin.H, 0, len(surfaces))
		for _, sf := range surfaces {
			min, max := sf.SizeConstraints()
			out = append(out, gin.H{
				"id":     int64(sf.ID()),
				"module": sf.Module(),
				"stage":  sf.Stage().String(),
				"min":    min.String(),
				"max":    max.String(),
			})
		}
		c.JSON(http.StatusOK, gin.H{
			"surfaces": out,
			"count":    len(out),
		})
	})
	s.router.GET("/surfaces/:id", func(c *gin.Context) {
		raw := c.Param("id")
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid surface id"})
			return
		}
		sf, ok := s.presenter.SurfaceForID(surface.ID(id))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "surface not found"})
			return
		}
		min, max := sf.SizeConstraints()
		c.JSON(http.StatusOK, gin.H{
			"id":         int64(sf.ID()),
			"module":     sf.Module(),
			"stage":      sf.Stage().String(),
			"min":        min.String(),
			"max":        max.String(),
			"root_bound": sf.RootView() != nil,
		})
	})
	s.router.GET("/views", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"live_views": s.mounting.Views().Len(),
			"pool_depth": s.mounting.PoolDepth(),
		})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) Run() error {
	s.http = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info().Msgf("inspector.Run listening addr=%q", s.addr)
	err := s.http.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, raw := range origins {
		trimmed := strings.TrimSpace(raw)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		out = []string{"http://localhost:3000"}
	}
	return out
}
