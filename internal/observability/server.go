package observability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	logs "github.com/danmuck/ipkchat/internal/logging"
)

// Server exposes /metrics and /health on a side listener.
type Server struct {
	srv      *http.Server
	ln       net.Listener
	done     chan struct{}
	appeared time.Time
}

// router builds the gin engine behind the metrics listener.
func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger())
	r.Use(RequestMetricsMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"uptime":    time.Since(s.appeared).String(),
			"component": "ipkchat-metrics",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// Start binds addr and serves in the background. Bind errors are returned
// here rather than from the serving goroutine.
func Start(addr string) (*Server, error) {
	RegisterMetrics()
	// gin's debug output goes to stdout, which belongs to the chat display.
	gin.SetMode(gin.ReleaseMode)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("observability: listen %s: %w", addr, err)
	}

	s := &Server{
		ln:       ln,
		done:     make(chan struct{}),
		appeared: time.Now(),
	}
	s.srv = &http.Server{
		Handler:           s.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		defer close(s.done)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logs.Warnf("observability.Serve addr=%s err=%v", ln.Addr(), err)
		}
	}()
	logs.Infof("observability.Start addr=%s", ln.Addr())
	return s, nil
}

func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Close shuts the listener down and waits for the serving goroutine.
func (s *Server) Close(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	<-s.done
	return err
}
