// A very simple gin HTTP server
// for getting scheduler point of view
// from the infrastructure using a web page.
// The gui sends an empty struct to scheduler bridge
// and the scheduler sends back a clone of the snapshot
// which the gui displays.
package gui

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/amsen20/argos/internal/model"
	"github.com/amsen20/argos/internal/scheduler"
	"github.com/amsen20/argos/logging"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var log = logging.Get()

const shutdownTimeout = 5 * time.Second

type Server struct {
	bridge scheduler.SchedulerBridge
	router *gin.Engine
}

// snapshot returns nil once the scheduler loop has stopped.
func (s *Server) snapshot() *model.Snapshot {
	select {
	case s.bridge.ClusterStateRequestStream <- struct{}{}:
	case <-s.bridge.Stopped:
		return nil
	}

	select {
	case snapshot := <-s.bridge.ClusterStateStream:
		return snapshot
	case <-s.bridge.Stopped:
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.router.POST("/state", func(ctx *gin.Context) {
		snapshot := s.snapshot()
		if snapshot == nil {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler is not running"})
			return
		}

		ctx.JSON(http.StatusOK, gin.H{
			"step":      snapshot.Step,
			"placement": snapshot.Placement(),
			"content":   snapshot.Display(),
		})
	})

	s.router.GET("/decisions", func(ctx *gin.Context) {
		run := ctx.DefaultQuery("run", s.bridge.RunId)

		decisions, err := s.bridge.Store.List(run)
		if err != nil {
			ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}

		ctx.JSON(http.StatusOK, gin.H{
			"run":       run,
			"decisions": decisions,
		})
	})

	s.router.GET("/runs", func(ctx *gin.Context) {
		runs, err := s.bridge.Store.Runs()
		if err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		ctx.JSON(http.StatusOK, gin.H{"runs": runs})
	})

	s.router.GET("/statistics", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{
			"summaries": s.bridge.Collector.Summaries(),
			"records":   s.bridge.Collector.Records(s.bridge.RunId),
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.bridge.Collector.Registry(), promhttp.HandlerOpts{})))
}

func SetUp(bridge scheduler.SchedulerBridge) *Server {
	s := &Server{
		bridge: bridge,
		router: gin.Default(),
	}

	s.router.Use(cors.Default())

	s.registerRoutes()

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then shuts the server down gracefully.
func (s *Server) Run(ctx context.Context, address string) error {
	server := &http.Server{
		Addr:    address,
		Handler: s.router,
	}

	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info().Msgf("shutting down the gui on %s", address)
		shutdownErr <- server.Shutdown(shutdownCtx)
	}()

	log.Info().Msgf("gui listening on %s", address)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return <-shutdownErr
}
