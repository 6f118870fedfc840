/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package server exposes the controller over HTTP: prometheus metrics,
// probes, the loop status and the rollouts.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/numaproj/spotfleet/pkg/autoscaler"
	"github.com/numaproj/spotfleet/pkg/metrics"
	"github.com/numaproj/spotfleet/pkg/rollout"
	"github.com/numaproj/spotfleet/pkg/shared/logging"
)

// StatusProvider is implemented by autoscaler.AlarmLoop.
type StatusProvider interface {
	Status() autoscaler.Status
}

// Rollouts is implemented by rollout.Manager.
type Rollouts interface {
	TriggerAsync(ctx context.Context, trigger string) (rollout.Record, error)
	Get(id string) (rollout.Record, bool)
	List() []rollout.Record
}

// APIResponse is the envelope of every API response.
type APIResponse struct {
	// ErrMessage is nil when the call succeeds.
	ErrMessage *string `json:"errMessage,omitempty"`
	Data       any     `json:"data"`
}

func NewAPIResponse(errMessage *string, data any) APIResponse {
	return APIResponse{ErrMessage: errMessage, Data: data}
}

func errorResponse(c *gin.Context, code int, err error) {
	msg := err.Error()
	c.JSON(code, NewAPIResponse(&msg, nil))
}

type options struct {
	port           int
	allowedOrigins []string
	healthCheckers []metrics.HealthChecker
	// Bound of the readiness checks
	healthTimeout time.Duration
}

type Option func(*options)

func defaultOptions() *options {
	return &options{
		port:          9090,
		healthTimeout: 5 * time.Second,
	}
}

// WithPort sets the listening port.
func WithPort(port int) Option {
	return func(o *options) {
		o.port = port
	}
}

// WithAllowedOrigins enables CORS for the given origins.
func WithAllowedOrigins(origins ...string) Option {
	return func(o *options) {
		o.allowedOrigins = append(o.allowedOrigins, origins...)
	}
}

// WithHealthCheckers adds the dependencies checked by /readyz.
func WithHealthCheckers(hc ...metrics.HealthChecker) Option {
	return func(o *options) {
		o.healthCheckers = append(o.healthCheckers, hc...)
	}
}

type Server struct {
	status   StatusProvider
	rollouts Rollouts
	options  *options
	// Rollouts triggered over HTTP outlive the request.
	baseCtx context.Context
}

func NewServer(status StatusProvider, rollouts Rollouts, opts ...Option) *Server {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return &Server{status: status, rollouts: rollouts, options: o, baseCtx: context.Background()}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{SkipPaths: []string{"/livez", "/readyz", "/metrics"}}), gin.Recovery())
	if len(s.options.allowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins: s.options.allowedOrigins,
			AllowMethods: []string{"GET", "POST", "HEAD"},
			AllowHeaders: []string{"Origin", "Content-Length", "Content-Type"},
		}))
	}
	router.GET("/livez", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	router.GET("/readyz", s.ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.GET("/status", s.getStatus)
	v1.GET("/rollouts", s.listRollouts)
	v1.POST("/rollouts", s.createRollout)
	v1.GET("/rollouts/:id", s.getRollout)
	return router
}

// Start serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	log := logging.FromContext(ctx)
	s.baseCtx = ctx
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.options.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Infow("Starting HTTP server", zap.Int("port", s.options.port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start HTTP server, %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info("Shutting down HTTP server...")
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server, %w", err)
	}
	return nil
}

func (s *Server) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.options.healthTimeout)
	defer cancel()
	for _, hc := range s.options.healthCheckers {
		if err := hc.IsHealthy(ctx); err != nil {
			logging.FromContext(ctx).Warnw("Readiness check failed", zap.Error(err))
			c.String(http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, NewAPIResponse(nil, s.status.Status()))
}

func (s *Server) listRollouts(c *gin.Context) {
	c.JSON(http.StatusOK, NewAPIResponse(nil, s.rollouts.List()))
}

func (s *Server) createRollout(c *gin.Context) {
	r, err := s.rollouts.TriggerAsync(s.baseCtx, rollout.TriggerManual)
	if errors.Is(err, rollout.ErrRolloutInProgress) {
		errorResponse(c, http.StatusConflict, err)
		return
	}
	if errors.Is(err, rollout.ErrManagerStopped) {
		errorResponse(c, http.StatusServiceUnavailable, err)
		return
	}
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err)
		return
	}
	c.Header("Location", "/api/v1/rollouts/"+r.ID)
	c.JSON(http.StatusAccepted, NewAPIResponse(nil, r))
}

func (s *Server) getRollout(c *gin.Context) {
	id := c.Param("id")
	r, ok := s.rollouts.Get(id)
	if !ok {
		errorResponse(c, http.StatusNotFound, fmt.Errorf("rollout %q not found", id))
		return
	}
	c.JSON(http.StatusOK, NewAPIResponse(nil, r))
}
