// Package httpapi exposes the form catalog, rule authoring, and runtime
// evaluation over HTTP.
//
// Routes:
//
//	GET    /health
//	GET    /metrics
//	GET    /v1/forms
//	POST   /v1/forms
//	GET    /v1/forms/:id
//	PUT    /v1/forms/:id
//	DELETE /v1/forms/:id
//	POST   /v1/forms/:id/copy
//	PUT    /v1/forms/:id/context
//	GET    /v1/forms/:id/rules
//	POST   /v1/forms/:id/rules
//	PUT    /v1/forms/:id/rules/:ruleID
//	DELETE /v1/forms/:id/rules/:ruleID
//	POST   /v1/forms/:id/evaluate
//	POST   /v1/forms/:id/autofill
//	POST   /v1/options/resolve
//	DELETE /v1/options/cache
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goliatone/go-formrules/pkg/assist"
	"github.com/goliatone/go-formrules/pkg/fields"
	"github.com/goliatone/go-formrules/pkg/model"
	"github.com/goliatone/go-formrules/pkg/options"
	"github.com/goliatone/go-formrules/pkg/repository"
	"github.com/goliatone/go-formrules/pkg/rules"
	"github.com/goliatone/go-formrules/pkg/runtime"
)

// Deps are the collaborators served by the API. Resolver, Assistant, and
// Engine are optional.
type Deps struct {
	Forms     *repository.Forms
	Rules     *repository.Rules
	Resolver  *options.Resolver
	Assistant *assist.Assistant
	Engine    *rules.Engine
}

// Option configures the server.
type Option func(*server)

// WithLogger overrides the request and handler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPayloadMode sets the payload mode used when a request names none.
func WithPayloadMode(mode runtime.PayloadMode) Option {
	return func(s *server) {
		if mode != "" {
			s.payloadMode = mode
		}
	}
}

// WithMetricsHandler replaces the /metrics handler. A nil handler disables
// the route.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *server) {
		s.metrics = h
		s.metricsSet = true
	}
}

type server struct {
	deps        Deps
	logger      *slog.Logger
	payloadMode runtime.PayloadMode
	metrics     http.Handler
	metricsSet  bool

	// rulesMu serializes access to deps.Rules, which holds one form at a time.
	rulesMu sync.Mutex
}

// New builds the gin engine serving deps.
func New(deps Deps, opts ...Option) (*gin.Engine, error) {
	if deps.Forms == nil || deps.Rules == nil {
		return nil, errors.New("httpapi: forms and rules repositories are required")
	}
	s := &server{
		deps:        deps,
		logger:      slog.Default(),
		payloadMode: runtime.PayloadValue,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if !s.metricsSet {
		s.metrics = promhttp.Handler()
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger(), instrument())
	s.routes(router)
	return router, nil
}

func (s *server) routes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.metrics != nil {
		router.GET("/metrics", gin.WrapH(s.metrics))
	}

	v1 := router.Group("/v1")
	{
		v1.GET("/forms", s.listForms)
		v1.POST("/forms", s.createForm)
		v1.GET("/forms/:id", s.getForm)
		v1.PUT("/forms/:id", s.updateForm)
		v1.DELETE("/forms/:id", s.deleteForm)
		v1.POST("/forms/:id/copy", s.copyForm)
		v1.PUT("/forms/:id/context", s.setContext)

		v1.GET("/forms/:id/rules", s.listRules)
		v1.POST("/forms/:id/rules", s.addRule)
		v1.PUT("/forms/:id/rules/:ruleID", s.updateRule)
		v1.DELETE("/forms/:id/rules/:ruleID", s.deleteRule)

		v1.POST("/forms/:id/evaluate", s.evaluate)
		v1.POST("/forms/:id/autofill", s.autofill)

		v1.POST("/options/resolve", s.resolveOptions)
		v1.DELETE("/options/cache", s.clearOptionCache)
	}
}

// withRules runs fn with the rule repository switched to formID.
func (s *server) withRules(ctx context.Context, formID string, fn func(*repository.Rules) error) error {
	s.rulesMu.Lock()
	defer s.rulesMu.Unlock()
	if s.deps.Rules.FormID() != formID {
		if err := s.deps.Rules.Load(ctx, formID); err != nil {
			return err
		}
	}
	return fn(s.deps.Rules)
}

// fail maps domain errors to status codes and writes {"error": msg}.
func (s *server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	body := gin.H{"error": err.Error()}

	var inUse *repository.ContextInUseError
	switch {
	case errors.As(err, &inUse):
		status = http.StatusConflict
		body["keys"] = inUse.Keys
		body["rules"] = inUse.Rules
	case errors.Is(err, repository.ErrFormNotFound), errors.Is(err, repository.ErrRuleNotFound):
		status = http.StatusNotFound
	case errors.Is(err, repository.ErrDuplicateRule):
		status = http.StatusConflict
	case errors.Is(err, rules.ErrInvalidRule),
		errors.Is(err, rules.ErrUnknownAction),
		errors.Is(err, model.ErrInvalidDefinition),
		errors.Is(err, fields.ErrDuplicateField),
		errors.Is(err, fields.ErrFieldNotFound),
		errors.Is(err, runtime.ErrUnknownField):
		status = http.StatusBadRequest
	case errors.Is(err, options.ErrNoOptions):
		status = http.StatusNotFound
		body["error"] = options.MessageNoOptions
	case errors.Is(err, options.ErrFetch):
		status = http.StatusBadGateway
		body["error"] = options.MessageLoadFailed
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	} else {
		s.logger.Debug("request rejected", "method", c.Request.Method, "path", c.FullPath(), "status", status, "error", err)
	}
	c.JSON(status, body)
}

func (s *server) badRequest(c *gin.Context, err error) {
	s.logger.Debug("invalid request body", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
}
