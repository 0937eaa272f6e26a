package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/goliatone/go-formrules/pkg/model"
	"github.com/goliatone/go-formrules/pkg/options"
	"github.com/goliatone/go-formrules/pkg/repository"
	"github.com/goliatone/go-formrules/pkg/rules"
	"github.com/goliatone/go-formrules/pkg/runtime"
)

type evaluateRequest struct {
	Values         map[string]any `json:"values"`
	PayloadMode    string         `json:"payloadMode"`
	ResolveOptions bool           `json:"resolveOptions"`
}

type autofillRequest struct {
	Instruction string         `json:"instruction" binding:"required"`
	Values      map[string]any `json:"values"`
	PayloadMode string         `json:"payloadMode"`
}

type resolveRequest struct {
	Source       model.ApiOptionSource `json:"source"`
	ForceRefresh bool                  `json:"forceRefresh"`
}

type clearCacheRequest struct {
	Source *model.ApiOptionSource `json:"source"`
}

// evaluation is the response of evaluate and autofill.
type evaluation struct {
	Hidden        rules.Set                     `json:"hidden"`
	Errors        map[string]string             `json:"errors"`
	HiddenOptions map[string]rules.Set          `json:"hiddenOptions"`
	Valid         bool                          `json:"valid"`
	Values        map[string]any                `json:"values"`
	Payload       map[string]any                `json:"payload"`
	Options       map[string]options.FieldState `json:"options,omitempty"`
	Applied       *int                          `json:"applied,omitempty"`
	AutofillError string                        `json:"autofillError,omitempty"`
}

// session builds a runtime session for form id seeded with values.
func (s *server) session(ctx context.Context, id string, values map[string]any) (*runtime.Session, model.Form, error) {
	form, err := s.deps.Forms.Get(id)
	if err != nil {
		return nil, model.Form{}, err
	}
	var ruleSet []rules.Rule
	err = s.withRules(ctx, id, func(ruleStore *repository.Rules) error {
		ruleSet = ruleStore.List()
		return nil
	})
	if err != nil {
		return nil, model.Form{}, err
	}
	session := runtime.NewSession(form.Fields, ruleSet, form.UserContext,
		runtime.WithEngine(s.deps.Engine),
		runtime.WithLogger(s.logger),
		runtime.WithInitialValues(values),
	)
	return session, form, nil
}

func (s *server) payloadModeFor(raw string) (runtime.PayloadMode, error) {
	if raw == "" {
		return s.payloadMode, nil
	}
	return runtime.ParsePayloadMode(raw)
}

// loadOptions resolves every select of form into session.
func (s *server) loadOptions(ctx context.Context, session *runtime.Session, form model.Form) map[string]options.FieldState {
	tracker := options.NewTracker()
	out := make(map[string]options.FieldState)
	for _, def := range form.Fields {
		if def.Type != model.FieldTypeSelect || (def.UsesAPI() && s.deps.Resolver == nil) {
			continue
		}
		state := options.LoadField(ctx, s.deps.Resolver, tracker, def, false)
		if err := session.SetOptions(def.Name, state.Options); err != nil {
			s.logger.Warn("options not applied", "field", def.Name, "error", err)
			continue
		}
		out[def.Name] = state
	}
	return out
}

func (s *server) describe(session *runtime.Session, mode runtime.PayloadMode) evaluation {
	result := session.Result()
	errs := make(map[string]string)
	for _, def := range session.Fields() {
		if msg := session.ErrorMessage(def.Name); msg != "" {
			errs[def.Name] = msg
		}
	}
	return evaluation{
		Hidden:        result.HiddenFields,
		Errors:        errs,
		HiddenOptions: result.OptionHides,
		Valid:         session.Valid(),
		Values:        session.Values(),
		Payload:       session.Payload(mode),
	}
}

func (s *server) evaluate(c *gin.Context) {
	var req evaluateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.badRequest(c, err)
			return
		}
	}
	mode, err := s.payloadModeFor(req.PayloadMode)
	if err != nil {
		s.badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	session, form, err := s.session(ctx, c.Param("id"), req.Values)
	if err != nil {
		s.fail(c, err)
		return
	}
	var states map[string]options.FieldState
	if req.ResolveOptions {
		states = s.loadOptions(ctx, session, form)
	}
	out := s.describe(session, mode)
	out.Options = states
	c.JSON(http.StatusOK, out)
}

func (s *server) autofill(c *gin.Context) {
	if s.deps.Assistant == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "autofill is not configured"})
		return
	}
	var req autofillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	mode, err := s.payloadModeFor(req.PayloadMode)
	if err != nil {
		s.badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	session, _, err := s.session(ctx, c.Param("id"), req.Values)
	if err != nil {
		s.fail(c, err)
		return
	}
	// A failed or unparseable completion leaves the session untouched.
	applied, err := s.deps.Assistant.Autofill(ctx, session, req.Instruction)
	if err != nil {
		s.logger.Warn("autofill skipped", "form", c.Param("id"), "error", err)
		applied = 0
	}
	out := s.describe(session, mode)
	out.Applied = &applied
	if err != nil {
		out.AutofillError = err.Error()
	}
	c.JSON(http.StatusOK, out)
}

func (s *server) resolveOptions(c *gin.Context) {
	if s.deps.Resolver == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "option resolver is not configured"})
		return
	}
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	opts, err := s.deps.Resolver.ResolveRemote(c.Request.Context(), req.Source, req.ForceRefresh)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"options": opts})
}

func (s *server) clearOptionCache(c *gin.Context) {
	if s.deps.Resolver == nil {
		c.Status(http.StatusNoContent)
		return
	}
	var req clearCacheRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.badRequest(c, err)
			return
		}
	}
	s.deps.Resolver.Invalidate(c.Request.Context(), req.Source)
	s.logger.Info("option cache cleared", "scoped", req.Source != nil)
	c.Status(http.StatusNoContent)
}

// mergeJSON encodes v and adds extra top-level keys.
func mergeJSON(v any, extra map[string]any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	for key, value := range extra {
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		fields[key] = encoded
	}
	return json.Marshal(fields)
}
