package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/goliatone/go-formrules/pkg/fields"
	"github.com/goliatone/go-formrules/pkg/model"
	"github.com/goliatone/go-formrules/pkg/repository"
)

type createFormRequest struct {
	Name        string                   `json:"name" binding:"required"`
	Fields      []model.FieldDefinition  `json:"fields"`
	UserContext []model.UserContextEntry `json:"userContext"`
}

type updateFormRequest struct {
	Name   string                   `json:"name"`
	Fields *[]model.FieldDefinition `json:"fields"`
}

type copyFormRequest struct {
	Name string `json:"name"`
}

type contextRequest struct {
	Entries []model.UserContextEntry `json:"entries"`
	Cascade bool                     `json:"cascade"`
}

// normalizeFields validates defs and returns them cleaned, in order.
func normalizeFields(defs []model.FieldDefinition) ([]model.FieldDefinition, error) {
	registry, err := fields.NewRegistry(defs...)
	if err != nil {
		return nil, err
	}
	return registry.List(), nil
}

func (s *server) listForms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"forms": s.deps.Forms.List()})
}

func (s *server) getForm(c *gin.Context) {
	form, err := s.deps.Forms.Get(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, form)
}

func (s *server) createForm(c *gin.Context) {
	var req createFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	defs, err := normalizeFields(req.Fields)
	if err != nil {
		s.fail(c, err)
		return
	}

	ctx := c.Request.Context()
	form, err := s.deps.Forms.Create(ctx, req.Name, req.UserContext)
	if err != nil {
		s.fail(c, err)
		return
	}
	if len(defs) > 0 {
		if form, err = s.deps.Forms.SaveFields(ctx, form.ID, "", defs); err != nil {
			s.fail(c, err)
			return
		}
	}
	s.logger.Info("form created", "form", form.ID, "fields", form.FieldCount)
	c.JSON(http.StatusCreated, form)
}

func (s *server) updateForm(c *gin.Context) {
	var req updateFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	id := c.Param("id")
	ctx := c.Request.Context()

	var (
		form model.Form
		err  error
	)
	if req.Fields != nil {
		defs, verr := normalizeFields(*req.Fields)
		if verr != nil {
			s.fail(c, verr)
			return
		}
		form, err = s.deps.Forms.SaveFields(ctx, id, "", defs)
		if err != nil {
			s.fail(c, err)
			return
		}
	}
	if name := model.SanitizeText(req.Name); name != "" {
		form, err = s.deps.Forms.Update(ctx, id, func(f *model.Form) { f.Name = name })
		if err != nil {
			s.fail(c, err)
			return
		}
	}
	if form.ID == "" {
		if form, err = s.deps.Forms.Get(id); err != nil {
			s.fail(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, form)
}

func (s *server) deleteForm(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()
	err := s.withRules(ctx, "", func(*repository.Rules) error {
		return s.deps.Forms.Delete(ctx, id)
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	s.logger.Info("form deleted", "form", id)
	c.Status(http.StatusNoContent)
}

func (s *server) copyForm(c *gin.Context) {
	var req copyFormRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.badRequest(c, err)
			return
		}
	}
	form, err := s.deps.Forms.Copy(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, form)
}

func (s *server) setContext(c *gin.Context) {
	var req contextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	id := c.Param("id")
	ctx := c.Request.Context()
	if _, err := s.deps.Forms.Get(id); err != nil {
		s.fail(c, err)
		return
	}

	var update repository.ContextUpdate
	err := s.withRules(ctx, id, func(ruleStore *repository.Rules) error {
		var err error
		update, err = s.deps.Forms.SetUserContext(ctx, id, req.Entries, req.Cascade, ruleStore)
		return err
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, update)
}
