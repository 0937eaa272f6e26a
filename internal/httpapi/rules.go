package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/goliatone/go-formrules/pkg/repository"
	"github.com/goliatone/go-formrules/pkg/rules"
)

type ruleView struct {
	rules.Rule
	Description string `json:"description"`
}

// MarshalJSON merges the description into the rule's wire form.
func (v ruleView) MarshalJSON() ([]byte, error) {
	return mergeJSON(v.Rule, map[string]any{"description": v.Description})
}

func (s *server) listRules(c *gin.Context) {
	id := c.Param("id")
	form, err := s.deps.Forms.Get(id)
	if err != nil {
		s.fail(c, err)
		return
	}

	var list []rules.Rule
	err = s.withRules(c.Request.Context(), id, func(ruleStore *repository.Rules) error {
		list = ruleStore.List()
		return nil
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	label := rules.NewLabeler(form.Fields, form.UserContext)
	groups := rules.GroupByTarget(list)
	out := make([]gin.H, 0, len(groups))
	for _, group := range groups {
		views := make([]ruleView, len(group.Rules))
		for i, rule := range group.Rules {
			views[i] = ruleView{Rule: rule, Description: rules.Describe(rule, label)}
		}
		out = append(out, gin.H{"target": group.Target, "label": label(group.Target), "rules": views})
	}
	c.JSON(http.StatusOK, gin.H{"formId": id, "count": len(list), "groups": out})
}

func (s *server) addRule(c *gin.Context) {
	var rule rules.Rule
	if err := c.ShouldBindJSON(&rule); err != nil {
		s.badRequest(c, err)
		return
	}
	id := c.Param("id")
	form, err := s.deps.Forms.Get(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	prepared, err := rules.Prepare(rule, form.Fields)
	if err != nil {
		s.fail(c, err)
		return
	}

	ctx := c.Request.Context()
	var saved rules.Rule
	err = s.withRules(ctx, id, func(ruleStore *repository.Rules) error {
		var err error
		saved, err = ruleStore.Add(ctx, prepared)
		return err
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	s.logger.Info("rule added", "form", id, "rule", saved.ID, "target", saved.Target())
	c.JSON(http.StatusCreated, ruleView{Rule: saved, Description: rules.Describe(saved, rules.NewLabeler(form.Fields, form.UserContext))})
}

func (s *server) updateRule(c *gin.Context) {
	var rule rules.Rule
	if err := c.ShouldBindJSON(&rule); err != nil {
		s.badRequest(c, err)
		return
	}
	id := c.Param("id")
	rule.ID = c.Param("ruleID")
	form, err := s.deps.Forms.Get(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	prepared, err := rules.Prepare(rule, form.Fields)
	if err != nil {
		s.fail(c, err)
		return
	}

	ctx := c.Request.Context()
	var saved rules.Rule
	err = s.withRules(ctx, id, func(ruleStore *repository.Rules) error {
		var err error
		saved, err = ruleStore.Update(ctx, prepared)
		return err
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ruleView{Rule: saved, Description: rules.Describe(saved, rules.NewLabeler(form.Fields, form.UserContext))})
}

func (s *server) deleteRule(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.deps.Forms.Get(id); err != nil {
		s.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	err := s.withRules(ctx, id, func(ruleStore *repository.Rules) error {
		return ruleStore.Delete(ctx, c.Param("ruleID"))
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
