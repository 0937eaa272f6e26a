package definitions

import (
	"context"
	"fmt"

	"github.com/goliatone/go-formrules/pkg/model"
	"github.com/goliatone/go-formrules/pkg/repository"
)

// Install saves def as a new current form and loads its rules into
// ruleStore.
func Install(ctx context.Context, forms *repository.Forms, ruleStore *repository.Rules, def Definition) (model.Form, error) {
	form, err := forms.Create(ctx, def.Name, def.UserContext)
	if err != nil {
		return model.Form{}, fmt.Errorf("definitions: install %s: %w", def.Key, err)
	}
	form, err = forms.SaveFields(ctx, form.ID, "", def.Fields)
	if err != nil {
		return model.Form{}, fmt.Errorf("definitions: install %s: %w", def.Key, err)
	}
	if err := ruleStore.Load(ctx, form.ID); err != nil {
		return model.Form{}, fmt.Errorf("definitions: install %s: %w", def.Key, err)
	}
	for _, rule := range def.Rules {
		if _, err := ruleStore.Add(ctx, rule); err != nil {
			return model.Form{}, fmt.Errorf("definitions: install %s rule %s: %w", def.Key, rule.ID, err)
		}
	}
	return forms.Get(form.ID)
}
