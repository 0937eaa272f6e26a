package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formrules/pkg/model"
	"github.com/goliatone/go-formrules/pkg/renderers/tui"
	"github.com/goliatone/go-formrules/pkg/runtime"
)

var (
	evalValues      string
	evalValuesFile  string
	evalInstruction string
	fillFormat      string
	fillPayloadMode string
	fillRetries     int
)

var (
	evaluateCmd = &cobra.Command{
		Use:   "evaluate [id or name]",
		Short: "Evaluate a form's rules against values and print the outcome",
		Args:  cobra.ExactArgs(1),
		RunE:  runEvaluate,
	}
	fillCmd = &cobra.Command{
		Use:   "fill [id or name]",
		Short: "Fill a form interactively and print the payload",
		Args:  cobra.ExactArgs(1),
		RunE:  runFill,
	}
)

func init() {
	evaluateCmd.Flags().StringVar(&evalValues, "values", "", "field values as a JSON object")
	evaluateCmd.Flags().StringVar(&evalValuesFile, "values-file", "", "file holding field values as a JSON object")
	evaluateCmd.Flags().StringVar(&evalInstruction, "autofill", "", "instruction for the AI assistant to fill values first")
	evaluateCmd.Flags().StringVar(&fillPayloadMode, "payload-mode", "", "value, pair, or full (server.payload_mode when empty)")

	fillCmd.Flags().StringVar(&fillFormat, "format", "json", "output format: json, form, or pretty")
	fillCmd.Flags().StringVar(&fillPayloadMode, "payload-mode", "", "value, pair, or full (server.payload_mode when empty)")
	fillCmd.Flags().IntVar(&fillRetries, "retries", tui.DefaultRetryRounds, "extra rounds for fields left with errors")
}

// openSession builds a runtime session for the form referenced by ref.
func (a *app) openSession(ctx context.Context, ref string, values map[string]any) (*runtime.Session, model.Form, error) {
	id, err := a.lookupForm(ref)
	if err != nil {
		return nil, model.Form{}, err
	}
	form, err := a.forms.Get(id)
	if err != nil {
		return nil, model.Form{}, err
	}
	if err := a.rules.Load(ctx, id); err != nil {
		return nil, model.Form{}, err
	}
	session := runtime.NewSession(form.Fields, a.rules.List(), form.UserContext,
		runtime.WithEngine(a.engine),
		runtime.WithLogger(logger),
		runtime.WithInitialValues(values),
	)
	return session, form, nil
}

func payloadMode(raw string) (runtime.PayloadMode, error) {
	if raw == "" {
		return cfg.Server.PayloadMode, nil
	}
	return runtime.ParsePayloadMode(raw)
}

func readValues() (map[string]any, error) {
	raw := []byte(evalValues)
	if evalValuesFile != "" {
		data, err := os.ReadFile(evalValuesFile)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("values: %w", err)
	}
	return values, nil
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	mode, err := payloadMode(fillPayloadMode)
	if err != nil {
		return err
	}
	values, err := readValues()
	if err != nil {
		return err
	}

	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	session, _, err := a.openSession(ctx, args[0], values)
	if err != nil {
		return err
	}
	if evalInstruction != "" {
		if a.assistant == nil {
			return errors.New("autofill needs FORMRULES_OPENAI_API_KEY")
		}
		applied, err := a.assistant.Autofill(ctx, session, evalInstruction)
		if err != nil {
			logger.Warn("autofill skipped", "error", err)
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: autofill skipped: %v\n", err)
		} else {
			logger.Info("autofill applied", "fields", applied)
		}
	}

	result := session.Result()
	errs := make(map[string]string)
	for _, def := range session.Fields() {
		if msg := session.ErrorMessage(def.Name); msg != "" {
			errs[def.Name] = msg
		}
	}
	return writeJSON(cmd.OutOrStdout(), map[string]any{
		"hidden":        result.HiddenFields,
		"errors":        errs,
		"hiddenOptions": result.OptionHides,
		"valid":         session.Valid(),
		"payload":       session.Payload(mode),
	})
}

func runFill(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	mode, err := payloadMode(fillPayloadMode)
	if err != nil {
		return err
	}
	format, err := tui.ParseOutputFormat(fillFormat)
	if err != nil {
		return err
	}

	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	session, form, err := a.openSession(ctx, args[0], nil)
	if err != nil {
		return err
	}
	renderer := tui.New(
		tui.WithPromptDriver(tui.NewSurveyDriver(cmd.ErrOrStderr())),
		tui.WithOutputFormat(format),
		tui.WithPayloadMode(mode),
		tui.WithRetryRounds(fillRetries),
		tui.WithLogger(logger),
		tui.WithOptionLoader(func(ctx context.Context, def model.FieldDefinition) ([]model.Option, error) {
			return a.resolver.ResolveRemote(ctx, *def.APIOptions, false)
		}),
	)
	fmt.Fprintf(cmd.ErrOrStderr(), "Filling %s\n", form.Name)
	out, err := renderer.Render(ctx, session)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(append(out, '\n'))
	return err
}
