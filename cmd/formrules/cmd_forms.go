package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formrules/pkg/definitions"
	"github.com/goliatone/go-formrules/pkg/rules"
)

var installDir string

var (
	formsCmd = &cobra.Command{
		Use:   "forms",
		Short: "Manage saved forms",
	}
	formsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List saved forms",
		Args:  cobra.NoArgs,
		RunE:  runFormsList,
	}
	formsShowCmd = &cobra.Command{
		Use:   "show [id or name]",
		Short: "Print a form with its rules",
		Args:  cobra.ExactArgs(1),
		RunE:  runFormsShow,
	}
	formsInstallCmd = &cobra.Command{
		Use:   "install [key...]",
		Short: "Install form definitions (all when no key is given)",
		RunE:  runFormsInstall,
	}
	formsDeleteCmd = &cobra.Command{
		Use:   "delete [id or name]",
		Short: "Delete a form and its rules",
		Args:  cobra.ExactArgs(1),
		RunE:  runFormsDelete,
	}
)

func init() {
	formsInstallCmd.Flags().StringVar(&installDir, "dir", "", "definitions directory (bundled samples when empty)")
	formsCmd.AddCommand(formsListCmd, formsShowCmd, formsInstallCmd, formsDeleteCmd)
}

func runFormsList(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	current := a.forms.CurrentID()
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tFIELDS\tRULES\tUPDATED\t")
	for _, form := range a.forms.List() {
		marker := ""
		if form.ID == current {
			marker = "*"
		}
		fmt.Fprintf(w, "%s\t%s%s\t%d\t%d\t%s\t\n", form.ID, form.Name, marker, form.FieldCount, form.RuleCount, form.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runFormsShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := a.lookupForm(args[0])
	if err != nil {
		return err
	}
	form, err := a.forms.Get(id)
	if err != nil {
		return err
	}
	if err := a.rules.Load(ctx, id); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := writeJSON(out, form); err != nil {
		return err
	}
	label := rules.NewLabeler(form.Fields, form.UserContext)
	for _, group := range rules.GroupByTarget(a.rules.List()) {
		fmt.Fprintf(out, "\n%s\n", label(group.Target))
		for _, rule := range group.Rules {
			fmt.Fprintf(out, "  [%s] %s: %s\n", rule.ID, rule.Name, rules.Describe(rule, label))
		}
	}
	return nil
}

func runFormsInstall(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	catalog, err := definitions.LoadFS(definitionsFS(installDir))
	if err != nil {
		return err
	}
	keys := args
	if len(keys) == 0 {
		keys = catalog.Names()
	}
	for _, key := range keys {
		def, ok := catalog.Form(key)
		if !ok {
			return fmt.Errorf("definition %q not found (have %v)", key, catalog.Names())
		}
		form, err := definitions.Install(ctx, a.forms, a.rules, def)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "installed %s as %s (%d fields, %d rules)\n", def.Key, form.ID, form.FieldCount, form.RuleCount)
	}
	return nil
}

func runFormsDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := a.lookupForm(args[0])
	if err != nil {
		return err
	}
	if err := a.forms.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
