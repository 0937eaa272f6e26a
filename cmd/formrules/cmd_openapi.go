package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formrules/pkg/openapi"
)

var (
	importOperation string
	importName      string
)

var (
	openapiCmd = &cobra.Command{
		Use:   "openapi",
		Short: "Build forms from OpenAPI request bodies",
	}
	openapiOperationsCmd = &cobra.Command{
		Use:   "operations [file or url]",
		Short: "List the operations of an OpenAPI document",
		Args:  cobra.ExactArgs(1),
		RunE:  runOpenAPIOperations,
	}
	openapiImportCmd = &cobra.Command{
		Use:   "import [file or url]",
		Short: "Create a form from an operation's request body",
		Args:  cobra.ExactArgs(1),
		RunE:  runOpenAPIImport,
	}
)

func init() {
	openapiImportCmd.Flags().StringVar(&importOperation, "operation", "", "operation id (method:path when the operation has none)")
	openapiImportCmd.Flags().StringVar(&importName, "name", "", "form name (operation summary or id when empty)")
	_ = openapiImportCmd.MarkFlagRequired("operation")
	openapiCmd.AddCommand(openapiOperationsCmd, openapiImportCmd)
}

func httpClient() *http.Client {
	return &http.Client{Timeout: cfg.Options.HTTPTimeout}
}

func runOpenAPIOperations(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	data, err := openapi.Read(ctx, args[0], httpClient())
	if err != nil {
		return err
	}
	ops, err := openapi.Operations(ctx, data)
	if err != nil {
		return err
	}
	for _, op := range ops {
		fmt.Fprintf(cmd.OutOrStdout(), "%-32s %-6s %s  %s\n", op.ID, op.Method, op.Path, op.Summary)
	}
	return nil
}

func runOpenAPIImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	data, err := openapi.Read(ctx, args[0], httpClient())
	if err != nil {
		return err
	}
	fields, err := openapi.ImportFields(ctx, data, importOperation, openapi.WithLogger(logger))
	if err != nil {
		return err
	}

	name := importName
	if name == "" {
		name = importOperation
		if ops, err := openapi.Operations(ctx, data); err == nil {
			for _, op := range ops {
				if op.ID == importOperation && op.Summary != "" {
					name = op.Summary
				}
			}
		}
	}

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	form, err := a.forms.Create(ctx, name, nil)
	if err != nil {
		return err
	}
	if form, err = a.forms.SaveFields(ctx, form.ID, "", fields); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %s as %s (%d fields)\n", importOperation, form.ID, form.FieldCount)
	return nil
}
