package openapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formrules/pkg/model"
	"github.com/goliatone/go-formrules/pkg/testsupport"
)

const petstore = `{
  "openapi": "3.0.3",
  "info": {"title": "Offices", "version": "1.0.0"},
  "paths": {
    "/offices": {
      "get": {
        "responses": {"200": {"description": "ok"}}
      },
      "post": {
        "operationId": "createOffice",
        "summary": "Create an office",
        "requestBody": {
          "content": {
            "application/json": {
              "schema": {
                "allOf": [
                  {"$ref": "#/components/schemas/Base"},
                  {
                    "type": "object",
                    "required": ["employees"],
                    "properties": {
                      "employees": {"type": "integer", "minimum": 1, "maximum": 500},
                      "status": {"type": "string", "enum": ["Single", "Married", ""], "default": "Single"},
                      "tags": {"type": "array", "items": {"type": "string", "enum": ["a", "b"]}},
                      "photos": {"type": "array", "maxItems": 3, "items": {"type": "string", "format": "binary"}},
                      "openedOn": {"type": "string", "format": "date"},
                      "remote": {"type": "boolean"},
                      "address": {"type": "object", "properties": {"line": {"type": "string"}}},
                      "country": {
                        "type": "string",
                        "x-formrules": {
                          "label": "Country <b>name</b>",
                          "apiOptions": {"url": "https://example.com/countries", "labelField": "name"}
                        }
                      }
                    }
                  }
                ]
              }
            }
          }
        },
        "responses": {"201": {"description": "created"}}
      }
    }
  },
  "components": {
    "schemas": {
      "Base": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "title": "Office name", "minLength": 2, "maxLength": 40, "pattern": "[A-Za-z ]+"},
          "contact": {"type": "string", "format": "email"}
        }
      }
    }
  }
}`

func TestImportFields(t *testing.T) {
	t.Parallel()

	got, err := ImportFields(context.Background(), []byte(petstore), "createOffice")
	if err != nil {
		t.Fatalf("ImportFields returned error: %v", err)
	}

	golden := filepath.Join("testdata", "create_office.golden.json")
	if testsupport.WriteGolden(t, golden, got) {
		return
	}
	var want []model.FieldDefinition
	testsupport.MustLoadJSON(t, golden, &want)
	testsupport.AssertDiff(t, want, got)
}

func TestOperations(t *testing.T) {
	t.Parallel()

	got, err := Operations(context.Background(), []byte(petstore))
	if err != nil {
		t.Fatalf("Operations returned error: %v", err)
	}
	want := []Operation{
		{ID: "createOffice", Method: "POST", Path: "/offices", Summary: "Create an office"},
		{ID: "get:/offices", Method: "GET", Path: "/offices"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("operations mismatch (-want +got):\n%s", diff)
	}
}

func TestImportFieldsErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	if _, err := ImportFields(ctx, []byte(petstore), "missing"); !errors.Is(err, ErrOperationNotFound) {
		t.Fatalf("expected ErrOperationNotFound, got %v", err)
	}
	if _, err := ImportFields(ctx, []byte(petstore), "get:/offices"); !errors.Is(err, ErrNoRequestSchema) {
		t.Fatalf("expected ErrNoRequestSchema, got %v", err)
	}
	if _, err := ImportFields(ctx, []byte(" "), "createOffice"); !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument for empty input, got %v", err)
	}
	if _, err := ImportFields(ctx, []byte("not: [valid"), "createOffice"); !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument for garbage, got %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := ImportFields(cancelled, []byte(petstore), "createOffice"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRead(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/spec.json" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(petstore))
	}))
	defer server.Close()

	data, err := Read(ctx, server.URL+"/spec.json", server.Client())
	if err != nil {
		t.Fatalf("Read url returned error: %v", err)
	}
	if string(data) != petstore {
		t.Fatalf("unexpected remote body")
	}
	if _, err := Read(ctx, server.URL+"/missing", server.Client()); err == nil {
		t.Fatalf("expected error for 404")
	}

	path := filepath.Join(t.TempDir(), "spec.json")
	if err := os.WriteFile(path, []byte(petstore), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	data, err = Read(ctx, path, nil)
	if err != nil || string(data) != petstore {
		t.Fatalf("Read file returned %v", err)
	}
	if _, err := Read(ctx, "", nil); err == nil {
		t.Fatalf("expected error for empty location")
	}
}
