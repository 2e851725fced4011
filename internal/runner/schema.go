package runner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ReportSchema is the JSON Schema (Draft 2020-12) for the slice of the
// subject's JSON output the harness consumes: a list of per-stanza
// objects carrying at least a jobname and an integer error field.
const ReportSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://github.com/vincentkfu/fioverify/subject-report.schema.json",
  "title": "Subject JSON report (consumed subset)",
  "type": "object",
  "required": ["jobs"],
  "properties": {
    "jobs": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["jobname", "error"],
        "properties": {
          "jobname": {
            "type": "string",
            "description": "Stanza name; associates results to phases"
          },
          "error": {
            "type": "integer",
            "description": "Per-stanza error code, 0 on success"
          }
        }
      }
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(ReportSchema))
		if err != nil {
			schemaErr = err
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("subject-report.schema.json", doc); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = compiler.Compile("subject-report.schema.json")
	})
	return schema, schemaErr
}

// reportDoc mirrors the consumed subset of the subject's report.
type reportDoc struct {
	Jobs []struct {
		Jobname string `json:"jobname"`
		Error   int    `json:"error"`
	} `json:"jobs"`
}

// parseReport validates raw against ReportSchema and decodes it.
func parseReport(raw []byte) (*reportDoc, error) {
	sch, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compiling report schema: %w", err)
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if err := sch.Validate(inst); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	var doc reportDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return &doc, nil
}
