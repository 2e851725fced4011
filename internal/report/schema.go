package report

// Schema is the JSON Schema (Draft 2020-12) for the harness JSON
// output. It documents the structure returned by WriteJSON.
const Schema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://github.com/vincentkfu/fioverify/run-report.schema.json",
  "title": "fioverify Run Report",
  "description": "Output schema for fioverify run --format=json",
  "type": "object",
  "required": ["version", "run"],
  "properties": {
    "version": {
      "type": "string",
      "description": "Schema version (semver)"
    },
    "run": { "$ref": "#/$defs/RunSummary" }
  },
  "$defs": {
    "RunSummary": {
      "type": "object",
      "required": ["run_id", "fio_path", "results", "tally"],
      "properties": {
        "run_id": {
          "type": "string",
          "description": "Unique identifier for this run"
        },
        "fio_path": {
          "type": "string",
          "description": "Subject executable path"
        },
        "results": {
          "type": "array",
          "items": { "$ref": "#/$defs/CaseResult" }
        },
        "tally": { "$ref": "#/$defs/Tally" }
      }
    },
    "CaseResult": {
      "type": "object",
      "required": ["case_id", "matrix", "checksum", "status"],
      "properties": {
        "case_id": {
          "type": "integer",
          "description": "Numeric test case id"
        },
        "matrix": {
          "type": "string",
          "enum": ["verify", "fault"],
          "description": "Which matrix produced the case"
        },
        "direction": {
          "type": "string",
          "enum": ["write", "readwrite", "read", "randwrite", "randrw", "randread"]
        },
        "checksum": {
          "type": "string",
          "description": "Verification method, including the null sentinel"
        },
        "mangle": {
          "type": "string",
          "enum": ["", "block", "partial"],
          "description": "Corruption mode for fault-injection cases"
        },
        "status": {
          "type": "string",
          "enum": ["passed", "failed", "skipped"]
        },
        "kind": {
          "type": "string",
          "description": "Failure classification",
          "enum": [
            "FixtureSetupFailure", "CorruptionInjectionFailure",
            "DetectionMismatch", "PhaseCountMismatch",
            "EnvironmentUnmet", "SubprocessTimeout",
            "ResultParseFailure", "MissingFixture", "VerifyFailure"
          ]
        },
        "detail": {
          "type": "string",
          "description": "Human-readable explanation"
        },
        "artifacts": {
          "type": "string",
          "description": "Case artifact directory"
        },
        "duration_ns": {
          "type": "integer",
          "description": "Subject invocation wall time in nanoseconds"
        }
      }
    },
    "Tally": {
      "type": "object",
      "required": ["passed", "failed", "skipped"],
      "properties": {
        "passed": { "type": "integer" },
        "failed": { "type": "integer" },
        "skipped": { "type": "integer" }
      }
    }
  }
}`
