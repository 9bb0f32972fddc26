// Package test holds fixtures and helpers shared by package tests.
package test

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// SampleSchema describes the models used across the package tests. Order is
// a JSON-root model with nested objects, arrays and UI hints; Category is
// self-referential; PortfolioLimits is embedded by two definitions.
var SampleSchema = []byte(`{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$defs": {
    "Order": {
      "type": "object",
      "json_root": true,
      "title": "Order",
      "required": ["name", "price"],
      "properties": {
        "_id": {"type": "integer", "server_populate": true},
        "name": {"type": "string", "title": "Name"},
        "price": {"type": "number", "title": "Price"},
        "side": {"type": "string", "enum": ["BUY", "SELL"], "title": "Side"},
        "active": {"type": "boolean", "default": true},
        "notes": {"type": "string", "orm_no_update": true},
        "limits": {"$ref": "#/$defs/OrderLimits", "title": "Order Limits"},
        "lines": {"type": "array", "items": {"$ref": "#/$defs/OrderLine"}},
        "tags": {"type": "array", "items": {"type": "string"}},
        "internal_code": {"type": "string", "hide": true}
      }
    },
    "OrderLimits": {
      "type": "object",
      "properties": {
        "max_qty": {"type": "number"},
        "min_qty": {"type": "number"}
      }
    },
    "OrderLine": {
      "type": "object",
      "required": ["sku"],
      "properties": {
        "sku": {"type": "string", "title": "SKU"},
        "qty": {"type": "number"},
        "fills": {"type": "array", "minItems": 2, "items": {"$ref": "#/$defs/Fill"}}
      }
    },
    "Fill": {
      "type": "object",
      "properties": {
        "px": {"type": "number"},
        "venue": {"type": "string", "enum": ["NYSE", "LSE"]}
      }
    },
    "Category": {
      "type": "object",
      "properties": {
        "name": {"type": "string"},
        "parent": {"$ref": "#/$defs/Category"},
        "children": {"type": "array", "items": {"$ref": "#/$defs/Category"}}
      }
    },
    "Portfolio": {
      "type": "object",
      "json_root": true,
      "properties": {
        "_id": {"type": "integer", "server_populate": true},
        "owner": {"type": "string"},
        "portfolioLimits": {"$ref": "#/$defs/PortfolioLimits"}
      }
    },
    "RiskProfile": {
      "type": "object",
      "properties": {
        "portfolioLimits": {"$ref": "#/$defs/PortfolioLimits"}
      }
    },
    "PortfolioLimits": {
      "type": "object",
      "properties": {
        "max_exposure": {"type": "number"}
      }
    }
  }
}`)

// Decode unmarshals a JSON literal into a decoded object graph
func Decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

// DecodeMap unmarshals a JSON object literal
func DecodeMap(t *testing.T, s string) map[string]any {
	t.Helper()
	m, ok := Decode(t, s).(map[string]any)
	require.True(t, ok, "expected JSON object: %s", s)
	return m
}

// TempDir creates a temporary directory for testing and returns its path.
// The directory is automatically cleaned up after the test.
func TempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "schemaui-test-*")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = os.RemoveAll(dir) // Ignore cleanup errors in tests
	})
	return dir
}
