package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// parseResultSchema is the JSON Schema for the normalized import contract.
// Platform parsers are external collaborators, so their output is validated
// structurally before any row is written.
const parseResultSchema = `{
	"type": "object",
	"required": ["meta", "members", "messages"],
	"properties": {
		"meta": {
			"type": "object",
			"required": ["name", "platform", "type"],
			"properties": {
				"name":     {"type": "string", "minLength": 1},
				"platform": {"type": "string", "minLength": 1},
				"type":     {"type": "string", "enum": ["direct", "group"]}
			}
		},
		"members": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["platformId", "name"],
				"properties": {
					"platformId": {"type": "string", "minLength": 1},
					"name":       {"type": "string"}
				}
			}
		},
		"messages": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["senderPlatformId", "senderName", "timestamp", "type"],
				"properties": {
					"senderPlatformId": {"type": "string", "minLength": 1},
					"senderName":       {"type": "string"},
					"timestamp":        {"type": "integer", "minimum": 0},
					"type":             {"type": "integer", "minimum": 0, "maximum": 6},
					"content":          {"type": "string"}
				}
			}
		}
	}
}`

// ValidateParseResult checks an import payload against the contract schema.
func ValidateParseResult(pr *ParseResult) error {
	if pr == nil {
		return errors.New("import payload is nil")
	}

	schemaLoader := gojsonschema.NewStringLoader(parseResultSchema)
	documentLoader := gojsonschema.NewGoLoader(pr)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		var errorMsgs []string
		for _, verr := range result.Errors() {
			errorMsgs = append(errorMsgs, verr.String())
		}
		return fmt.Errorf("invalid import payload: %s", strings.Join(errorMsgs, "; "))
	}
	return nil
}
