package vision

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"figscan/api/internal/util"
)

// DetectionSchema is the JSON Schema every detection response must satisfy.
const DetectionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "additionalProperties": false,
    "required": ["label", "box_2d", "description"],
    "properties": {
      "label": {"type": "string"},
      "box_2d": {
        "type": "array",
        "items": {"type": "number", "minimum": 0, "maximum": 1000},
        "minItems": 4,
        "maxItems": 4
      },
      "description": {"type": "string"}
    }
  }
}`

var detectionSchema = jsonschema.MustCompileString("detections.schema.json", DetectionSchema)

// ParseDetections validates raw model output against DetectionSchema and decodes it.
// Output that is empty, not JSON, or not schema-conformant is rejected.
func ParseDetections(raw string) ([]Detection, error) {
	raw = util.StripCodeFences(raw)
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyResponse
	}

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("%w: bad JSON: %v", ErrSchemaViolation, err)
	}
	if err := detectionSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}

	var out []Detection
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	if out == nil {
		out = []Detection{}
	}
	return out, nil
}
