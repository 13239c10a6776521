package ai

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Onebillie/parsetastic/internal/models"
)

var fence = strings.Repeat("`", 3)

// stripFences removes markdown code fences some models wrap around JSON.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, fence+"json", "")
	s = strings.ReplaceAll(s, fence, "")
	return strings.TrimSpace(s)
}

func mustSchema(name, src string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, strings.NewReader(src)); err != nil {
		panic(err)
	}
	return c.MustCompile(name)
}

// decodeObject parses a model answer into a JSON object and checks it against schema.
func decodeObject(answer string, schema *jsonschema.Schema) (map[string]any, []byte, error) {
	cleaned := []byte(stripFences(answer))

	dec := json.NewDecoder(bytes.NewReader(cleaned))
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, nil, models.WrapError(models.ErrMalformedOracleOutput, "ai: decode answer", err)
	}
	if obj == nil {
		return nil, nil, models.WrapError(models.ErrMalformedOracleOutput, "ai: decode answer", eris.New("answer is not a JSON object"))
	}
	if schema != nil {
		if err := schema.Validate(obj); err != nil {
			return nil, nil, models.WrapError(models.ErrMalformedOracleOutput, "ai: check answer", err)
		}
	}
	return obj, cleaned, nil
}
