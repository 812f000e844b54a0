package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/invopop/jsonschema"
	jsv6 "github.com/santhosh-tekuri/jsonschema/v6"
)

// generateStructured drives the structured-output retry loop shared by
// every Client implementation: issue a JSON-mode generate call, validate
// the result against schema, and retry with exponential backoff on
// validation failure, up to maxRetries additional attempts.
func generateStructured(ctx context.Context, c Client, prompt string, schema *JSONSchema, opts Options, maxRetries int) (map[string]any, error) {
	compiled, err := compileSchema(schema)
	if err != nil {
		return nil, fmt.Errorf("compile json schema: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(1<<(attempt-1)) * 300 * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		schemaPrompt := prompt
		if attempt > 0 {
			schemaPrompt = fmt.Sprintf("%s\n\nYour previous response did not match the required JSON schema (%v). Respond with ONLY valid JSON matching the schema.", prompt, lastErr)
		}

		text, err := c.Generate(ctx, withJSONInstruction(schemaPrompt, schema), opts)
		if err != nil {
			lastErr = err
			continue
		}

		obj, err := validateJSON(compiled, text)
		if err != nil {
			lastErr = err
			continue
		}
		return obj, nil
	}
	return nil, &StructuredOutputError{Attempts: maxRetries + 1, Cause: lastErr}
}

func withJSONInstruction(prompt string, schema *JSONSchema) string {
	buf, _ := json.MarshalIndent(schema, "", "  ")
	return fmt.Sprintf("%s\n\nRespond with ONLY a single JSON object matching this schema:\n%s", prompt, string(buf))
}

func compileSchema(schema *JSONSchema) (*jsv6.Schema, error) {
	buf, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	doc, err := jsv6.UnmarshalJSON(bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	compiler := jsv6.NewCompiler()
	const resourceURL = "mem://schema.json"
	if err := compiler.AddResource(resourceURL, doc); err != nil {
		return nil, err
	}
	return compiler.Compile(resourceURL)
}

func validateJSON(compiled *jsv6.Schema, text string) (map[string]any, error) {
	clean := extractJSONObject(text)
	var obj map[string]any
	if err := json.Unmarshal([]byte(clean), &obj); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}
	if err := compiled.Validate(obj); err != nil {
		return nil, fmt.Errorf("response did not match schema: %w", err)
	}
	return obj, nil
}

// extractJSONObject trims a model response down to its first top-level
// JSON object, tolerating surrounding prose or markdown code fences.
func extractJSONObject(text string) string {
	start := -1
	depth := 0
	for i, r := range text {
		switch r {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			depth--
			if depth == 0 && start >= 0 {
				return text[start : i+1]
			}
		}
	}
	return text
}

// SchemaFromStruct generates a JSONSchema from a Go struct using
// invopop/jsonschema, used to build the fixed schemas for Intent, Plan,
// DebugResult, and ReflectionResult structured-output calls.
func SchemaFromStruct(v any) *JSONSchema {
	reflector := &jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}
	s := reflector.Reflect(v)
	return convertSchema(s)
}

func convertSchema(s *jsonschema.Schema) *JSONSchema {
	if s == nil {
		return nil
	}
	out := &JSONSchema{
		Type:        string(s.Type),
		Description: s.Description,
		Required:    s.Required,
	}
	if s.Properties != nil {
		out.Properties = make(map[string]*JSONSchema)
		for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
			out.Properties[pair.Key] = convertSchema(pair.Value)
		}
	}
	if s.Items != nil {
		out.Items = convertSchema(s.Items)
	}
	for _, e := range s.Enum {
		if str, ok := e.(string); ok {
			out.Enum = append(out.Enum, str)
		}
	}
	return out
}
