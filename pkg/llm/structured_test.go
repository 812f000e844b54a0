package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedClient is a minimal real llm.Client used to exercise the
// structured-output retry/fallback path without a network dependency.
type scriptedClient struct {
	genTexts []string
	genCalls int
	genErr   error
}

func (s *scriptedClient) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	if s.genErr != nil {
		return "", s.genErr
	}
	i := s.genCalls
	s.genCalls++
	if i >= len(s.genTexts) {
		i = len(s.genTexts) - 1
	}
	return s.genTexts[i], nil
}

func (s *scriptedClient) GenerateStream(ctx context.Context, prompt string, opts Options) (<-chan Delta, <-chan error) {
	panic("not used in these tests")
}

func (s *scriptedClient) Chat(ctx context.Context, messages []Message, opts Options) (string, error) {
	panic("not used in these tests")
}

func (s *scriptedClient) GenerateStructured(ctx context.Context, prompt string, schema *JSONSchema, opts Options) (map[string]any, error) {
	return generateStructured(ctx, s, prompt, schema, opts, 2)
}

var nameSchema = &JSONSchema{
	Type:     "object",
	Required: []string{"name"},
	Properties: map[string]*JSONSchema{
		"name": {Type: "string"},
	},
}

func TestGenerateStructured_SucceedsFirstTry(t *testing.T) {
	client := &scriptedClient{genTexts: []string{`{"name": "alice"}`}}
	obj, err := client.GenerateStructured(context.Background(), "who", nameSchema, Options{})
	require.NoError(t, err)
	assert.Equal(t, "alice", obj["name"])
	assert.Equal(t, 1, client.genCalls)
}

func TestGenerateStructured_TolerantOfSurroundingProse(t *testing.T) {
	client := &scriptedClient{genTexts: []string{"Sure, here you go:\n```json\n{\"name\": \"bob\"}\n```\nhope that helps"}}
	obj, err := client.GenerateStructured(context.Background(), "who", nameSchema, Options{})
	require.NoError(t, err)
	assert.Equal(t, "bob", obj["name"])
}

func TestGenerateStructured_RetriesThenSucceeds(t *testing.T) {
	client := &scriptedClient{genTexts: []string{
		"not json at all",
		`{"wrong_field": true}`,
		`{"name": "carol"}`,
	}}
	obj, err := client.GenerateStructured(context.Background(), "who", nameSchema, Options{})
	require.NoError(t, err)
	assert.Equal(t, "carol", obj["name"])
	assert.Equal(t, 3, client.genCalls)
}

func TestGenerateStructured_ExhaustsRetriesAndFails(t *testing.T) {
	client := &scriptedClient{genTexts: []string{"nope", "still nope", "nope again", "nope forever"}}
	obj, err := client.GenerateStructured(context.Background(), "who", nameSchema, Options{})
	require.Error(t, err)
	assert.Nil(t, obj)

	var structErr *StructuredOutputError
	require.ErrorAs(t, err, &structErr)
	assert.Equal(t, 3, structErr.Attempts) // maxRetries=2 -> 1 initial + 2 retries
}

func TestGenerateWithFallback_SchemaSucceeds(t *testing.T) {
	client := &scriptedClient{genTexts: []string{`{"name": "dave"}`}}
	result, usedSchema, err := GenerateWithFallback(context.Background(), client, "who", nameSchema, Options{}, nil)
	require.NoError(t, err)
	assert.True(t, usedSchema)
	obj, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "dave", obj["name"])
}

func TestGenerateWithFallback_FallsBackOnSchemaFailure(t *testing.T) {
	client := &scriptedClient{genTexts: []string{"nope", "still nope", "not json", "plain text answer"}}
	fallback := func(text string) (any, error) { return text, nil }

	result, usedSchema, err := GenerateWithFallback(context.Background(), client, "who", nameSchema, Options{}, fallback)
	require.NoError(t, err)
	assert.False(t, usedSchema)
	assert.Equal(t, "plain text answer", result)
}

func TestGenerateWithFallback_NoSchemaNoFallbackErrors(t *testing.T) {
	client := &scriptedClient{genTexts: []string{"whatever"}}
	_, usedSchema, err := GenerateWithFallback(context.Background(), client, "who", nil, Options{}, nil)
	require.Error(t, err)
	assert.False(t, usedSchema)
}

func TestGenerateWithFallback_NoSchemaUsesFallbackDirectly(t *testing.T) {
	client := &scriptedClient{genTexts: []string{"plain answer"}}
	fallback := func(text string) (any, error) { return text, nil }
	result, usedSchema, err := GenerateWithFallback(context.Background(), client, "who", nil, Options{}, fallback)
	require.NoError(t, err)
	assert.False(t, usedSchema)
	assert.Equal(t, "plain answer", result)
}

func TestExtractJSONObject_StripsSurroundingProse(t *testing.T) {
	got := extractJSONObject("prefix {\"a\": 1, \"b\": {\"c\": 2}} suffix")
	assert.Equal(t, `{"a": 1, "b": {"c": 2}}`, got)
}

func TestExtractJSONObject_NoObjectReturnsOriginal(t *testing.T) {
	got := extractJSONObject("no json here")
	assert.Equal(t, "no json here", got)
}

func TestSchemaFromStruct_RoundTripsBasicFields(t *testing.T) {
	type Result struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	schema := SchemaFromStruct(Result{})
	require.NotNil(t, schema)
	assert.Equal(t, "object", schema.Type)
	assert.Contains(t, schema.Properties, "name")
	assert.Contains(t, schema.Properties, "count")
}
