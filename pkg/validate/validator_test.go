package validate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const validGoFile = `package generated

func Add(a, b int) int {
	return a + b
}
`

const syntaxBrokenFile = `package generated

func Add(a, b int) int {
	return a +
}
`

const compileBrokenFile = `package generated

func Add(a, b int) int {
	return a + undefinedName
}
`

func TestValidate_EmptyTestsPassesAfterCompileCheck(t *testing.T) {
	r := Validate(context.Background(), validGoFile, "", time.Second)
	assert.True(t, r.Passed)
	assert.Empty(t, r.Error)
}

func TestValidate_EmptyTestsStillCatchesSyntaxError(t *testing.T) {
	r := Validate(context.Background(), syntaxBrokenFile, "", time.Second)
	assert.False(t, r.Passed)
	assert.Contains(t, r.Error, "syntax error")
}

func TestValidate_EmptyTestsStillCatchesCompileError(t *testing.T) {
	r := Validate(context.Background(), compileBrokenFile, "", time.Second)
	assert.False(t, r.Passed)
	assert.Contains(t, r.Error, "compile error")
}

func TestValidate_WhitespaceOnlyTestsTreatedAsEmpty(t *testing.T) {
	r := Validate(context.Background(), validGoFile, "   \n\t  ", time.Second)
	assert.True(t, r.Passed)
}

func TestValidate_Idempotent(t *testing.T) {
	for _, code := range []string{validGoFile, syntaxBrokenFile, compileBrokenFile} {
		first := Validate(context.Background(), code, "", time.Second)
		second := Validate(context.Background(), code, "", time.Second)
		assert.Equal(t, first.Passed, second.Passed)
		assert.Equal(t, first.Error, second.Error)
	}
}

func TestValidate_ZeroTimeoutUsesDefault(t *testing.T) {
	r := Validate(context.Background(), validGoFile, "", 0)
	assert.True(t, r.Passed)
}

func TestValidate_CanceledContextTimesOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := Validate(ctx, validGoFile, "", time.Second)
	assert.False(t, r.Passed)
	assert.Equal(t, "timeout", r.Error)
}

func TestCheckSyntax(t *testing.T) {
	assert.True(t, checkSyntax(validGoFile).Passed)

	r := checkSyntax(syntaxBrokenFile)
	assert.False(t, r.Passed)
	assert.Contains(t, r.Error, "syntax error")
}

func TestCheckCompile(t *testing.T) {
	assert.True(t, checkCompile(validGoFile).Passed)

	r := checkCompile(compileBrokenFile)
	assert.False(t, r.Passed)
	assert.Contains(t, r.Error, "compile error")
}

func TestClassifyFailure(t *testing.T) {
	assert.Contains(t, classifyFailure("panic: runtime error: index out of range\n\ngoroutine 1"), "panic:")
	assert.Contains(t, classifyFailure("--- FAIL: TestFoo (0.00s)\nFAIL"), "test failure:")
	assert.Contains(t, classifyFailure("some unrecognized output"), "test failure:")
}
