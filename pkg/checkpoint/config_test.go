package checkpoint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfig_SetDefaults(t *testing.T) {
	c := &Config{}
	c.SetDefaults()
	assert.Equal(t, ".codeforge/checkpoints", c.Root)
	assert.Equal(t, 24*time.Hour, c.TTL)
	assert.Equal(t, 10*time.Minute, c.SweepInterval)
}

func TestConfig_Validate(t *testing.T) {
	c := &Config{}
	c.SetDefaults()
	assert.NoError(t, c.Validate())

	bad := &Config{Root: "x", TTL: -1, SweepInterval: time.Minute}
	assert.Error(t, bad.Validate())
}
