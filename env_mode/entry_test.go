package env_mode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEnv(t *testing.T) {
	assert.Equal(t, ProMode, ParseEnv(" PROD "))
	assert.Equal(t, TestMode, ParseEnv("testing"))
	assert.Equal(t, DevMode, ParseEnv(""))
	assert.Equal(t, DevMode, ParseEnv("staging"))
}

func TestSetModeOverrides(t *testing.T) {
	prev := Mode()
	t.Cleanup(func() { SetMode(prev) })

	SetMode(TestMode)
	assert.Equal(t, TestMode, Mode())
}
