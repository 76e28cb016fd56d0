package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvDefaults(t *testing.T) {
	t.Setenv("TRACKSIDE_TEST_STR", "value")
	assert.Equal(t, "value", GetEnv("TRACKSIDE_TEST_STR", "fallback"))
	assert.Equal(t, "fallback", GetEnv("TRACKSIDE_TEST_MISSING", "fallback"))
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("TRACKSIDE_TEST_INT", "42")
	assert.Equal(t, 42, GetEnvInt("TRACKSIDE_TEST_INT", 7))

	t.Setenv("TRACKSIDE_TEST_INT", "not-a-number")
	assert.Equal(t, 7, GetEnvInt("TRACKSIDE_TEST_INT", 7))
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("TRACKSIDE_TEST_BOOL", "true")
	assert.True(t, GetEnvBool("TRACKSIDE_TEST_BOOL", false))

	t.Setenv("TRACKSIDE_TEST_BOOL", "nope")
	assert.True(t, GetEnvBool("TRACKSIDE_TEST_BOOL", true))
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TRACKSIDE_TEST_DUR", "30m")
	assert.Equal(t, 30*time.Minute, GetEnvDuration("TRACKSIDE_TEST_DUR", time.Hour))

	t.Setenv("TRACKSIDE_TEST_DUR", "soon")
	assert.Equal(t, time.Hour, GetEnvDuration("TRACKSIDE_TEST_DUR", time.Hour))
}

func TestGetEnvSlice(t *testing.T) {
	t.Setenv("TRACKSIDE_TEST_SLICE", "https://a.example, https://b.example,,")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, GetEnvSlice("TRACKSIDE_TEST_SLICE", nil))

	t.Setenv("TRACKSIDE_TEST_SLICE", "")
	assert.Equal(t, []string{"x"}, GetEnvSlice("TRACKSIDE_TEST_SLICE", []string{"x"}))
}
