package logging

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
	assert.Equal(t, zerolog.DebugLevel, parseLevel(" DEBUG "))
	assert.Equal(t, zerolog.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("loud"))
}

func TestSelectWriter(t *testing.T) {
	assert.Equal(t, os.Stderr, selectWriter("json"))
	assert.IsType(t, zerolog.ConsoleWriter{}, selectWriter("console"))

	orig := isTerminalFn
	t.Cleanup(func() { isTerminalFn = orig })
	isTerminalFn = func(int) bool { return false }
	assert.Equal(t, os.Stderr, selectWriter("auto"))
	isTerminalFn = func(int) bool { return true }
	assert.IsType(t, zerolog.ConsoleWriter{}, selectWriter(""))
}

func TestInitSetsGlobalLevel(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })
	Init(Config{Format: "json", Level: "error", Component: "billing"})
	assert.Equal(t, zerolog.ErrorLevel, zerolog.GlobalLevel())
}
