package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedRunIDGenerator_ReturnsSameID(t *testing.T) {
	g := NewFixedRunIDGenerator("run-1")
	assert.Equal(t, "run-1", g.Generate())
	assert.Equal(t, "run-1", g.Generate())
}

func TestFixedRunIDGenerator_Default(t *testing.T) {
	g := NewFixedRunIDGenerator("")
	assert.Equal(t, "test-run-default", g.Generate())
}
