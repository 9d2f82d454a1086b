package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounter_WordFallback(t *testing.T) {
	c := &Counter{}

	assert.Equal(t, 0, c.Count(""))
	assert.Equal(t, 3, c.Count("the  cat\nsat"))
}

func TestNewCounter_UnknownEncoding(t *testing.T) {
	c, err := NewCounter("no-such-encoding")

	assert.Error(t, err)
	require.NotNil(t, c)
	assert.Nil(t, c.encoding)
	assert.Equal(t, 2, c.Count("still counts"))
}

func TestNewCounter_Default(t *testing.T) {
	c, err := NewCounter("")
	if err != nil {
		// cl100k_base is downloaded on first use; offline runs only get the fallback.
		t.Skipf("encoding unavailable: %v", err)
	}

	assert.NotNil(t, c.encoding)
	assert.Equal(t, 0, c.Count(""))
	assert.Greater(t, c.Count("Dogs are loyal companions."), 3)
}
