package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsPrefersURL(t *testing.T) {
	opts, err := Config{URL: "redis://:secret@cache:6380/2", Addr: "ignored:6379"}.options()
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)
}

func TestOptionsFromFields(t *testing.T) {
	opts, err := Config{Addr: "localhost:6379", DB: 1}.options()
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 1, opts.DB)

	_, err = Config{URL: "http://nope"}.options()
	assert.Error(t, err)
}
