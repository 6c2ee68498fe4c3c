package entrypoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCSRFSecret(t *testing.T) {
	secret, err := loadCSRFSecret("6869")
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), secret)

	secret, err = loadCSRFSecret("not hex at all")
	require.NoError(t, err)
	assert.Equal(t, []byte("not hex at all"), secret)

	first, err := loadCSRFSecret("")
	require.NoError(t, err)
	second, err := loadCSRFSecret("")
	require.NoError(t, err)
	assert.Len(t, first, 32)
	assert.NotEqual(t, first, second)
}
