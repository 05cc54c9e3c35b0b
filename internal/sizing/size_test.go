package sizing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/arcvfs/vfs"
)

func TestAddUint64(t *testing.T) {
	t.Parallel()

	sum, ok := AddUint64(1, 2)
	assert.True(t, ok)
	assert.Equal(t, uint64(3), sum)

	_, ok = AddUint64(math.MaxUint64, 1)
	assert.False(t, ok)
}

func TestWithin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		off, n, limit uint64
		want          bool
	}{
		{0, 0, 0, true},
		{0, 10, 10, true},
		{1, 10, 10, false},
		{math.MaxUint64, 2, math.MaxUint64, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Within(tt.off, tt.n, tt.limit), "Within(%d, %d, %d)", tt.off, tt.n, tt.limit)
	}
}

func TestBuffer(t *testing.T) {
	t.Parallel()

	b, err := Buffer(16, 64)
	require.NoError(t, err)
	assert.Len(t, b, 16)

	_, err = Buffer(65, 64)
	require.ErrorIs(t, err, vfs.ErrLimit)
	require.ErrorIs(t, err, vfs.ErrMalformed)
}

func TestToInt64Overflow(t *testing.T) {
	t.Parallel()

	_, err := ToInt64(math.MaxUint64)
	require.ErrorIs(t, err, vfs.ErrNoMemory)
}
