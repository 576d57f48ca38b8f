package notifications

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemorySeenSet(t *testing.T) {
	s := NewMemorySeenSet()
	ctx := context.Background()

	fresh, err := s.AddNew(ctx, []string{"a", "b", "a"})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, fresh)

	fresh, _ = s.AddNew(ctx, []string{"b", "c"})
	require.Equal(t, []string{"c"}, fresh)

	n, _ := s.Len(ctx)
	require.Equal(t, int64(3), n)
}
