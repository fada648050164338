package parking

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	gate := NewGate(st, true)

	added, err := gate.Add(ctx, "ABC 123")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = gate.Add(ctx, "  abc-123 ")
	require.NoError(t, err)
	assert.False(t, added, "formatting differences normalize to the same plate")

	ok, err := gate.Admit(ctx, "abc.123")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = gate.Admit(ctx, "XYZ 9")
	require.NoError(t, err)
	assert.False(t, ok)

	gate.SetEnabled(false)
	assert.False(t, gate.Enabled())
	ok, err = gate.Admit(ctx, "XYZ 9")
	require.NoError(t, err)
	assert.True(t, ok, "disabled gate admits everyone")

	ok, err = gate.IsAllowed(ctx, "XYZ 9")
	require.NoError(t, err)
	assert.False(t, ok, "membership does not depend on the toggle")

	plates, err := gate.List(ctx)
	require.NoError(t, err)
	require.Len(t, plates, 1)
	assert.Equal(t, "abc-123", plates[0].Plate)

	removed, err := gate.Remove(ctx, "Abc 123")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = gate.Remove(ctx, "Abc 123")
	require.NoError(t, err)
	assert.False(t, removed)
}
