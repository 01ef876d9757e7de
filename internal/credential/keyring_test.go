package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWidgetKeyRoundTrip(t *testing.T) {
	v := NewVault(keyring.NewArrayKeyring(nil))

	got, err := v.WidgetKey("sub-1")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, v.SetWidgetKey("sub-1", "k1"))
	require.NoError(t, v.SetWidgetKey("sub-2", "k2"))

	got, err = v.WidgetKey("sub-1")
	require.NoError(t, err)
	assert.Equal(t, "k1", got)

	require.NoError(t, v.DeleteWidgetKey("sub-1"))
	require.NoError(t, v.DeleteWidgetKey("sub-1"))

	got, err = v.WidgetKey("sub-1")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = v.WidgetKey("sub-2")
	require.NoError(t, err)
	assert.Equal(t, "k2", got)
}
