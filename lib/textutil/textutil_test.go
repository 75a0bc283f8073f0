package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSameName(t *testing.T) {
	require.True(t, SameName("Crude Palm Oil", "crude  palm\toil"))
	require.True(t, SameName(" Oil Palm Products\n", "Oil Palm Products"))
	require.False(t, SameName("Palm Kernel", "Palm Kernel Cake"))
}

func TestClosestName(t *testing.T) {
	candidates := []string{"Destinations", "Products", "Ports"}

	name, similarity := ClosestName("Destination", candidates)
	require.Equal(t, "Destinations", name)
	require.Greater(t, similarity, 0.9)

	name, _ = ClosestName("port", candidates)
	require.Equal(t, "Ports", name)

	name, similarity = ClosestName("anything", nil)
	require.Empty(t, name)
	require.Zero(t, similarity)
}
