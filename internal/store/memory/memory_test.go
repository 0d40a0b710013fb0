package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vovakirdan/wireroom-server/internal/store"
	"github.com/vovakirdan/wireroom-server/internal/wire"
)

func TestMemoryStore(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.GetProfile(ctx, wire.IdentityID{1})
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.PutProfiles(ctx, []store.Profile{
		{ID: wire.IdentityID{2}, Name: "b"},
		{ID: wire.IdentityID{1}, Name: "a"},
	}))
	require.NoError(t, s.PutProfile(ctx, store.Profile{ID: wire.IdentityID{1}, Name: "a2"}))

	p, err := s.GetProfile(ctx, wire.IdentityID{1})
	require.NoError(t, err)
	require.Equal(t, "a2", p.Name)

	all, err := s.ListProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, wire.IdentityID{1}, all[0].ID)
	require.NoError(t, s.Close())
}
