package store

import (
	"context"
	"errors"
	"time"

	"github.com/vovakirdan/wireroom-server/internal/wire"
)

// ErrNotFound is returned when no profile exists for an identity.
var ErrNotFound = errors.New("profile not found")

// DefaultName is given to identities that never set a name.
const DefaultName = "Anonymous"

// Profile is the persisted, user-editable part of an identity.
type Profile struct {
	ID        wire.IdentityID
	Name      string
	Color     wire.Color
	UpdatedAt time.Time
}

// ProfileStore handles profile persistence.
type ProfileStore interface {
	// GetProfile retrieves the profile for id or ErrNotFound.
	GetProfile(ctx context.Context, id wire.IdentityID) (*Profile, error)

	// PutProfile inserts or replaces one profile.
	PutProfile(ctx context.Context, p Profile) error

	// PutProfiles inserts or replaces a batch of profiles atomically where
	// the backend allows it.
	PutProfiles(ctx context.Context, profiles []Profile) error

	// ListProfiles returns every stored profile.
	ListProfiles(ctx context.Context) ([]Profile, error)

	// Close releases the underlying connection.
	Close() error
}
