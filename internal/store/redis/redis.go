// Package redis stores profiles in a single Redis hash. Field names are the
// hex identity ids; values are CBOR-encoded records.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/vovakirdan/wireroom-server/internal/store"
	"github.com/vovakirdan/wireroom-server/internal/wire"
)

// DefaultKey is the hash holding every profile.
const DefaultKey = "wireroom:profiles"

type record struct {
	Name      string `cbor:"1,keyasint"`
	Color     uint32 `cbor:"2,keyasint"`
	UpdatedAt int64  `cbor:"3,keyasint"`
}

// Names written by older builds may hold invalid UTF-8; they are decoded
// and repaired rather than rejected.
var decMode = func() cbor.DecMode {
	dm, err := cbor.DecOptions{UTF8: cbor.UTF8DecodeInvalid}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}()

// Store implements store.ProfileStore on Redis.
type Store struct {
	rdb *goredis.Client
	key string
	log *zerolog.Logger
}

// New connects to addr and verifies the connection with a PING.
func New(ctx context.Context, addr string, db int, key string, logger *zerolog.Logger) (*Store, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis at %s: %w", addr, err)
	}

	return NewWithClient(rdb, key, logger), nil
}

// NewWithClient wraps an existing client. logger may be nil.
func NewWithClient(rdb *goredis.Client, key string, logger *zerolog.Logger) *Store {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Store{rdb: rdb, key: key, log: logger}
}

// GetProfile retrieves a profile by id.
func (s *Store) GetProfile(ctx context.Context, id wire.IdentityID) (*store.Profile, error) {
	raw, err := s.rdb.HGet(ctx, s.key, id.String()).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("hget profile: %w", err)
	}
	p, err := decode(id, raw)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// PutProfile stores one profile.
func (s *Store) PutProfile(ctx context.Context, p store.Profile) error {
	return s.PutProfiles(ctx, []store.Profile{p})
}

// PutProfiles stores a batch with a single HSET.
func (s *Store) PutProfiles(ctx context.Context, profiles []store.Profile) error {
	if len(profiles) == 0 {
		return nil
	}
	values := make([]any, 0, len(profiles)*2)
	for _, p := range profiles {
		raw, err := encode(p)
		if err != nil {
			return err
		}
		values = append(values, p.ID.String(), raw)
	}
	if err := s.rdb.HSet(ctx, s.key, values...).Err(); err != nil {
		return fmt.Errorf("hset profiles: %w", err)
	}
	return nil
}

// ListProfiles returns every profile ordered by id. Entries that cannot be
// decoded are logged and skipped.
func (s *Store) ListProfiles(ctx context.Context) ([]store.Profile, error) {
	all, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall profiles: %w", err)
	}
	return decodeAll(all, s.log), nil
}

func decodeAll(all map[string]string, logger *zerolog.Logger) []store.Profile {
	profiles := make([]store.Profile, 0, len(all))
	for field, raw := range all {
		id, err := wire.ParseIdentityID(field)
		if err != nil {
			logger.Warn().Err(err).Str("field", field).Msg("skipping profile with bad id")
			continue
		}
		p, err := decode(id, []byte(raw))
		if err != nil {
			logger.Warn().Err(err).Str("id", field).Msg("skipping undecodable profile")
			continue
		}
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].ID.String() < profiles[j].ID.String() })
	return profiles
}

// Close closes the client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

func encode(p store.Profile) ([]byte, error) {
	at := p.UpdatedAt
	if at.IsZero() {
		at = time.Now()
	}
	raw, err := cbor.Marshal(record{Name: strings.ToValidUTF8(p.Name, "\uFFFD"), Color: uint32(p.Color), UpdatedAt: at.UnixMilli()})
	if err != nil {
		return nil, fmt.Errorf("encode profile %s: %w", p.ID, err)
	}
	return raw, nil
}

func decode(id wire.IdentityID, raw []byte) (store.Profile, error) {
	var rec record
	if err := decMode.Unmarshal(raw, &rec); err != nil {
		return store.Profile{}, fmt.Errorf("decode profile %s: %w", id, err)
	}
	return store.Profile{
		ID:        id,
		Name:      strings.ToValidUTF8(rec.Name, "\uFFFD"),
		Color:     wire.Color(rec.Color),
		UpdatedAt: time.UnixMilli(rec.UpdatedAt).UTC(),
	}, nil
}

var _ store.ProfileStore = (*Store)(nil)
