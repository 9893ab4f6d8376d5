// README: Rider service; presence toggles are owned by the rider, the dispatcher only reads.
package rider

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"boda/internal/types"
)

var (
	ErrNotFound   = errors.New("rider not found")
	ErrBadRequest = errors.New("bad request")
)

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

type RegisterCommand struct {
	Name  string
	Phone string
	Zone  string
}

func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (types.ID, error) {
	if cmd.Name == "" || cmd.Phone == "" {
		return "", ErrBadRequest
	}
	now := time.Now()
	r := &Rider{
		ID:        types.NewID(),
		Name:      cmd.Name,
		Phone:     cmd.Phone,
		Zone:      cmd.Zone,
		Presence:  PresenceOffline,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, r); err != nil {
		return "", err
	}
	return r.ID, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Rider, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) SetPresence(ctx context.Context, id types.ID, p Presence) error {
	if p != PresenceOnline && p != PresenceOffline {
		return ErrBadRequest
	}
	if err := s.store.SetPresence(ctx, id, p); err != nil {
		return err
	}
	log.Info().Str("rider_id", string(id)).Str("presence", string(p)).Msg("rider presence changed")
	return nil
}

func (s *Service) ListOnline(ctx context.Context, zone string) ([]Rider, error) {
	return s.store.ListOnline(ctx, zone)
}

func (s *Service) IncrementDeliveries(ctx context.Context, id types.ID) error {
	return s.store.IncrementDeliveries(ctx, id)
}
