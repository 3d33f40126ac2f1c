package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashita-ai/hibari/internal/model"
	"github.com/ashita-ai/hibari/internal/storage"
)

// ProfileStore is the adapter surface Profiles depends on.
type ProfileStore interface {
	GetProfile(ctx context.Context, handle string) (model.Profile, error)
	ListProfiles(ctx context.Context) ([]model.Profile, error)
	UpsertProfiles(ctx context.Context, profiles []model.Profile) error
}

// Profiles exposes the author profiles used to seed agents.
type Profiles struct {
	store ProfileStore
}

// NewProfiles creates a profile repository over the given store.
func NewProfiles(store ProfileStore) *Profiles {
	return &Profiles{store: store}
}

// Get retrieves a profile by handle. Absence is a valid outcome, reported
// as nil with nil error.
func (p *Profiles) Get(ctx context.Context, handle string) (*model.Profile, error) {
	if handle == "" {
		return nil, fmt.Errorf("%w: profile handle is empty", ErrInvalidArgument)
	}
	profile, err := p.store.GetProfile(ctx, handle)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// List returns all profiles, ordered by handle.
func (p *Profiles) List(ctx context.Context) ([]model.Profile, error) {
	return p.store.ListProfiles(ctx)
}

// UpsertBatch validates and writes profiles all-or-nothing.
func (p *Profiles) UpsertBatch(ctx context.Context, profiles []model.Profile) error {
	for i, profile := range profiles {
		if err := profile.Validate(); err != nil {
			return fmt.Errorf("%w: profiles[%d]: %v", ErrInvalidArgument, i, err)
		}
	}
	return p.store.UpsertProfiles(ctx, profiles)
}

// BioStore is the adapter surface GeneratedBios depends on.
type BioStore interface {
	GetBio(ctx context.Context, handle string) (model.GeneratedBio, error)
	ListBios(ctx context.Context) ([]model.GeneratedBio, error)
	UpsertBio(ctx context.Context, bio model.GeneratedBio) error
}

// GeneratedBios exposes externally generated persona bios.
type GeneratedBios struct {
	store BioStore
}

// NewGeneratedBios creates a bio repository over the given store.
func NewGeneratedBios(store BioStore) *GeneratedBios {
	return &GeneratedBios{store: store}
}

// Get retrieves a generated bio by handle. Absence is a valid outcome,
// reported as nil with nil error.
func (g *GeneratedBios) Get(ctx context.Context, handle string) (*model.GeneratedBio, error) {
	if handle == "" {
		return nil, fmt.Errorf("%w: bio handle is empty", ErrInvalidArgument)
	}
	bio, err := g.store.GetBio(ctx, handle)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bio, nil
}

// List returns all generated bios, ordered by handle.
func (g *GeneratedBios) List(ctx context.Context) ([]model.GeneratedBio, error) {
	return g.store.ListBios(ctx)
}

// Upsert validates and writes a generated bio.
func (g *GeneratedBios) Upsert(ctx context.Context, bio model.GeneratedBio) error {
	if err := bio.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return g.store.UpsertBio(ctx, bio)
}
