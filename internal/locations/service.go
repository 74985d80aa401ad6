package locations

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/packfinderz-inventory/pkg/db"
	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
	"github.com/google/uuid"
)

// Service exposes location lookups to the resolver, checkout and POS sync.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Location, error)
	GetActive(ctx context.Context, id uuid.UUID) (*models.Location, error)
	ListActive(ctx context.Context) ([]models.Location, error)
	ListSyncable(ctx context.Context) ([]models.Location, error)
	MarkSynced(ctx context.Context, id uuid.UUID, at time.Time) error
}

type service struct {
	repo Repository
}

// NewService builds the location service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("location repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Location, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "location id required")
	}
	location, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "location not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load location")
	}
	return location, nil
}

// GetActive is Get that also rejects inactive locations.
func (s *service) GetActive(ctx context.Context, id uuid.UUID) (*models.Location, error) {
	location, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !location.Active {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "location is not active")
	}
	return location, nil
}

func (s *service) ListActive(ctx context.Context) ([]models.Location, error) {
	rows, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list locations")
	}
	return rows, nil
}

func (s *service) ListSyncable(ctx context.Context) ([]models.Location, error) {
	rows, err := s.repo.ListSyncable(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list syncable locations")
	}
	return rows, nil
}

func (s *service) MarkSynced(ctx context.Context, id uuid.UUID, at time.Time) error {
	if err := s.repo.MarkSynced(ctx, id, at); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark location synced")
	}
	return nil
}
