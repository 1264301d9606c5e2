package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/pkg"
	"github.com/pillarworks/storefront/repository"
	"github.com/pillarworks/storefront/ws"
)

// CatalogService manages pillars and the services sold under them.
type CatalogService interface {
	ListPillars(ctx context.Context, activeOnly bool) ([]models.Pillar, error)
	GetPillar(ctx context.Context, id int64) (*models.Pillar, error)
	// GetPillarBySlug returns the pillar with its services. publicOnly hides
	// inactive pillars and services.
	GetPillarBySlug(ctx context.Context, slug string, publicOnly bool) (*models.PillarWithServices, error)
	CreatePillar(ctx context.Context, req *models.CreatePillarRequest) (*models.Pillar, error)
	UpdatePillar(ctx context.Context, id int64, req *models.UpdatePillarRequest) (*models.Pillar, error)
	DeletePillar(ctx context.Context, id int64) error

	ListServices(ctx context.Context, filter repository.ServiceFilter) ([]models.Service, error)
	GetService(ctx context.Context, id int64) (*models.Service, error)
	GetServiceBySlug(ctx context.Context, slug string, publicOnly bool) (*models.Service, error)
	CreateService(ctx context.Context, req *models.CreateServiceRequest) (*models.Service, error)
	UpdateService(ctx context.Context, id int64, req *models.UpdateServiceRequest) (*models.Service, error)
	DeleteService(ctx context.Context, id int64) error
}

type catalogService struct {
	pillarRepo  repository.PillarRepository
	serviceRepo repository.ServiceRepository
	hub         ws.EventPublisher
	log         *zap.Logger
}

// NewCatalogService, constructor.
func NewCatalogService(
	pillarRepo repository.PillarRepository,
	serviceRepo repository.ServiceRepository,
	hub ws.EventPublisher,
) CatalogService {
	return &catalogService{
		pillarRepo:  pillarRepo,
		serviceRepo: serviceRepo,
		hub:         hub,
		log:         zap.L().Named("catalog"),
	}
}

// ─── Pillars ───

func (s *catalogService) ListPillars(ctx context.Context, activeOnly bool) ([]models.Pillar, error) {
	return s.pillarRepo.List(ctx, activeOnly)
}

func (s *catalogService) GetPillar(ctx context.Context, id int64) (*models.Pillar, error) {
	return s.pillarRepo.GetByID(ctx, id)
}

func (s *catalogService) GetPillarBySlug(ctx context.Context, slug string, publicOnly bool) (*models.PillarWithServices, error) {
	pillar, err := s.pillarRepo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if publicOnly && !pillar.IsActive {
		return nil, fmt.Errorf("pillar %q: %w", slug, pkg.ErrNotFound)
	}

	services, err := s.serviceRepo.List(ctx, repository.ServiceFilter{PillarID: pillar.ID, ActiveOnly: publicOnly})
	if err != nil {
		return nil, err
	}
	return &models.PillarWithServices{Pillar: *pillar, Services: services}, nil
}

func (s *catalogService) CreatePillar(ctx context.Context, req *models.CreatePillarRequest) (*models.Pillar, error) {
	if err := req.Validate(); err != nil {
		return nil, validationError(err)
	}

	pillar := &models.Pillar{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Icon:        req.Icon,
		SortOrder:   req.SortOrder,
		IsActive:    req.IsActive == nil || *req.IsActive,
	}
	if err := s.pillarRepo.Create(ctx, pillar); err != nil {
		return nil, err
	}

	s.broadcast("pillar", "create", pillar.ID)
	return pillar, nil
}

func (s *catalogService) UpdatePillar(ctx context.Context, id int64, req *models.UpdatePillarRequest) (*models.Pillar, error) {
	if err := req.Validate(); err != nil {
		return nil, validationError(err)
	}

	pillar, err := s.pillarRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	req.Apply(pillar)

	if err := s.pillarRepo.Update(ctx, pillar); err != nil {
		return nil, err
	}

	s.broadcast("pillar", "update", pillar.ID)
	return pillar, nil
}

func (s *catalogService) DeletePillar(ctx context.Context, id int64) error {
	if err := s.pillarRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.broadcast("pillar", "delete", id)
	return nil
}

// ─── Services ───

func (s *catalogService) ListServices(ctx context.Context, filter repository.ServiceFilter) ([]models.Service, error) {
	return s.serviceRepo.List(ctx, filter)
}

func (s *catalogService) GetService(ctx context.Context, id int64) (*models.Service, error) {
	return s.serviceRepo.GetByID(ctx, id)
}

func (s *catalogService) GetServiceBySlug(ctx context.Context, slug string, publicOnly bool) (*models.Service, error) {
	svc, err := s.serviceRepo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if publicOnly && !svc.IsActive {
		return nil, fmt.Errorf("service %q: %w", slug, pkg.ErrNotFound)
	}
	return svc, nil
}

func (s *catalogService) CreateService(ctx context.Context, req *models.CreateServiceRequest) (*models.Service, error) {
	if err := req.Validate(); err != nil {
		return nil, validationError(err)
	}

	svc := &models.Service{
		PillarID:    req.PillarID,
		Title:       req.Title,
		Slug:        req.Slug,
		Summary:     req.Summary,
		Description: req.Description,
		Type:        req.Type,
		PriceFrom:   req.PriceFrom,
		PriceLabel:  req.PriceLabel,
		Features:    req.Features,
		SortOrder:   req.SortOrder,
		IsActive:    req.IsActive == nil || *req.IsActive,
	}
	if err := s.serviceRepo.Create(ctx, svc); err != nil {
		return nil, err
	}

	// Reload for the joined pillar name and slug.
	created, err := s.serviceRepo.GetByID(ctx, svc.ID)
	if err != nil {
		return nil, err
	}

	s.broadcast("service", "create", created.ID)
	return created, nil
}

func (s *catalogService) UpdateService(ctx context.Context, id int64, req *models.UpdateServiceRequest) (*models.Service, error) {
	if err := req.Validate(); err != nil {
		return nil, validationError(err)
	}

	svc, err := s.serviceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	req.Apply(svc)

	if err := s.serviceRepo.Update(ctx, svc); err != nil {
		return nil, err
	}

	updated, err := s.serviceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.broadcast("service", "update", id)
	return updated, nil
}

func (s *catalogService) DeleteService(ctx context.Context, id int64) error {
	if err := s.serviceRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.broadcast("service", "delete", id)
	return nil
}

func (s *catalogService) broadcast(entity, action string, id int64) {
	s.hub.BroadcastToAll(ws.Event{
		Op:   ws.OpCatalogUpdate,
		Data: ws.CatalogUpdateData{Entity: entity, Action: action, ID: id},
	})
}
