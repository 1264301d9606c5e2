package services

import (
	"context"

	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/repository"
	"github.com/pillarworks/storefront/ws"
)

// FaqService manages global and pillar-scoped FAQs.
type FaqService interface {
	List(ctx context.Context, filter models.FaqFilter) ([]models.Faq, error)
	Get(ctx context.Context, id int64) (*models.Faq, error)
	Create(ctx context.Context, req *models.FaqRequest) (*models.Faq, error)
	Update(ctx context.Context, id int64, req *models.FaqRequest) (*models.Faq, error)
	Delete(ctx context.Context, id int64) error
}

type faqService struct {
	repo repository.FaqRepository
	hub  ws.EventPublisher
}

// NewFaqService, constructor.
func NewFaqService(repo repository.FaqRepository, hub ws.EventPublisher) FaqService {
	return &faqService{repo: repo, hub: hub}
}

func (s *faqService) List(ctx context.Context, filter models.FaqFilter) ([]models.Faq, error) {
	if filter.PillarSlug != "" {
		filter.GlobalOnly = false
	}
	return s.repo.List(ctx, filter)
}

func (s *faqService) Get(ctx context.Context, id int64) (*models.Faq, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *faqService) Create(ctx context.Context, req *models.FaqRequest) (*models.Faq, error) {
	if err := req.Validate(); err != nil {
		return nil, validationError(err)
	}

	faq := &models.Faq{
		Question:  req.Question,
		Answer:    req.Answer,
		PillarID:  req.PillarID,
		SortOrder: req.SortOrder,
		IsActive:  req.IsActive == nil || *req.IsActive,
	}
	// An unknown pillar fails the foreign key and surfaces as 400.
	if err := s.repo.Create(ctx, faq); err != nil {
		return nil, err
	}

	created, err := s.repo.GetByID(ctx, faq.ID)
	if err != nil {
		return nil, err
	}
	s.broadcast("create", created.ID)
	return created, nil
}

func (s *faqService) Update(ctx context.Context, id int64, req *models.FaqRequest) (*models.Faq, error) {
	if err := req.Validate(); err != nil {
		return nil, validationError(err)
	}

	faq, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	faq.Question = req.Question
	faq.Answer = req.Answer
	faq.PillarID = req.PillarID
	faq.SortOrder = req.SortOrder
	if req.IsActive != nil {
		faq.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, faq); err != nil {
		return nil, err
	}

	updated, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.broadcast("update", id)
	return updated, nil
}

func (s *faqService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.broadcast("delete", id)
	return nil
}

func (s *faqService) broadcast(action string, id int64) {
	s.hub.BroadcastToAll(ws.Event{Op: ws.OpFaqUpdate, Data: ws.FaqUpdateData{Action: action, ID: id}})
}
