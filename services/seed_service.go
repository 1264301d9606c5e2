package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/pillarworks/storefront/database"
	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/pkg"
	"github.com/pillarworks/storefront/pkg/seed"
	"github.com/pillarworks/storefront/repository"
)

// SeedReport counts what a seed run inserted.
type SeedReport struct {
	Pillars  int `json:"pillars"`
	Services int `json:"services"`
	Faqs     int `json:"faqs"`
	Sections int `json:"sections"`
}

// SeedService loads a seed document into the database. Applying is additive
// and idempotent: pillars and services are matched by slug, FAQs are only
// inserted into an empty table, and stored content sections are never
// overwritten.
type SeedService interface {
	Apply(ctx context.Context, doc *seed.Document) (*SeedReport, error)
}

type seedService struct {
	db  *sql.DB
	log *zap.Logger
}

// NewSeedService, constructor.
func NewSeedService(db *sql.DB) SeedService {
	return &seedService{db: db, log: zap.L().Named("seed")}
}

func (s *seedService) Apply(ctx context.Context, doc *seed.Document) (*SeedReport, error) {
	report := &SeedReport{}

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		pillars := repository.NewSQLitePillarRepo(tx)
		services := repository.NewSQLiteServiceRepo(tx)
		faqs := repository.NewSQLiteFaqRepo(tx)
		content := repository.NewSQLiteContentRepo(tx)

		pillarIDs := make(map[string]int64, len(doc.Pillars))
		for i, p := range doc.Pillars {
			id, created, err := s.ensurePillar(ctx, pillars, p, i)
			if err != nil {
				return err
			}
			if created {
				report.Pillars++
			}
			pillarIDs[p.Slug] = id

			for j, svc := range p.Services {
				created, err := s.ensureService(ctx, services, id, svc, j)
				if err != nil {
					return err
				}
				if created {
					report.Services++
				}
			}
		}

		n, err := faqs.Count(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			for i, f := range doc.Faqs {
				faq := &models.Faq{Question: f.Question, Answer: f.Answer, SortOrder: i, IsActive: true}
				if f.Pillar != "" {
					id := pillarIDs[f.Pillar]
					faq.PillarID = &id
				}
				if err := faqs.Create(ctx, faq); err != nil {
					return fmt.Errorf("seed faq %q: %w", f.Question, err)
				}
				report.Faqs++
			}
		}

		for raw := range doc.Content {
			created, err := s.ensureSection(ctx, content, doc, raw)
			if err != nil {
				return err
			}
			if created {
				report.Sections++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("seed applied",
		zap.Int("pillars", report.Pillars),
		zap.Int("services", report.Services),
		zap.Int("faqs", report.Faqs),
		zap.Int("sections", report.Sections))
	return report, nil
}

func (s *seedService) ensurePillar(ctx context.Context, repo repository.PillarRepository, p seed.Pillar, order int) (int64, bool, error) {
	req := models.CreatePillarRequest{Name: p.Name, Slug: p.Slug, Description: p.Description, Icon: p.Icon, SortOrder: order}
	if err := req.Validate(); err != nil {
		return 0, false, fmt.Errorf("seed pillar %q: %w", p.Name, validationError(err))
	}

	existing, err := repo.GetBySlug(ctx, req.Slug)
	if err == nil {
		return existing.ID, false, nil
	}
	if !errors.Is(err, pkg.ErrNotFound) {
		return 0, false, err
	}

	pillar := &models.Pillar{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Icon:        req.Icon,
		SortOrder:   req.SortOrder,
		IsActive:    true,
	}
	if err := repo.Create(ctx, pillar); err != nil {
		return 0, false, fmt.Errorf("seed pillar %q: %w", p.Name, err)
	}
	return pillar.ID, true, nil
}

func (s *seedService) ensureService(ctx context.Context, repo repository.ServiceRepository, pillarID int64, svc seed.Service, order int) (bool, error) {
	req := models.CreateServiceRequest{
		PillarID:    pillarID,
		Title:       svc.Title,
		Slug:        svc.Slug,
		Summary:     svc.Summary,
		Description: svc.Description,
		Type:        models.ServiceType(svc.Type),
		PriceFrom:   svc.PriceFrom,
		PriceLabel:  svc.PriceLabel,
		Features:    svc.Features,
		SortOrder:   order,
	}
	if req.Type == "" {
		req.Type = models.ServiceOneOff
	}
	if err := req.Validate(); err != nil {
		return false, fmt.Errorf("seed service %q: %w", svc.Title, validationError(err))
	}

	if _, err := repo.GetBySlug(ctx, req.Slug); err == nil {
		return false, nil
	} else if !errors.Is(err, pkg.ErrNotFound) {
		return false, err
	}

	service := &models.Service{
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
		IsActive:    true,
	}
	if err := repo.Create(ctx, service); err != nil {
		return false, fmt.Errorf("seed service %q: %w", svc.Title, err)
	}
	return true, nil
}

func (s *seedService) ensureSection(ctx context.Context, repo repository.ContentRepository, doc *seed.Document, raw string) (bool, error) {
	key, err := models.ParseSectionKey(raw)
	if err != nil {
		return false, fmt.Errorf("seed content: %w", err)
	}

	if _, err := repo.Get(ctx, key); err == nil {
		return false, nil
	} else if !errors.Is(err, pkg.ErrNotFound) {
		return false, err
	}

	data, _, err := doc.ContentJSON(raw)
	if err != nil {
		return false, err
	}
	decoded, err := models.DecodeSection(key, data)
	if err != nil {
		return false, fmt.Errorf("seed content %q: %w", key, validationError(err))
	}
	normalised, err := json.Marshal(decoded)
	if err != nil {
		return false, err
	}
	if _, err := repo.Upsert(ctx, key, normalised, nil); err != nil {
		return false, err
	}
	return true, nil
}
