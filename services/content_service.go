package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/pkg"
	"github.com/pillarworks/storefront/pkg/cache"
	"github.com/pillarworks/storefront/pkg/ratelimit"
	"github.com/pillarworks/storefront/repository"
	"github.com/pillarworks/storefront/ws"
)

// ContentService serves the key-value content sections. Reads go through a
// TTL cache that every write invalidates.
type ContentService interface {
	// GetPublic returns a section for anonymous visitors; non-public keys
	// report pkg.ErrNotFound.
	GetPublic(ctx context.Context, key models.SectionKey) (any, error)
	ListPublic(ctx context.Context) (map[models.SectionKey]any, error)
	Get(ctx context.Context, key models.SectionKey) (*SectionView, error)
	// Update replaces a section. Fields missing from data fall back to defaults.
	Update(ctx context.Context, key models.SectionKey, data json.RawMessage, userID string) (*SectionView, error)
	Website(ctx context.Context) (*models.Website, error)
	SubmitContact(ctx context.Context, clientIP string, req *models.ContactRequest) error
}

// SectionView is a decoded section with its audit fields. UpdatedAt is nil
// while the section still has its defaults.
type SectionView struct {
	Key       models.SectionKey `json:"key"`
	Data      any               `json:"data"`
	UpdatedBy *string           `json:"updated_by"`
	UpdatedAt *time.Time        `json:"updated_at"`
}

type contentService struct {
	repo     repository.ContentRepository
	hub      ws.EventPublisher
	notifier Notifier
	cache    *cache.TTLCache[models.SectionKey, *SectionView]
	contact  *ratelimit.Limiter
	log      *zap.Logger
}

// NewContentService, constructor. contactLimiter throttles the public
// contact form per client IP.
func NewContentService(
	repo repository.ContentRepository,
	hub ws.EventPublisher,
	notifier Notifier,
	sectionCache *cache.TTLCache[models.SectionKey, *SectionView],
	contactLimiter *ratelimit.Limiter,
) ContentService {
	return &contentService{
		repo:     repo,
		hub:      hub,
		notifier: notifier,
		cache:    sectionCache,
		contact:  contactLimiter,
		log:      zap.L().Named("content"),
	}
}

func (s *contentService) GetPublic(ctx context.Context, key models.SectionKey) (any, error) {
	if !key.IsPublic() {
		return nil, fmt.Errorf("%w: content section %q", pkg.ErrNotFound, key)
	}
	view, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return view.Data, nil
}

func (s *contentService) ListPublic(ctx context.Context) (map[models.SectionKey]any, error) {
	out := make(map[models.SectionKey]any, len(models.PublicSections))
	for _, key := range models.PublicSections {
		view, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		out[key] = view.Data
	}
	return out, nil
}

func (s *contentService) Get(ctx context.Context, key models.SectionKey) (*SectionView, error) {
	return s.cache.GetOrLoad(key, func() (*SectionView, error) {
		return s.load(ctx, key)
	})
}

func (s *contentService) load(ctx context.Context, key models.SectionKey) (*SectionView, error) {
	view := &SectionView{Key: key}

	var stored []byte
	row, err := s.repo.Get(ctx, key)
	switch {
	case err == nil:
		stored = row.Data
		view.UpdatedBy = row.UpdatedBy
		at := row.UpdatedAt
		view.UpdatedAt = &at
	case errors.Is(err, pkg.ErrNotFound):
	default:
		return nil, err
	}

	data, err := models.DecodeSection(key, stored)
	if err != nil {
		// A stored document that no longer validates is served as defaults
		// rather than taking the page down.
		s.log.Error("stored section is invalid, serving defaults", zap.String("key", string(key)), zap.Error(err))
		data, err = models.DecodeSection(key)
		if err != nil {
			return nil, err
		}
	}
	view.Data = data
	return view, nil
}

func (s *contentService) Update(ctx context.Context, key models.SectionKey, data json.RawMessage, userID string) (*SectionView, error) {
	if key == models.SectionTheme {
		return nil, fmt.Errorf("%w: the theme is updated through /api/admin/theme", pkg.ErrBadRequest)
	}
	if len(data) == 0 || !json.Valid(data) {
		return nil, fmt.Errorf("%w: data must be a JSON object", pkg.ErrBadRequest)
	}

	decoded, err := models.DecodeSection(key, data)
	if err != nil {
		return nil, validationError(err)
	}

	// Persist the normalised document, not the raw input.
	normalised, err := json.Marshal(decoded)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s section: %w", key, err)
	}

	var by *string
	if userID != "" {
		by = &userID
	}
	row, err := s.repo.Upsert(ctx, key, normalised, by)
	if err != nil {
		return nil, err
	}
	s.cache.Delete(key)

	if key.IsPublic() {
		s.hub.BroadcastToAll(ws.Event{Op: ws.OpContentUpdate, Data: ws.ContentUpdateData{Key: string(key)}})
	} else {
		s.hub.BroadcastToPermitted(models.PermManageSettings, ws.Event{Op: ws.OpContentUpdate, Data: ws.ContentUpdateData{Key: string(key)}})
	}

	at := row.UpdatedAt
	return &SectionView{Key: key, Data: decoded, UpdatedBy: row.UpdatedBy, UpdatedAt: &at}, nil
}

func (s *contentService) Website(ctx context.Context) (*models.Website, error) {
	view, err := s.Get(ctx, models.SectionWebsite)
	if err != nil {
		return nil, err
	}
	website, ok := view.Data.(*models.Website)
	if !ok {
		return nil, fmt.Errorf("website section has unexpected type %T", view.Data)
	}
	return website, nil
}

func (s *contentService) SubmitContact(ctx context.Context, clientIP string, req *models.ContactRequest) error {
	if err := req.Validate(); err != nil {
		return validationError(err)
	}

	if !s.contact.Allow(clientIP) {
		retry := s.contact.RetryAfterSeconds(clientIP)
		return pkg.WithCode("rate_limited", fmt.Errorf("%w: %s", pkg.ErrRateLimited, ratelimit.FormatRetryMessage(retry)))
	}

	page, err := s.Get(ctx, models.SectionContact)
	if err != nil {
		return err
	}
	contact, _ := page.Data.(*models.ContactPage)
	if contact != nil && !contact.FormEnabled {
		return fmt.Errorf("%w: the contact form is disabled", pkg.ErrUnavailable)
	}

	to := ""
	if contact != nil {
		to = contact.Email
	}
	if to == "" {
		if site, err := s.Get(ctx, models.SectionSiteSettings); err == nil {
			if settings, ok := site.Data.(*models.SiteSettings); ok {
				to = settings.ContactEmail
			}
		}
	}

	if err := s.notifier.ContactMessage(ctx, to, req); err != nil {
		s.log.Error("failed to send contact message", zap.Error(err))
		return fmt.Errorf("%w: message could not be sent, please try again later", pkg.ErrUnavailable)
	}
	return nil
}
