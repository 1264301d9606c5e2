package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/pkg"
	"github.com/pillarworks/storefront/repository"
	"github.com/pillarworks/storefront/ws"
)

// ThemeService manages the design tokens stored in the "theme" section.
type ThemeService interface {
	Get(ctx context.Context) (*models.Theme, error)
	// Update merges the submitted tokens over the defaults, persists and
	// broadcasts the result.
	Update(ctx context.Context, data json.RawMessage, userID string) (*models.Theme, error)
	CSS(ctx context.Context) (string, error)
	// Preview merges a partial theme over the saved one without persisting.
	Preview(data json.RawMessage) (ws.ThemeData, error)
}

type themeService struct {
	content ContentService
	repo    repository.ContentRepository
	hub     ws.EventPublisher
	// invalidate drops the cached theme section after a write.
	invalidate func(models.SectionKey)
	log        *zap.Logger
}

// NewThemeService, constructor. Reads go through content so they share its
// cache; invalidate must evict from that same cache.
func NewThemeService(
	content ContentService,
	repo repository.ContentRepository,
	hub ws.EventPublisher,
	invalidate func(models.SectionKey),
) ThemeService {
	return &themeService{
		content:    content,
		repo:       repo,
		hub:        hub,
		invalidate: invalidate,
		log:        zap.L().Named("theme"),
	}
}

func (s *themeService) Get(ctx context.Context) (*models.Theme, error) {
	view, err := s.content.Get(ctx, models.SectionTheme)
	if err != nil {
		return nil, err
	}
	theme, ok := view.Data.(*models.Theme)
	if !ok {
		return nil, fmt.Errorf("theme section has unexpected type %T", view.Data)
	}
	return theme, nil
}

func (s *themeService) Update(ctx context.Context, data json.RawMessage, userID string) (*models.Theme, error) {
	if len(data) == 0 || !json.Valid(data) {
		return nil, fmt.Errorf("%w: theme must be a JSON object", pkg.ErrBadRequest)
	}

	decoded, err := models.DecodeSection(models.SectionTheme, data)
	if err != nil {
		return nil, validationError(err)
	}
	theme := decoded.(*models.Theme)

	raw, err := json.Marshal(theme)
	if err != nil {
		return nil, fmt.Errorf("failed to encode theme: %w", err)
	}

	var by *string
	if userID != "" {
		by = &userID
	}
	if _, err := s.repo.Upsert(ctx, models.SectionTheme, raw, by); err != nil {
		return nil, err
	}
	s.invalidate(models.SectionTheme)

	s.hub.BroadcastToAll(ws.Event{Op: ws.OpThemeUpdate, Data: ws.ThemeData{
		Variables: theme.CSSVariables(),
		CSS:       theme.CSS(),
	}})

	s.log.Info("theme updated", zap.String("user_id", userID))
	return theme, nil
}

func (s *themeService) CSS(ctx context.Context) (string, error) {
	theme, err := s.Get(ctx)
	if err != nil {
		return "", err
	}
	return theme.CSS(), nil
}

func (s *themeService) Preview(data json.RawMessage) (ws.ThemeData, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	current, err := s.Get(ctx)
	if err != nil {
		return ws.ThemeData{}, err
	}
	base, err := json.Marshal(current)
	if err != nil {
		return ws.ThemeData{}, err
	}

	decoded, err := models.DecodeSection(models.SectionTheme, base, data)
	if err != nil {
		return ws.ThemeData{}, err
	}
	theme := decoded.(*models.Theme)
	return ws.ThemeData{Variables: theme.CSSVariables(), CSS: theme.CSS()}, nil
}
