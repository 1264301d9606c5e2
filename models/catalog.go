package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Pillar is a top-level service category.
type Pillar struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	SortOrder   int       `json:"sort_order"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PillarWithServices is the public pillar detail payload.
type PillarWithServices struct {
	Pillar
	Services []Service `json:"services"`
}

type ServiceType string

const (
	ServiceOneOff       ServiceType = "one_off"
	ServiceSubscription ServiceType = "subscription"
)

func (t ServiceType) Valid() bool {
	return t == ServiceOneOff || t == ServiceSubscription
}

// Service is a sellable offering under a pillar. Prices are in minor units.
type Service struct {
	ID          int64       `json:"id"`
	PillarID    int64       `json:"pillar_id"`
	PillarName  string      `json:"pillar_name"`
	PillarSlug  string      `json:"pillar_slug"`
	Title       string      `json:"title"`
	Slug        string      `json:"slug"`
	Summary     string      `json:"summary"`
	Description string      `json:"description"`
	Type        ServiceType `json:"type"`
	PriceFrom   int64       `json:"price_from"`
	PriceLabel  string      `json:"price_label"`
	Features    []string    `json:"features"`
	SortOrder   int         `json:"sort_order"`
	IsActive    bool        `json:"is_active"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Purchasable reports whether the service can go into the cart. Subscriptions
// are sold through a conversation, never through checkout.
func (s *Service) Purchasable() bool {
	return s.IsActive && s.Type == ServiceOneOff
}

// ─── Requests ───

type CreatePillarRequest struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	SortOrder   int    `json:"sort_order"`
	IsActive    *bool  `json:"is_active"`
}

func (r *CreatePillarRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" || utf8.RuneCountInString(r.Name) > 100 {
		return fmt.Errorf("name must be between 1 and 100 characters")
	}
	slug, err := resolveSlug(r.Slug, r.Name)
	if err != nil {
		return err
	}
	r.Slug = slug
	return nil
}

type UpdatePillarRequest struct {
	Name        *string `json:"name"`
	Slug        *string `json:"slug"`
	Description *string `json:"description"`
	Icon        *string `json:"icon"`
	SortOrder   *int    `json:"sort_order"`
	IsActive    *bool   `json:"is_active"`
}

func (r *UpdatePillarRequest) Validate() error {
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		if name == "" || utf8.RuneCountInString(name) > 100 {
			return fmt.Errorf("name must be between 1 and 100 characters")
		}
		r.Name = &name
	}
	if r.Slug != nil {
		if !IsSlug(*r.Slug) {
			return fmt.Errorf("slug must be lowercase letters, digits and hyphens")
		}
	}
	return nil
}

// Apply copies the set fields onto p.
func (r *UpdatePillarRequest) Apply(p *Pillar) {
	if r.Name != nil {
		p.Name = *r.Name
	}
	if r.Slug != nil {
		p.Slug = *r.Slug
	}
	if r.Description != nil {
		p.Description = *r.Description
	}
	if r.Icon != nil {
		p.Icon = *r.Icon
	}
	if r.SortOrder != nil {
		p.SortOrder = *r.SortOrder
	}
	if r.IsActive != nil {
		p.IsActive = *r.IsActive
	}
}

type CreateServiceRequest struct {
	PillarID    int64       `json:"pillar_id"`
	Title       string      `json:"title"`
	Slug        string      `json:"slug"`
	Summary     string      `json:"summary"`
	Description string      `json:"description"`
	Type        ServiceType `json:"type"`
	PriceFrom   int64       `json:"price_from"`
	PriceLabel  string      `json:"price_label"`
	Features    []string    `json:"features"`
	SortOrder   int         `json:"sort_order"`
	IsActive    *bool       `json:"is_active"`
}

func (r *CreateServiceRequest) Validate() error {
	if r.PillarID <= 0 {
		return fmt.Errorf("pillar_id is required")
	}
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" || utf8.RuneCountInString(r.Title) > 150 {
		return fmt.Errorf("title must be between 1 and 150 characters")
	}
	slug, err := resolveSlug(r.Slug, r.Title)
	if err != nil {
		return err
	}
	r.Slug = slug
	if r.Type == "" {
		r.Type = ServiceOneOff
	}
	if !r.Type.Valid() {
		return fmt.Errorf("type must be one_off or subscription")
	}
	if r.PriceFrom < 0 {
		return fmt.Errorf("price_from cannot be negative")
	}
	r.Features = cleanFeatures(r.Features)
	return nil
}

type UpdateServiceRequest struct {
	PillarID    *int64       `json:"pillar_id"`
	Title       *string      `json:"title"`
	Slug        *string      `json:"slug"`
	Summary     *string      `json:"summary"`
	Description *string      `json:"description"`
	Type        *ServiceType `json:"type"`
	PriceFrom   *int64       `json:"price_from"`
	PriceLabel  *string      `json:"price_label"`
	Features    []string     `json:"features"`
	SortOrder   *int         `json:"sort_order"`
	IsActive    *bool        `json:"is_active"`
}

func (r *UpdateServiceRequest) Validate() error {
	if r.PillarID != nil && *r.PillarID <= 0 {
		return fmt.Errorf("pillar_id is invalid")
	}
	if r.Title != nil {
		title := strings.TrimSpace(*r.Title)
		if title == "" || utf8.RuneCountInString(title) > 150 {
			return fmt.Errorf("title must be between 1 and 150 characters")
		}
		r.Title = &title
	}
	if r.Slug != nil && !IsSlug(*r.Slug) {
		return fmt.Errorf("slug must be lowercase letters, digits and hyphens")
	}
	if r.Type != nil && !r.Type.Valid() {
		return fmt.Errorf("type must be one_off or subscription")
	}
	if r.PriceFrom != nil && *r.PriceFrom < 0 {
		return fmt.Errorf("price_from cannot be negative")
	}
	if r.Features != nil {
		r.Features = cleanFeatures(r.Features)
	}
	return nil
}

func (r *UpdateServiceRequest) Apply(s *Service) {
	if r.PillarID != nil {
		s.PillarID = *r.PillarID
	}
	if r.Title != nil {
		s.Title = *r.Title
	}
	if r.Slug != nil {
		s.Slug = *r.Slug
	}
	if r.Summary != nil {
		s.Summary = *r.Summary
	}
	if r.Description != nil {
		s.Description = *r.Description
	}
	if r.Type != nil {
		s.Type = *r.Type
	}
	if r.PriceFrom != nil {
		s.PriceFrom = *r.PriceFrom
	}
	if r.PriceLabel != nil {
		s.PriceLabel = *r.PriceLabel
	}
	if r.Features != nil {
		s.Features = r.Features
	}
	if r.SortOrder != nil {
		s.SortOrder = *r.SortOrder
	}
	if r.IsActive != nil {
		s.IsActive = *r.IsActive
	}
}

// ─── Slugs ───

var slugRe = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

func IsSlug(s string) bool {
	return len(s) <= 120 && slugRe.MatchString(s)
}

// latinFold maps accented Latin-1 letters to their ASCII spelling.
var latinFold = strings.NewReplacer(
	"à", "a", "á", "a", "â", "a", "ã", "a", "ä", "a", "å", "a", "æ", "ae",
	"ç", "c", "è", "e", "é", "e", "ê", "e", "ë", "e",
	"ì", "i", "í", "i", "î", "i", "ï", "i", "ð", "d", "ñ", "n",
	"ò", "o", "ó", "o", "ô", "o", "õ", "o", "ö", "o", "ø", "o", "œ", "oe",
	"ù", "u", "ú", "u", "û", "u", "ü", "u", "ý", "y", "ÿ", "y",
	"þ", "th", "ß", "ss",
)

// Slugify lowercases s, folds Latin-1 accents to ASCII and joins the
// remaining alphanumeric runs with hyphens.
func Slugify(s string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range latinFold.Replace(strings.ToLower(s)) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			pendingDash = false
		case r == '&':
			pendingDash = true
			if b.Len() > 0 {
				b.WriteString("-and")
			}
		default:
			pendingDash = true
		}
	}
	out := b.String()
	if len(out) > 120 {
		out = strings.TrimRight(out[:120], "-")
	}
	return out
}

func resolveSlug(slug, fallback string) (string, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		slug = Slugify(fallback)
	}
	if !IsSlug(slug) {
		return "", fmt.Errorf("slug must be lowercase letters, digits and hyphens")
	}
	return slug, nil
}

func cleanFeatures(in []string) []string {
	out := make([]string, 0, len(in))
	for _, f := range in {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
