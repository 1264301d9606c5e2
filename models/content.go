package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// SectionKey names one document of the content store.
type SectionKey string

const (
	SectionSiteSettings SectionKey = "site-settings"
	SectionHeader       SectionKey = "header"
	SectionFooter       SectionKey = "footer"
	SectionHome         SectionKey = "home"
	SectionAbout        SectionKey = "about"
	SectionContact      SectionKey = "contact"
	SectionWebsite      SectionKey = "website"
	SectionSystem       SectionKey = "system"
	SectionTheme        SectionKey = "theme"
)

// ContentSection is a stored row of the key-value content store.
type ContentSection struct {
	Key       SectionKey      `json:"key"`
	Data      json.RawMessage `json:"data"`
	UpdatedBy *string         `json:"updated_by"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// sectionDefaults builds a fresh default value for every known section.
var sectionDefaults = map[SectionKey]func() any{
	SectionSiteSettings: func() any { return DefaultSiteSettings() },
	SectionHeader:       func() any { return DefaultHeader() },
	SectionFooter:       func() any { return DefaultFooter() },
	SectionHome:         func() any { return DefaultHomePage() },
	SectionAbout:        func() any { return DefaultAboutPage() },
	SectionContact:      func() any { return DefaultContactPage() },
	SectionWebsite:      func() any { return DefaultWebsite() },
	SectionSystem:       func() any { return DefaultSystemSettings() },
	SectionTheme:        func() any { return DefaultTheme() },
}

// PublicSections are readable without authentication. The system section
// only brands the dashboard, so it stays behind auth.
var PublicSections = []SectionKey{
	SectionSiteSettings, SectionHeader, SectionFooter, SectionHome,
	SectionAbout, SectionContact, SectionWebsite, SectionTheme,
}

// ParseSectionKey rejects keys that have no typed shape.
func ParseSectionKey(raw string) (SectionKey, error) {
	key := SectionKey(strings.TrimSpace(raw))
	if _, ok := sectionDefaults[key]; !ok {
		return "", fmt.Errorf("unknown content section %q", raw)
	}
	return key, nil
}

// IsPublic reports whether a section may be served to anonymous visitors.
func (k SectionKey) IsPublic() bool {
	for _, p := range PublicSections {
		if p == k {
			return true
		}
	}
	return false
}

// Permission is the capability required to edit the section.
func (k SectionKey) Permission() Permission {
	switch k {
	case SectionWebsite, SectionSystem:
		return PermManageSettings
	case SectionTheme:
		return PermManageTheme
	}
	return PermManageContent
}

// DecodeSection overlays the given JSON documents, in order, on the section
// defaults and validates the result. Fields absent from a layer keep the value
// of the layer below, so a stored document written by an older release still
// gets defaults for fields added since.
func DecodeSection(key SectionKey, layers ...[]byte) (any, error) {
	newDefault, ok := sectionDefaults[key]
	if !ok {
		return nil, fmt.Errorf("unknown content section %q", key)
	}
	v := newDefault()
	for _, layer := range layers {
		if len(bytes.TrimSpace(layer)) == 0 {
			continue
		}
		if err := json.Unmarshal(layer, v); err != nil {
			return nil, fmt.Errorf("invalid %s document: %w", key, err)
		}
	}
	if val, ok := v.(interface{ Validate() error }); ok {
		if err := val.Validate(); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// ─── Section shapes ───

type Link struct {
	Label string `json:"label" yaml:"label"`
	Href  string `json:"href" yaml:"href"`
}

type ContentBlock struct {
	Title string `json:"title" yaml:"title"`
	Body  string `json:"body" yaml:"body"`
	Icon  string `json:"icon,omitempty" yaml:"icon"`
}

type SiteSettings struct {
	SiteName     string            `json:"site_name"`
	Tagline      string            `json:"tagline"`
	ContactEmail string            `json:"contact_email"`
	ContactPhone string            `json:"contact_phone"`
	Address      string            `json:"address"`
	LogoURL      string            `json:"logo_url"`
	FaviconURL   string            `json:"favicon_url"`
	SocialLinks  map[string]string `json:"social_links"`
}

func DefaultSiteSettings() *SiteSettings {
	return &SiteSettings{
		SiteName:    "Pillarworks",
		Tagline:     "Consultancy built on solid pillars",
		SocialLinks: map[string]string{},
	}
}

func (s *SiteSettings) Validate() error {
	s.SiteName = strings.TrimSpace(s.SiteName)
	if s.SiteName == "" {
		return fmt.Errorf("site_name is required")
	}
	if s.ContactEmail != "" {
		email, err := normalizeEmail(s.ContactEmail)
		if err != nil {
			return fmt.Errorf("contact_email is invalid")
		}
		s.ContactEmail = email
	}
	for name, href := range s.SocialLinks {
		if err := validateHref(href); err != nil {
			return fmt.Errorf("social link %q: %w", name, err)
		}
	}
	return nil
}

type Header struct {
	NavLinks []Link `json:"nav_links"`
	CTA      *Link  `json:"cta"`
	Sticky   bool   `json:"sticky"`
}

func DefaultHeader() *Header {
	return &Header{
		NavLinks: []Link{
			{Label: "Home", Href: "/"},
			{Label: "Services", Href: "/services"},
			{Label: "About", Href: "/about"},
			{Label: "Contact", Href: "/contact"},
		},
		CTA:    &Link{Label: "Get in touch", Href: "/contact"},
		Sticky: true,
	}
}

func (h *Header) Validate() error {
	for _, l := range h.NavLinks {
		if err := l.validate(); err != nil {
			return fmt.Errorf("nav link: %w", err)
		}
	}
	if h.CTA != nil {
		if err := h.CTA.validate(); err != nil {
			return fmt.Errorf("cta: %w", err)
		}
	}
	return nil
}

type FooterColumn struct {
	Title string `json:"title"`
	Links []Link `json:"links"`
}

type Footer struct {
	About     string         `json:"about"`
	Columns   []FooterColumn `json:"columns"`
	Copyright string         `json:"copyright"`
}

func DefaultFooter() *Footer {
	return &Footer{
		Columns: []FooterColumn{
			{Title: "Company", Links: []Link{{Label: "About", Href: "/about"}, {Label: "Contact", Href: "/contact"}}},
		},
		Copyright: "© Pillarworks",
	}
}

func (f *Footer) Validate() error {
	for _, c := range f.Columns {
		for _, l := range c.Links {
			if err := l.validate(); err != nil {
				return fmt.Errorf("footer column %q: %w", c.Title, err)
			}
		}
	}
	return nil
}

type Hero struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	ImageURL string `json:"image_url"`
	CTA      *Link  `json:"cta"`
}

type HomePage struct {
	Hero           Hero           `json:"hero"`
	ShowPillars    bool           `json:"show_pillars"`
	Highlights     []ContentBlock `json:"highlights"`
	Testimonials   []Testimonial  `json:"testimonials"`
	ClosingMessage string         `json:"closing_message"`
}

type Testimonial struct {
	Quote   string `json:"quote"`
	Author  string `json:"author"`
	Company string `json:"company"`
}

func DefaultHomePage() *HomePage {
	return &HomePage{
		Hero: Hero{
			Title:    "Grow with confidence",
			Subtitle: "Practical consultancy across every pillar of your business.",
			CTA:      &Link{Label: "Explore services", Href: "/services"},
		},
		ShowPillars: true,
	}
}

func (h *HomePage) Validate() error {
	if strings.TrimSpace(h.Hero.Title) == "" {
		return fmt.Errorf("hero title is required")
	}
	if h.Hero.CTA != nil {
		if err := h.Hero.CTA.validate(); err != nil {
			return fmt.Errorf("hero cta: %w", err)
		}
	}
	return nil
}

type TeamMember struct {
	Name     string `json:"name"`
	Role     string `json:"role"`
	Bio      string `json:"bio"`
	ImageURL string `json:"image_url"`
}

type AboutPage struct {
	Title  string         `json:"title"`
	Intro  string         `json:"intro"`
	Body   string         `json:"body"`
	Values []ContentBlock `json:"values"`
	Team   []TeamMember   `json:"team"`
}

func DefaultAboutPage() *AboutPage {
	return &AboutPage{Title: "About us"}
}

type ContactPage struct {
	Title       string `json:"title"`
	Intro       string `json:"intro"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	MapEmbedURL string `json:"map_embed_url"`
	FormEnabled bool   `json:"form_enabled"`
}

func DefaultContactPage() *ContactPage {
	return &ContactPage{Title: "Contact us", FormEnabled: true}
}

func (c *ContactPage) Validate() error {
	if c.Email != "" {
		email, err := normalizeEmail(c.Email)
		if err != nil {
			return fmt.Errorf("email is invalid")
		}
		c.Email = email
	}
	return nil
}

// ─── Website visibility / maintenance ───

// PageHome is the one page whose visibility is fixed.
const PageHome = "home"

type PageVisibility struct {
	Visible bool `json:"visible"`
}

type Maintenance struct {
	Enabled bool   `json:"enabled"`
	Message string `json:"message"`
}

type Website struct {
	Pages       map[string]PageVisibility `json:"pages"`
	Maintenance Maintenance               `json:"maintenance"`
}

func DefaultWebsite() *Website {
	return &Website{
		Pages: map[string]PageVisibility{
			PageHome:   {Visible: true},
			"about":    {Visible: true},
			"contact":  {Visible: true},
			"services": {Visible: true},
		},
		Maintenance: Maintenance{Message: "We'll be back shortly."},
	}
}

// Validate enforces that the home page is always visible.
func (w *Website) Validate() error {
	if w.Pages == nil {
		w.Pages = map[string]PageVisibility{}
	}
	if home, ok := w.Pages[PageHome]; ok && !home.Visible {
		return fmt.Errorf("the home page cannot be hidden")
	}
	w.Pages[PageHome] = PageVisibility{Visible: true}
	return nil
}

// PageVisible reports whether a named page is shown; unknown pages are.
func (w *Website) PageVisible(page string) bool {
	v, ok := w.Pages[page]
	return !ok || v.Visible
}

// ─── Dashboard branding ───

type SystemSettings struct {
	DashboardName string `json:"dashboard_name"`
	LogoURL       string `json:"logo_url"`
	AccentColor   string `json:"accent_color"`
}

func DefaultSystemSettings() *SystemSettings {
	return &SystemSettings{DashboardName: "Pillarworks Admin", AccentColor: "#2563eb"}
}

func (s *SystemSettings) Validate() error {
	s.DashboardName = strings.TrimSpace(s.DashboardName)
	if s.DashboardName == "" {
		return fmt.Errorf("dashboard_name is required")
	}
	if s.AccentColor != "" && !IsHexColor(s.AccentColor) {
		return fmt.Errorf("accent_color must be a hex colour")
	}
	return nil
}

func (l Link) validate() error {
	if strings.TrimSpace(l.Label) == "" {
		return fmt.Errorf("label is required")
	}
	return validateHref(l.Href)
}

// validateHref accepts site-relative paths, anchors, mailto/tel and http(s).
func validateHref(href string) error {
	href = strings.TrimSpace(href)
	if href == "" {
		return fmt.Errorf("href is required")
	}
	if strings.HasPrefix(href, "/") || strings.HasPrefix(href, "#") {
		return nil
	}
	u, err := url.Parse(href)
	if err != nil {
		return fmt.Errorf("href %q is invalid", href)
	}
	switch u.Scheme {
	case "http", "https", "mailto", "tel":
		return nil
	}
	return fmt.Errorf("href %q must be a relative path or http(s)/mailto/tel URL", href)
}
