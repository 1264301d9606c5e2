package models

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ThemeColors are the palette tokens of the storefront.
type ThemeColors struct {
	Primary    string `json:"primary"`
	Secondary  string `json:"secondary"`
	Accent     string `json:"accent"`
	Background string `json:"background"`
	Foreground string `json:"foreground"`
	Muted      string `json:"muted"`
	Border     string `json:"border"`
}

type ThemeFonts struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// Theme is the set of design tokens the editor exposes. Every token maps to
// one CSS custom property.
type Theme struct {
	Colors ThemeColors `json:"colors"`
	Fonts  ThemeFonts  `json:"fonts"`
	Radius string      `json:"radius"`
}

func DefaultTheme() *Theme {
	return &Theme{
		Colors: ThemeColors{
			Primary:    "#1e3a8a",
			Secondary:  "#0f766e",
			Accent:     "#f59e0b",
			Background: "#ffffff",
			Foreground: "#0f172a",
			Muted:      "#64748b",
			Border:     "#e2e8f0",
		},
		Fonts:  ThemeFonts{Heading: "Inter", Body: "Inter"},
		Radius: "0.5rem",
	}
}

var (
	hexColorRe  = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
	cssLengthRe = regexp.MustCompile(`^(?:0|\d+(?:\.\d+)?(?:px|rem|em))$`)
	// Font family names end up inside a CSS declaration, so quotes,
	// semicolons and braces are rejected.
	fontNameRe = regexp.MustCompile(`^[A-Za-z0-9 ,\-]+$`)
)

// IsHexColor reports whether s is #RGB or #RRGGBB.
func IsHexColor(s string) bool {
	return hexColorRe.MatchString(s)
}

// Validate checks every token and lowercases colours.
func (t *Theme) Validate() error {
	for _, c := range t.colorTokens() {
		if !IsHexColor(*c.value) {
			return fmt.Errorf("colors.%s must be #RGB or #RRGGBB", c.name)
		}
		*c.value = strings.ToLower(*c.value)
	}

	t.Fonts.Heading = strings.TrimSpace(t.Fonts.Heading)
	t.Fonts.Body = strings.TrimSpace(t.Fonts.Body)
	if t.Fonts.Heading == "" || t.Fonts.Body == "" {
		return fmt.Errorf("fonts.heading and fonts.body are required")
	}
	if !fontNameRe.MatchString(t.Fonts.Heading) || !fontNameRe.MatchString(t.Fonts.Body) {
		return fmt.Errorf("font names may only contain letters, digits, spaces, commas and hyphens")
	}

	t.Radius = strings.TrimSpace(t.Radius)
	if !cssLengthRe.MatchString(t.Radius) {
		return fmt.Errorf("radius must be 0 or a px/rem/em length")
	}
	return nil
}

type colorToken struct {
	name  string
	value *string
}

func (t *Theme) colorTokens() []colorToken {
	return []colorToken{
		{"primary", &t.Colors.Primary},
		{"secondary", &t.Colors.Secondary},
		{"accent", &t.Colors.Accent},
		{"background", &t.Colors.Background},
		{"foreground", &t.Colors.Foreground},
		{"muted", &t.Colors.Muted},
		{"border", &t.Colors.Border},
	}
}

// CSSVariables maps the tokens to custom properties, e.g. --color-primary.
func (t *Theme) CSSVariables() map[string]string {
	vars := make(map[string]string, 10)
	for _, c := range t.colorTokens() {
		vars["--color-"+c.name] = *c.value
	}
	vars["--font-heading"] = t.Fonts.Heading
	vars["--font-body"] = t.Fonts.Body
	vars["--radius"] = t.Radius
	return vars
}

// CSS renders a :root block with the variables in a stable order.
func (t *Theme) CSS() string {
	vars := t.CSSVariables()
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(":root {\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  %s: %s;\n", name, vars[name])
	}
	b.WriteString("}\n")
	return b.String()
}
