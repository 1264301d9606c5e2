package models

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionHas(t *testing.T) {
	editor := RoleEditor.DefaultPermissions()
	assert.True(t, editor.Has(PermManageContent))
	assert.True(t, editor.Has(PermManageFAQs))
	assert.False(t, editor.Has(PermManageOrders))
	assert.False(t, editor.Has(PermManageContent|PermManageOrders), "every requested bit must be held")

	assert.True(t, PermAdmin.Has(PermManageUsers))
	assert.True(t, RoleAdmin.DefaultPermissions().Has(PermAll))
	assert.Zero(t, UserRole("guest").DefaultPermissions())

	u := &User{Role: RoleEditor, Permissions: PermManageOrders}
	assert.True(t, u.EffectivePermissions().Has(PermManageOrders|PermManageCatalog))
}

func TestSectionKeys(t *testing.T) {
	key, err := ParseSectionKey(" home ")
	require.NoError(t, err)
	assert.Equal(t, SectionHome, key)

	_, err = ParseSectionKey("pricing")
	assert.Error(t, err)

	assert.True(t, SectionTheme.IsPublic())
	assert.False(t, SectionSystem.IsPublic())

	assert.Equal(t, PermManageSettings, SectionWebsite.Permission())
	assert.Equal(t, PermManageSettings, SectionSystem.Permission())
	assert.Equal(t, PermManageTheme, SectionTheme.Permission())
	assert.Equal(t, PermManageContent, SectionFooter.Permission())
}

func TestDecodeSectionLayers(t *testing.T) {
	v, err := DecodeSection(SectionHeader, []byte(`{"sticky":false}`), []byte(`{"cta":null}`))
	require.NoError(t, err)

	header := v.(*Header)
	assert.False(t, header.Sticky)
	assert.Nil(t, header.CTA)
	assert.Equal(t, DefaultHeader().NavLinks, header.NavLinks)

	_, err = DecodeSection(SectionHeader, []byte(`{"nav_links":[{"label":"Docs","href":"javascript:void(0)"}]}`))
	assert.ErrorContains(t, err, "nav link")

	_, err = DecodeSection("pricing")
	assert.Error(t, err)
}

func TestWebsiteHomeAlwaysVisible(t *testing.T) {
	_, err := DecodeSection(SectionWebsite, []byte(`{"pages":{"home":{"visible":false}}}`))
	assert.ErrorContains(t, err, "home page cannot be hidden")

	v, err := DecodeSection(SectionWebsite, []byte(`{"pages":{"about":{"visible":false}}}`))
	require.NoError(t, err)
	site := v.(*Website)
	assert.True(t, site.PageVisible(PageHome))
	assert.False(t, site.PageVisible("about"))
	assert.True(t, site.PageVisible("careers"), "unknown pages are visible")
}

func TestValidateHref(t *testing.T) {
	for _, ok := range []string{"/", "/services", "#top", "https://example.com", "mailto:hi@example.com", "tel:+4420"} {
		assert.NoError(t, validateHref(ok), ok)
	}
	for _, bad := range []string{"", "javascript:alert(1)", "data:text/html,x", "ftp://example.com"} {
		assert.Error(t, validateHref(bad), bad)
	}
}

func TestThemeValidate(t *testing.T) {
	theme := DefaultTheme()
	theme.Colors.Primary = "#ABCDEF"
	theme.Fonts.Heading = "  Playfair Display, serif "
	require.NoError(t, theme.Validate())
	assert.Equal(t, "#abcdef", theme.Colors.Primary)
	assert.Equal(t, "Playfair Display, serif", theme.Fonts.Heading)

	cases := map[string]func(*Theme){
		"named colour":   func(t *Theme) { t.Colors.Accent = "orange" },
		"css injection":  func(t *Theme) { t.Fonts.Body = "Inter; } body { display:none" },
		"quoted font":    func(t *Theme) { t.Fonts.Body = `"Inter"` },
		"unitless":       func(t *Theme) { t.Radius = "4" },
		"percent radius": func(t *Theme) { t.Radius = "50%" },
		"empty font":     func(t *Theme) { t.Fonts.Heading = " " },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			theme := DefaultTheme()
			mutate(theme)
			assert.Error(t, theme.Validate())
		})
	}
}

func TestThemeCSS(t *testing.T) {
	theme := &Theme{
		Colors: ThemeColors{Primary: "#111", Secondary: "#222", Accent: "#333", Background: "#444",
			Foreground: "#555", Muted: "#666", Border: "#777"},
		Fonts:  ThemeFonts{Heading: "Lora", Body: "Inter"},
		Radius: "0",
	}
	want := `:root {
  --color-accent: #333;
  --color-background: #444;
  --color-border: #777;
  --color-foreground: #555;
  --color-muted: #666;
  --color-primary: #111;
  --color-secondary: #222;
  --font-body: Inter;
  --font-heading: Lora;
  --radius: 0;
}
`
	if diff := cmp.Diff(want, theme.CSS()); diff != "" {
		t.Errorf("CSS() mismatch (-want +got):\n%s", diff)
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Business Strategy":     "business-strategy",
		"Finance & Compliance":  "finance-and-compliance",
		"  --Hello,  World!-- ": "hello-world",
		"Café Society":          "cafe-society",
		"Straße Ærø":            "strasse-aero",
		"日本 Guide":              "guide",
		"2024 Review":           "2024-review",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), in)
	}
	assert.True(t, IsSlug("a-b-1"))
	assert.False(t, IsSlug("a--b"))
	assert.False(t, IsSlug("-a"))
}

func TestBulkOrderRequestDedupes(t *testing.T) {
	req := &BulkOrderRequest{IDs: []string{"a", " a ", "", "b"}}
	require.NoError(t, req.Validate())
	assert.Equal(t, []string{"a", "b"}, req.IDs)

	assert.Error(t, (&BulkOrderRequest{IDs: []string{" "}}).Validate())
}

func TestOrderFilterNormalize(t *testing.T) {
	f := &OrderFilter{Page: -2, Limit: 1000, Search: "  ada "}
	require.NoError(t, f.Normalize())
	assert.Equal(t, OrderFilter{Page: 1, Limit: MaxOrderPageSize, Search: "ada"}, *f)
	assert.Equal(t, 0, f.Offset())

	assert.Error(t, (&OrderFilter{Status: "shipped"}).Normalize())
}
