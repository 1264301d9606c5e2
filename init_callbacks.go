package main

import (
	"github.com/pillarworks/storefront/services"
	"github.com/pillarworks/storefront/ws"
)

// registerHubCallbacks connects hub events that need the service layer. The
// hub lives in ws and must not import services, so main does the wiring.
func registerHubCallbacks(hub *ws.Hub, theme services.ThemeService) {
	hub.OnThemePreview(theme.Preview)
}
