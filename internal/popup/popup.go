// popup.go — Non-Cookie Popup Handler (C9, §4.9). Scans a fixed
// indicator-selector list, classifies each visible non-cookie overlay,
// and computes blocking status; never dismisses anything itself (the
// Preflight Orchestrator owns dismissal policy). Works from
// browser.Session locator state only; it does not parse the DOM.
package popup

import (
	"context"
	"strings"

	"github.com/brennhill/runlattice/internal/browser"
	"github.com/brennhill/runlattice/internal/registry"
	"github.com/brennhill/runlattice/internal/runerr"
	"github.com/brennhill/runlattice/internal/types"
)

// indicatorSelectors is the fixed scan list (§4.9: "newsletter,
// subscribe, chat, intercom-like, promo, dialog, modal, overlay").
var indicatorSelectors = []string{
	".newsletter-modal", "[data-newsletter]",
	".subscribe-popup", "#subscribe-modal",
	".chat-widget", "#chat-launcher",
	"iframe[name^=\"intercom\"]", ".intercom-launcher-frame",
	".promo-overlay", "[data-promo-modal]",
	"[role=dialog]", ".modal", "[aria-modal=true]",
	".overlay",
}

// blockingZIndexThreshold and blockingCoverageFraction are the two
// numeric BLOCKING_UI triggers (§4.9).
const (
	blockingZIndexThreshold  = 1000
	blockingCoverageFraction = 0.15
)

var cookieKeywords = []string{"cookie", "consent", "gdpr"}

func isCookieRelated(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range cookieKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// classify assigns a PopupKind from the selector/text content (§4.9
// "classifies type ∈ {newsletter, chat, promo, unknown}").
func classify(selector, text string) types.PopupKind {
	lower := strings.ToLower(selector + " " + text)
	switch {
	case strings.Contains(lower, "newsletter") || strings.Contains(lower, "subscribe"):
		return types.PopupNewsletter
	case strings.Contains(lower, "chat") || strings.Contains(lower, "intercom"):
		return types.PopupChat
	case strings.Contains(lower, "promo"):
		return types.PopupPromo
	default:
		return types.PopupUnknown
	}
}

// isBlocking computes BLOCKING_UI per §4.9's three-way OR: z-index >=
// 1000, viewport coverage > 15%, or a dialog/modal role marker.
func isBlocking(selector string, zIndex int, coverageFraction float64) bool {
	if zIndex >= blockingZIndexThreshold {
		return true
	}
	if coverageFraction > blockingCoverageFraction {
		return true
	}
	lower := strings.ToLower(selector)
	return strings.Contains(lower, "role=dialog") || strings.Contains(lower, "aria-modal") || strings.Contains(lower, ".modal")
}

// Handler is the Non-Cookie Popup Handler.
type Handler struct {
	reg            *registry.Registry
	viewportWidth  float64
	viewportHeight float64
}

// New constructs a Handler. viewportWidth/Height are used for coverage
// computation (§4.9 "> 15% of viewport").
func New(reg *registry.Registry, viewportWidth, viewportHeight float64) *Handler {
	return &Handler{reg: reg, viewportWidth: viewportWidth, viewportHeight: viewportHeight}
}

// Scan runs one pass over the indicator selectors and returns every
// visible, non-cookie-related detection (§4.9). Must only be called
// after cookie status is COMPLETED.
func (h *Handler) Scan(ctx context.Context, runID string, session browser.Session) ([]types.PopupDetection, error) {
	if h.reg.CookieStatus(runID) != types.StatusCompleted {
		return nil, runerr.Invariant(runID, "popup_scan", "popup scan attempted before cookie status reached COMPLETED")
	}

	var detections []types.PopupDetection
	for _, selector := range indicatorSelectors {
		bounds, ok, err := session.LocatorState(ctx, selector)
		if err != nil || !ok || !bounds.Visible {
			continue
		}
		if isCookieRelated(bounds.Text) {
			continue
		}

		coverage := 0.0
		if h.viewportWidth > 0 && h.viewportHeight > 0 {
			coverage = (bounds.Width * bounds.Height) / (h.viewportWidth * h.viewportHeight)
		}

		detections = append(detections, types.PopupDetection{
			Kind:     classify(selector, bounds.Text),
			Selector: selector,
			Blocking: isBlocking(selector, 0, coverage),
		})
	}
	return detections, nil
}
