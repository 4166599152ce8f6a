// driver.go — Browser Driver interface (§6). The engine never talks to
// a concrete headless-browser controller directly; wiring an actual
// CDP/WebDriver adapter is explicitly out of scope (§1 Non-goals). This
// interface is the seam every phase (Preflight, Executor, IRL) programs
// against, and FakeSession (fake.go) is the in-memory double used by
// tests and the CLI demo.
package browser

import (
	"context"
	"time"
)

// ElementBounds is a locator's bounding box plus basic state (§6
// "locator visibility/enabled/text/boundingBox").
type ElementBounds struct {
	X, Y, Width, Height float64
	Visible             bool
	Enabled             bool
	Text                string
}

// Session is one open browser session (§6 "open/close session"). All
// operations are scoped to whichever page is currently active in the
// session.
type Session interface {
	// Navigate loads url, waiting up to timeout for navigation to settle.
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	// Click performs a click on selector. force bypasses actionability
	// checks (§4.8 "click (soft, then force)").
	Click(ctx context.Context, selector string, force bool) error
	// Type enters value into selector, replacing existing content.
	Type(ctx context.Context, selector, value string) error
	Scroll(ctx context.Context, dx, dy float64) error
	Wait(ctx context.Context, d time.Duration) error
	// Assert evaluates predicate against selector, returning whether it held.
	Assert(ctx context.Context, selector, predicate string) (bool, error)
	// PressKey sends a key event (e.g. "Escape") to the active page.
	PressKey(ctx context.Context, key string) error
	// ClickAt clicks a fixed viewport coordinate (§4.10 "backdrop click at (10,10)").
	ClickAt(ctx context.Context, x, y float64) error

	CurrentURL(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	DOMSnapshot(ctx context.Context) (string, error)
	Evaluate(ctx context.Context, expr string) (string, error)
	Reload(ctx context.Context) error
	WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error

	// LocatorState reports the current visibility/enabled/text/bounds of
	// selector, or ok=false if selector matches no element.
	LocatorState(ctx context.Context, selector string) (ElementBounds, bool, error)
	// InteractiveBounds returns bounds for every currently interactive
	// element on the page (§4.12 captureElementBounds).
	InteractiveBounds(ctx context.Context) (map[string]ElementBounds, error)

	Close(ctx context.Context) error
}

// BrowserType matches types.BrowserType; kept as a plain string here so
// this package has no dependency on internal/types.
type BrowserType string

// Manager owns at most one long-lived process per browser-type (§5
// "Browser Manager owns at most one long-lived process per
// browser-type; sessions are per-run, closed on run exit").
type Manager interface {
	OpenSession(ctx context.Context, browserType BrowserType, viewportWidth, viewportHeight int) (Session, error)
}
