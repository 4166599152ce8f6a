// run.go — Run Descriptor and the enumerations that parameterize it (§3).
package types

import "time"

// TestMode enumerates the supported run modes.
type TestMode string

const (
	ModeSingle   TestMode = "single"
	ModeMulti    TestMode = "multi"
	ModeAll      TestMode = "all"
	ModeMonkey   TestMode = "monkey"
	ModeGuest    TestMode = "guest"
	ModeBehavior TestMode = "behavior"
)

// BrowserType enumerates the supported browser engines. The concrete
// driver for each is an external collaborator (see internal/browser);
// the engine only ever sees this enum.
type BrowserType string

const (
	BrowserChromium BrowserType = "chromium"
	BrowserFirefox  BrowserType = "firefox"
	BrowserWebKit   BrowserType = "webkit"
)

// Tier enumerates user subscription tiers, which gate the AI Budget.
type Tier string

const (
	TierGuest   Tier = "guest"
	TierStarter Tier = "starter"
	TierIndie   Tier = "indie"
	TierPro     Tier = "pro"
	TierAgency  Tier = "agency"
)

// Viewport is a device/viewport pairing for the browser session.
type Viewport struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Device string `json:"device,omitempty"`
	Mobile bool   `json:"mobile"`
}

// RunDescriptor is the immutable input to one run of the Sequencer.
// It is produced and validated entirely by the out-of-scope HTTP API
// collaborator; the engine never mutates it.
type RunDescriptor struct {
	RunID         RunID       `json:"run_id"`
	ParentRunID   ParentRunID `json:"parent_run_id"`
	TargetURLs    []string    `json:"target_urls"`
	Mode          TestMode    `json:"mode"`
	Browser       BrowserType `json:"browser"`
	Viewport      Viewport    `json:"viewport"`
	Tier          Tier        `json:"tier"`
	Instructions  string      `json:"instructions,omitempty"`
	ProjectID     string      `json:"project_id,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// FirstURL returns the first target URL, or "" if none were supplied.
func (r RunDescriptor) FirstURL() string {
	if len(r.TargetURLs) == 0 {
		return ""
	}
	return r.TargetURLs[0]
}
