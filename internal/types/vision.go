// vision.go — Vision Context: the structured per-page artifact the Page
// Analyzer (C6) produces, summarizing interactive elements and
// accessibility issues (§3, GLOSSARY).
package types

import "time"

// InteractiveElement is one candidate interactive DOM node.
type InteractiveElement struct {
	Type      string  `json:"type"` // button, input, link, select, textarea
	Role      string  `json:"role,omitempty"`
	Text      string  `json:"text,omitempty"`
	AriaLabel string  `json:"aria_label,omitempty"`
	Name      string  `json:"name,omitempty"`
	Selector  string  `json:"selector"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	IsHidden  bool    `json:"is_hidden"`
	IsRequired bool   `json:"is_required"`
	Href      string  `json:"href,omitempty"`

	// Set only after a vision-validation pass (§4.6(d)).
	VisionValidated  bool `json:"vision_validated"`
	VisionVisible    bool `json:"vision_visible,omitempty"`
	VisionInteractable bool `json:"vision_interactable,omitempty"`
}

// AccessibilityFlag is one flagged node in the Accessibility Summary.
type AccessibilityFlag struct {
	Selector string `json:"selector"`
	Issue    string `json:"issue"` // "missing accessible label", "hidden from assistive technology"
}

// VisionContextMeta carries counts/timestamp metadata for a Vision Context.
type VisionContextMeta struct {
	ElementCount    int       `json:"element_count"`
	FlaggedCount    int       `json:"flagged_count"`
	Timestamp       time.Time `json:"timestamp"`
	VisionValidated bool      `json:"vision_validated"`
}

// VisionContext is the Page Analyzer's output (§3, §4.6).
type VisionContext struct {
	Elements       []InteractiveElement `json:"elements"`
	Accessibility  []AccessibilityFlag  `json:"accessibility"`
	Meta           VisionContextMeta    `json:"meta"`
	PageState      string               `json:"page_state,omitempty"` // "overlay", "modal", "loaded"
}

// TestabilityNarrative is the What/How/Why/Result diagnosis report (§4.6, §4.13 step 4).
type TestabilityNarrative struct {
	What               string   `json:"what"`
	How                string   `json:"how"`
	Why                string   `json:"why"`
	Result             string   `json:"result"`
	TestableComponents []string `json:"testable_components"`
	NonTestable        []string `json:"non_testable_components"`
	HighRiskAreas      []string `json:"high_risk_areas"`
}

// ErrorAnalysis is the Page Analyzer's root-cause-plus-fixes output (§4.6).
type ErrorAnalysis struct {
	RootCause       string   `json:"root_cause"`
	PrioritizedFixes []string `json:"prioritized_fixes"`
}

// SynthesizedContext is the Page Analyzer's synthesis output (§4.6).
type SynthesizedContext struct {
	Summary         string   `json:"summary"`
	Issues          []string `json:"issues"`
	Recommendations []string `json:"recommendations"`
}

// ParsedInstructions is the Action Generator's parse of natural-language
// test instructions (§4.7).
type ParsedInstructions struct {
	PrimaryGoal      string   `json:"primary_goal"`
	SpecificActions  []string `json:"specific_actions"`
	ElementsToCheck  []string `json:"elements_to_check"`
	ExpectedOutcomes []string `json:"expected_outcomes"`
	Priority         string   `json:"priority"`
	Plan             []string `json:"plan"`
}

// AlternativeSelector is one candidate replacement selector the Action
// Generator proposes for a failed action (§4.7, §4.11).
type AlternativeSelector struct {
	Selector   string  `json:"selector"`
	Strategy   string  `json:"strategy"` // "text", "attribute", "position", "role"
	Confidence float64 `json:"confidence"`
}
