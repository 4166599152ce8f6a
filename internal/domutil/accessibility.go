package domutil

// AccessibilityFlag names one accessibility concern about an element
// (§4.6 step c: "flagging missing-label interactive elements and
// hidden elements").
type AccessibilityFlag struct {
	Selector string
	Reason   string
}

const (
	reasonMissingLabel = "missing accessible label"
	reasonHidden       = "hidden from assistive technology"
)

// hasAccessibleLabel reports whether e carries enough of an accessible
// name for a screen reader (an aria-label or visible text; a placeholder
// is not considered).
func hasAccessibleLabel(e Element) bool {
	if e.AriaLabel != "" {
		return true
	}
	if e.Text != "" {
		return true
	}
	return false
}

// AccessibilitySummary flags missing-label and hidden elements, capped
// at maxFlags (§4.6 "cap 40"). Missing-label takes priority over hidden
// so the most actionable issues survive truncation first.
func AccessibilitySummary(elements []Element, maxFlags int) []AccessibilityFlag {
	var missingLabel, hidden []AccessibilityFlag
	for _, e := range elements {
		if !hasAccessibleLabel(e) {
			missingLabel = append(missingLabel, AccessibilityFlag{Selector: e.Selector, Reason: reasonMissingLabel})
		}
		if e.Hidden {
			hidden = append(hidden, AccessibilityFlag{Selector: e.Selector, Reason: reasonHidden})
		}
	}
	flags := append(missingLabel, hidden...)
	if len(flags) > maxFlags {
		flags = flags[:maxFlags]
	}
	return flags
}
