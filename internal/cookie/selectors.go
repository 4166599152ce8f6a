package cookie

import "strings"

// Platform is a detected site-builder, used to prioritize
// platform-specific consent-banner selectors (§4.8).
type Platform string

const (
	PlatformWordPress Platform = "wordpress"
	PlatformShopify   Platform = "shopify"
	PlatformWebflow   Platform = "webflow"
	PlatformCustom    Platform = "custom"
)

// Region is a detected regulatory region, used to prioritize regional
// consent-management-platform selectors (§4.8).
type Region string

const (
	RegionEU    Region = "eu"
	RegionUK    Region = "uk"
	RegionUS    Region = "us"
	RegionOther Region = "other"
)

// DetectPlatform scans HTML for platform markers (§4.8 "scanning HTML
// markers and meta generator").
func DetectPlatform(html string) Platform {
	lower := strings.ToLower(html)
	switch {
	case strings.Contains(lower, "wp-content") || strings.Contains(lower, `name="generator" content="wordpress`):
		return PlatformWordPress
	case strings.Contains(lower, "cdn.shopify.com") || strings.Contains(lower, "shopify"):
		return PlatformShopify
	case strings.Contains(lower, "webflow.com") || strings.Contains(lower, "data-wf-site"):
		return PlatformWebflow
	default:
		return PlatformCustom
	}
}

// euTLDs and ukTLDs are coarse region signals from the page's host TLD.
var euTLDs = map[string]bool{
	"de": true, "fr": true, "it": true, "es": true, "nl": true, "eu": true,
	"ie": true, "se": true, "pl": true, "be": true, "at": true, "dk": true,
}

// DetectRegion infers a region from TLD and html-lang/og:locale hints
// (§4.8 "region (EU/UK/US/other from TLD and <html lang>/og:locale)").
func DetectRegion(tld string, htmlLangOrLocale string) Region {
	tld = strings.ToLower(tld)
	locale := strings.ToLower(htmlLangOrLocale)

	if tld == "uk" || strings.HasPrefix(locale, "en-gb") {
		return RegionUK
	}
	if euTLDs[tld] || isEULocale(locale) {
		return RegionEU
	}
	if tld == "us" || strings.HasPrefix(locale, "en-us") || tld == "com" {
		return RegionUS
	}
	return RegionOther
}

func isEULocale(locale string) bool {
	for _, prefix := range []string{"de", "fr", "it", "es", "nl", "pl", "sv", "da"} {
		if strings.HasPrefix(locale, prefix) {
			return true
		}
	}
	return false
}

// platformSelectors maps a platform to its known consent-widget
// selectors, tried before regional/universal candidates.
var platformSelectors = map[Platform][]string{
	PlatformWordPress: {"#cookie-law-info-bar .cli_action_button", ".cookie-notice-accept"},
	PlatformShopify:   {".shopify-pc__banner__btn-accept", "#shopify-pc-accept"},
	PlatformWebflow:   {"[data-wf-site] .cookie-accept", ".w-cookie-accept"},
}

// regionalSelectors maps a region to well-known consent-management
// platform selectors (§4.8: "TCF v2.0/Didomi/Quantcast/OneTrust/Osano
// for EU, ICO-flavored for UK").
var regionalSelectors = map[Region][]string{
	RegionEU: {
		"#onetrust-accept-btn-handler",
		"#didomi-notice-agree-button",
		".qc-cmp2-summary-buttons button[mode=primary]",
		"#osano-cm-accept-all",
		"button[title=\"Accept all\"]",
	},
	RegionUK: {
		"#onetrust-accept-btn-handler",
		"button[aria-label=\"Accept cookies\"]",
	},
}

// universalSelectors are the last-resort candidates tried regardless of
// platform or region (§4.8).
var universalSelectors = []string{
	"#accept-cookies",
	"#cookie-accept",
	".cookie-consent-accept",
	"button:has-text(\"Accept all\")",
	"button:has-text(\"Accept\")",
	"button:has-text(\"I agree\")",
	"button:has-text(\"Got it\")",
}

// PrioritizedSelectors builds the candidate list in the order §4.8
// specifies: platform-specific first, then regional, then universal.
func PrioritizedSelectors(platform Platform, region Region) []string {
	var out []string
	out = append(out, platformSelectors[platform]...)
	out = append(out, regionalSelectors[region]...)
	out = append(out, universalSelectors...)
	return out
}
