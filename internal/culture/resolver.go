// Package culture maps a request's language and optional profile hints onto a
// cultural region and a therapeutic approach. Resolution is pure table lookup
// so it can never fail a request.
package culture

import "strings"

// Context is the resolved cultural frame for one request.
type Context struct {
	Language string `json:"language"`
	Region   string `json:"region"`
	Approach string `json:"approach"`
	Style    string `json:"communication_style"`
}

// Profile carries optional user-supplied hints that override the defaults.
type Profile struct {
	CulturalBackground string `json:"cultural_background,omitempty"`
	PreferredApproach  string `json:"preferred_approach,omitempty"`
}

// Region names. Used as multiplier keys in crisis scoring and as template
// selectors in response synthesis.
const (
	RegionWestern = "western"
	RegionEastern = "eastern"
	RegionAfrican = "african"
	RegionLatin   = "latin"
)

// Therapeutic approach identifiers.
const (
	ApproachWesternCBT         = "western_cbt"
	ApproachEasternMindfulness = "eastern_mindfulness"
	ApproachIndigenousHealing  = "indigenous_healing"
	ApproachFamilySystemic     = "family_systemic"
)

// Communication styles. They steer how replies are phrased, not what they say.
const (
	StyleDirect     = "direct"
	StyleIndirect   = "indirect"
	StyleNarrative  = "narrative"
	StyleExpressive = "expressive"
)

var languageRegions = map[string]string{
	"en": RegionWestern,
	"fr": RegionWestern,
	"de": RegionWestern,
	"it": RegionWestern,
	"es": RegionLatin,
	"pt": RegionLatin,
	"ru": RegionEastern,
	"zh": RegionEastern,
	"ja": RegionEastern,
	"ko": RegionEastern,
	"ar": RegionEastern,
	"hi": RegionEastern,
	"th": RegionEastern,
	"vi": RegionEastern,
	"sw": RegionAfrican,
	"am": RegionAfrican,
	"yo": RegionAfrican,
	"ig": RegionAfrican,
	"ha": RegionAfrican,
	"zu": RegionAfrican,
	"xh": RegionAfrican,
}

var regionApproaches = map[string]string{
	RegionWestern: ApproachWesternCBT,
	RegionEastern: ApproachEasternMindfulness,
	RegionAfrican: ApproachIndigenousHealing,
	RegionLatin:   ApproachFamilySystemic,
}

var regionStyles = map[string]string{
	RegionWestern: StyleDirect,
	RegionEastern: StyleIndirect,
	RegionAfrican: StyleNarrative,
	RegionLatin:   StyleExpressive,
}

// Resolver derives cultural context from language codes and profile hints.
type Resolver struct{}

func NewResolver() *Resolver { return &Resolver{} }

// Resolve maps language to region to approach. A profile's cultural_background
// overrides the language-derived region; preferred_approach overrides the
// region-derived approach. Unknown inputs fall back to western defaults.
func (r *Resolver) Resolve(language string, profile *Profile) Context {
	lang := normalizeLanguage(language)

	region, ok := languageRegions[lang]
	if !ok {
		region = RegionWestern
	}
	if profile != nil && profile.CulturalBackground != "" {
		if bg := strings.ToLower(strings.TrimSpace(profile.CulturalBackground)); validRegion(bg) {
			region = bg
		}
	}

	approach := regionApproaches[region]
	if profile != nil && profile.PreferredApproach != "" {
		if pa := strings.ToLower(strings.TrimSpace(profile.PreferredApproach)); validApproach(pa) {
			approach = pa
		}
	}

	return Context{Language: lang, Region: region, Approach: approach, Style: regionStyles[region]}
}

// normalizeLanguage lowercases and strips a BCP 47 region subtag, so "en-US"
// and "EN" both resolve as "en".
func normalizeLanguage(language string) string {
	lang := strings.ToLower(strings.TrimSpace(language))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return lang
}

func validRegion(region string) bool {
	_, ok := regionApproaches[region]
	return ok
}

func validApproach(approach string) bool {
	switch approach {
	case ApproachWesternCBT, ApproachEasternMindfulness, ApproachIndigenousHealing, ApproachFamilySystemic:
		return true
	}
	return false
}
