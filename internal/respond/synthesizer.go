// Package respond turns a cultural context plus a user message into a
// supportive reply. Template selection is deterministic given an injected
// picker, which keeps tests stable.
package respond

import (
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/globalmind/support-platform/internal/culture"
	"github.com/globalmind/support-platform/pkg/logging"
)

// themePriority orders theme selection when a message matches several.
var themePriority = []string{ThemeGreeting, ThemeAnxiety, ThemeDepression, ThemeNegativeThoughts}

var themeKeywords = map[string][]string{
	ThemeAnxiety:          {"anxious", "worried", "nervous", "panic", "stress", "overwhelmed", "fear"},
	ThemeDepression:       {"sad", "depressed", "hopeless", "empty", "worthless", "tired", "lonely"},
	ThemeNegativeThoughts: {"always", "never", "terrible", "awful", "disaster", "failure", "stupid"},
	ThemeGreeting:         {"hello", "hi", "hey", "good morning", "good day"},
}

// themeMatchers anchors every keyword on word boundaries so short keywords
// like "hi" never match inside "this" or "everything".
var themeMatchers = func() map[string][]*regexp.Regexp {
	m := make(map[string][]*regexp.Regexp, len(themeKeywords))
	for theme, kws := range themeKeywords {
		for _, kw := range kws {
			m[theme] = append(m[theme], regexp.MustCompile(`\b`+regexp.QuoteMeta(kw)+`\b`))
		}
	}
	return m
}()

// Synthesizer selects culturally adapted support responses.
type Synthesizer struct {
	logger *logging.Logger
	pick   func(n int) int
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithPicker overrides the random template picker.
func WithPicker(pick func(n int) int) Option {
	return func(s *Synthesizer) { s.pick = pick }
}

// NewSynthesizer creates a synthesizer with a time-seeded picker.
func NewSynthesizer(logger *logging.Logger, opts ...Option) *Synthesizer {
	if logger == nil {
		logger = logging.Default()
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	s := &Synthesizer{logger: logger, pick: rng.Intn}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize produces a supportive reply for a non-crisis message. It never
// fails: missing bundles fall back to western CBT, missing themes fall back
// to general support then to the shared fallback list. priorThemes carries
// the themes of earlier turns in the session; when the current theme already
// came up, the template choice is rotated so consecutive turns on the same
// topic do not repeat the same wording.
func (s *Synthesizer) Synthesize(cctx culture.Context, message string, priorThemes []string) string {
	themes := AnalyzeThemes(message)
	theme := selectTheme(themes)

	b, ok := approachBundles[cctx.Approach]
	if !ok {
		b = approachBundles[culture.ApproachWesternCBT]
	}

	candidates := b[theme]
	if len(candidates) == 0 {
		candidates = b[ThemeGeneralSupport]
	}
	if len(candidates) == 0 {
		candidates = fallbackResponses
	}

	idx := s.pick(len(candidates))
	repeat := themeSeen(priorThemes, theme)
	if repeat {
		idx = (idx + 1) % len(candidates)
	}
	reply := s.adaptStyle(cctx.Style, candidates[idx])

	s.logger.Debug("response synthesized",
		"approach", cctx.Approach,
		"theme", theme,
		"style", cctx.Style,
		"repeat", repeat,
	)
	return reply
}

func themeSeen(prior []string, theme string) bool {
	for _, t := range prior {
		if t == theme {
			return true
		}
	}
	return false
}

// adaptStyle rephrases a reply for the region's communication style. The
// crisis path never goes through here: crisis wording is fixed.
func (s *Synthesizer) adaptStyle(style, reply string) string {
	switch style {
	case culture.StyleIndirect:
		reply = strings.ReplaceAll(reply, "You should", "You might consider")
		reply = strings.ReplaceAll(reply, "You need to", "It may be helpful to")
		reply = strings.ReplaceAll(reply, "You must", "It might be wise to")
		return reply
	case culture.StyleNarrative:
		starter := narrativeStarters[s.pick(len(narrativeStarters))]
		return starter + strings.ToLower(reply[:1]) + reply[1:]
	case culture.StyleExpressive:
		return reply + " " + expressiveClosers[s.pick(len(expressiveClosers))]
	default:
		return reply
	}
}

// SynthesizeCrisis produces a crisis reply for the region with the emergency
// resource block appended. The block is present on every crisis reply
// regardless of region or intro choice.
func (s *Synthesizer) SynthesizeCrisis(cctx culture.Context) string {
	intros, ok := crisisIntros[cctx.Region]
	if !ok {
		intros = crisisIntros[culture.RegionWestern]
	}
	intro := intros[s.pick(len(intros))]
	return intro + "\n\n" + emergencyBlock
}

// SafeCrisisFallback is the reply used when scoring fails and risk is
// unknown. It assumes high risk.
func SafeCrisisFallback() string {
	return "I'm very concerned about you. Please reach out for immediate help.\n\n" + emergencyBlock
}

// AnalyzeThemes extracts therapeutic themes from a message. A message with no
// recognized keywords yields the general support theme.
func AnalyzeThemes(message string) []string {
	text := strings.ToLower(message)

	var themes []string
	for _, theme := range []string{ThemeAnxiety, ThemeDepression, ThemeNegativeThoughts, ThemeGreeting} {
		for _, re := range themeMatchers[theme] {
			if re.MatchString(text) {
				themes = append(themes, theme)
				break
			}
		}
	}
	if len(themes) == 0 {
		themes = append(themes, ThemeGeneralSupport)
	}
	return themes
}

func selectTheme(themes []string) string {
	for _, p := range themePriority {
		for _, t := range themes {
			if t == p {
				return p
			}
		}
	}
	return ThemeGeneralSupport
}
