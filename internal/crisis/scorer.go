// Package crisis scores support messages for crisis risk. Scoring is pattern
// based and deterministic: the base score is the highest severity among
// matched categories, adjusted by a per-region multiplier and clamped to
// [0, 1].
package crisis

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/globalmind/support-platform/internal/fault"
	"github.com/globalmind/support-platform/pkg/logging"
)

var crisisTracer = otel.Tracer("globalmind/crisis-scorer")

// Category identifiers, ordered here from most to least severe under the
// default severity table.
const (
	CategoryImmediateDanger = "immediate_danger"
	CategorySelfHarm        = "self_harm"
	CategoryHopelessness    = "hopelessness"
	CategoryHelpSeeking     = "help_seeking"
)

// Urgency levels derived from the final score.
const (
	UrgencyImmediate = "immediate"
	UrgencyHigh      = "high"
	UrgencyMedium    = "medium"
	UrgencyLow       = "low"
)

// Assessment is the outcome of scoring one message.
type Assessment struct {
	Score             float64  `json:"score"`
	Urgency           string   `json:"urgency"`
	MatchedCategories []string `json:"matched_categories"`
	Region            string   `json:"region"`
}

// Scorer evaluates messages against the category pattern table.
type Scorer struct {
	logger      *logging.Logger
	severities  map[string]float64
	multipliers map[string]float64
	patterns    map[string][]*regexp.Regexp
}

var categoryPatterns = map[string][]*regexp.Regexp{
	CategoryImmediateDanger: {
		regexp.MustCompile(`(?i)\bkill\s+myself\b`),
		regexp.MustCompile(`(?i)\bend\s+(my|it\s+all|everything)\b`),
		regexp.MustCompile(`(?i)\b(commit\s+)?suicide\b`),
		regexp.MustCompile(`(?i)\bwant\s+to\s+die\b`),
		regexp.MustCompile(`(?i)\bbetter\s+off\s+dead\b`),
		regexp.MustCompile(`(?i)\btake\s+my\s+(own\s+)?life\b`),
		regexp.MustCompile(`(?i)\bdon'?t\s+want\s+to\s+(live|be\s+alive)\b`),
	},
	CategorySelfHarm: {
		regexp.MustCompile(`(?i)\bhurt(ing)?\s+myself\b`),
		regexp.MustCompile(`(?i)\bcut(ting)?\s+myself\b`),
		regexp.MustCompile(`(?i)\bself[\s-]?harm\b`),
		regexp.MustCompile(`(?i)\bharm(ing)?\s+myself\b`),
		regexp.MustCompile(`(?i)\bpunish(ing)?\s+myself\b`),
	},
	CategoryHopelessness: {
		regexp.MustCompile(`(?i)\bhopeless\b`),
		regexp.MustCompile(`(?i)\bno\s+point\b`),
		regexp.MustCompile(`(?i)\bcan'?t\s+go\s+on\b`),
		regexp.MustCompile(`(?i)\bgiv(e|ing)\s+up\b`),
		regexp.MustCompile(`(?i)\bworthless\b`),
		regexp.MustCompile(`(?i)\bno\s+reason\s+to\s+(live|keep\s+going)\b`),
		regexp.MustCompile(`(?i)\bnothing\s+matters\b`),
	},
	CategoryHelpSeeking: {
		regexp.MustCompile(`(?i)\bneed\s+help\b`),
		regexp.MustCompile(`(?i)\bplease\s+help\b`),
		regexp.MustCompile(`(?i)\bsomeone\s+(to\s+)?help\b`),
		regexp.MustCompile(`(?i)\btalk\s+to\s+(someone|somebody)\b`),
		regexp.MustCompile(`(?i)\bwhere\s+(can|do)\s+i\s+(get|find)\s+(help|support)\b`),
	},
}

// NewScorer builds a scorer from the severity and multiplier tables. Every
// severity entry must have a pattern list; an empty table is a configuration
// error, never a silently inert scorer.
func NewScorer(logger *logging.Logger, severities, multipliers map[string]float64) (*Scorer, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if len(severities) == 0 {
		return nil, fault.New(fault.KindConfiguration, fault.CodeConfigMissingRules,
			"crisis: severity table is empty")
	}
	if len(multipliers) == 0 {
		return nil, fault.New(fault.KindConfiguration, fault.CodeConfigMissingRules,
			"crisis: region multiplier table is empty")
	}

	patterns := make(map[string][]*regexp.Regexp, len(severities))
	for category := range severities {
		ps, ok := categoryPatterns[category]
		if !ok {
			return nil, fault.New(fault.KindConfiguration, fault.CodeConfigMissingRules,
				fmt.Sprintf("crisis: no patterns for category %q", category))
		}
		patterns[category] = ps
	}

	return &Scorer{
		logger:      logger,
		severities:  severities,
		multipliers: multipliers,
		patterns:    patterns,
	}, nil
}

// Score evaluates one message. An empty or whitespace-only message scores 0.0
// with no matched categories. The base score is the MAX severity among matched
// categories, not a sum, so stacked phrases from one category cannot inflate
// risk past the category's ceiling.
func (s *Scorer) Score(ctx context.Context, message, region string) (*Assessment, error) {
	if s == nil {
		return nil, fault.New(fault.KindCrisisDetection, fault.CodeCrisisScorer, "crisis: scorer not configured")
	}
	_, span := crisisTracer.Start(ctx, "crisis.score")
	defer span.End()

	message = strings.TrimSpace(message)
	if message == "" {
		return &Assessment{Score: 0, Urgency: UrgencyLow, MatchedCategories: []string{}, Region: region}, nil
	}

	var matched []string
	base := 0.0
	for category, ps := range s.patterns {
		for _, p := range ps {
			if p.MatchString(message) {
				matched = append(matched, category)
				if sev := s.severities[category]; sev > base {
					base = sev
				}
				break
			}
		}
	}
	sort.Strings(matched)
	if matched == nil {
		matched = []string{}
	}

	multiplier, ok := s.multipliers[region]
	if !ok {
		multiplier = 1.0
	}
	score := clamp01(base * multiplier)

	a := &Assessment{
		Score:             score,
		Urgency:           urgencyFor(score),
		MatchedCategories: matched,
		Region:            region,
	}

	span.SetAttributes(
		attribute.Float64("crisis.score", a.Score),
		attribute.String("crisis.urgency", a.Urgency),
		attribute.Int("crisis.categories", len(a.MatchedCategories)),
		attribute.String("crisis.region", region),
	)

	if len(matched) > 0 {
		// Never log message content here; categories and score only.
		s.logger.Info("crisis signals detected",
			"score", a.Score,
			"urgency", a.Urgency,
			"categories", strings.Join(matched, ","),
			"region", region,
		)
	}

	return a, nil
}

func urgencyFor(score float64) string {
	switch {
	case score >= 0.8:
		return UrgencyImmediate
	case score >= 0.6:
		return UrgencyHigh
	case score >= 0.3:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
