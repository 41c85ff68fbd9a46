package respond

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/globalmind/support-platform/internal/culture"
)

func firstPicker(n int) int { return 0 }

func TestAnalyzeThemes(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    []string
	}{
		{"anxiety keywords", "I feel so anxious and overwhelmed", []string{ThemeAnxiety}},
		{"depression keywords", "everything feels empty and I'm lonely", []string{ThemeDepression}},
		{"negative thinking", "I'm such a failure, it's always terrible", []string{ThemeNegativeThoughts}},
		{"greeting", "hello there", []string{ThemeGreeting}},
		{"multiple themes", "hi, I've been worried and so sad lately", []string{ThemeAnxiety, ThemeDepression, ThemeGreeting}},
		{"nothing recognized", "tell me about gardening", []string{ThemeGeneralSupport}},
		{"keywords only match whole words", "this history means everything to me", []string{ThemeGeneralSupport}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ElementsMatch(t, tt.want, AnalyzeThemes(tt.message))
		})
	}
}

func TestSynthesizeThemePriority(t *testing.T) {
	s := NewSynthesizer(nil, WithPicker(firstPicker))
	cctx := culture.Context{Region: culture.RegionWestern, Approach: culture.ApproachWesternCBT}

	// Greeting wins over anxiety when both are present.
	reply := s.Synthesize(cctx, "hello, I'm feeling anxious today", nil)
	assert.Contains(t, approachBundles[culture.ApproachWesternCBT][ThemeGreeting], reply)

	// Anxiety wins over depression.
	reply = s.Synthesize(cctx, "I'm worried and sad all the time", nil)
	assert.Contains(t, approachBundles[culture.ApproachWesternCBT][ThemeAnxiety], reply)
}

func TestSynthesizeVariesOnRepeatedTheme(t *testing.T) {
	s := NewSynthesizer(nil, WithPicker(firstPicker))
	cctx := culture.Context{Region: culture.RegionWestern, Approach: culture.ApproachWesternCBT}

	first := s.Synthesize(cctx, "I'm feeling anxious", nil)
	assert.Equal(t, approachBundles[culture.ApproachWesternCBT][ThemeAnxiety][0], first)

	// A second turn on the same theme rotates to the next template.
	second := s.Synthesize(cctx, "still so anxious", []string{ThemeAnxiety})
	assert.Equal(t, approachBundles[culture.ApproachWesternCBT][ThemeAnxiety][1], second)
	assert.NotEqual(t, first, second)

	// Prior turns on other themes leave the choice alone.
	third := s.Synthesize(cctx, "I'm feeling anxious", []string{ThemeDepression})
	assert.Equal(t, first, third)
}

func TestSynthesizeReturnsApproachTemplate(t *testing.T) {
	s := NewSynthesizer(nil, WithPicker(firstPicker))

	for _, approach := range []string{
		culture.ApproachWesternCBT,
		culture.ApproachEasternMindfulness,
		culture.ApproachIndigenousHealing,
		culture.ApproachFamilySystemic,
	} {
		t.Run(approach, func(t *testing.T) {
			cctx := culture.Context{Approach: approach}
			reply := s.Synthesize(cctx, "I've been feeling very anxious", nil)
			assert.Contains(t, approachBundles[approach][ThemeAnxiety], reply)
		})
	}
}

func TestSynthesizeUnknownApproachFallsBack(t *testing.T) {
	s := NewSynthesizer(nil, WithPicker(firstPicker))

	reply := s.Synthesize(culture.Context{Approach: "hypnosis"}, "I'm depressed", nil)
	assert.Contains(t, approachBundles[culture.ApproachWesternCBT][ThemeDepression], reply)
}

func TestSynthesizePickerBounds(t *testing.T) {
	// A picker that always chooses the last candidate must stay in range for
	// every theme and approach.
	s := NewSynthesizer(nil, WithPicker(func(n int) int { return n - 1 }))

	for approach := range approachBundles {
		for _, msg := range []string{"hello", "anxious", "sad", "failure", "tell me more"} {
			reply := s.Synthesize(culture.Context{Approach: approach}, msg, nil)
			assert.NotEmpty(t, reply)
		}
	}
}

func TestSynthesizeCrisisIncludesEmergencyBlock(t *testing.T) {
	s := NewSynthesizer(nil, WithPicker(firstPicker))

	for _, region := range []string{
		culture.RegionWestern, culture.RegionEastern, culture.RegionAfrican, culture.RegionLatin, "unknown",
	} {
		t.Run(region, func(t *testing.T) {
			reply := s.SynthesizeCrisis(culture.Context{Region: region})
			assert.Contains(t, reply, "988")
			assert.Contains(t, reply, "741741")
			assert.Contains(t, reply, "emergency room")
			assert.Contains(t, reply, "911")
		})
	}
}

func TestSynthesizeCrisisRegionIntro(t *testing.T) {
	s := NewSynthesizer(nil, WithPicker(firstPicker))

	reply := s.SynthesizeCrisis(culture.Context{Region: culture.RegionLatin})
	intro := strings.SplitN(reply, "\n\n", 2)[0]
	assert.Contains(t, crisisIntros[culture.RegionLatin], intro)
}

func TestSafeCrisisFallback(t *testing.T) {
	reply := SafeCrisisFallback()
	require.Contains(t, reply, "988")
	assert.Contains(t, reply, "741741")
	assert.Contains(t, reply, "911")
}

func TestAdaptStyle(t *testing.T) {
	s := NewSynthesizer(nil, WithPicker(firstPicker))

	t.Run("direct leaves the template untouched", func(t *testing.T) {
		cctx := culture.Context{Approach: culture.ApproachWesternCBT, Style: culture.StyleDirect}
		reply := s.Synthesize(cctx, "hello", nil)
		assert.Contains(t, approachBundles[culture.ApproachWesternCBT][ThemeGreeting], reply)
	})

	t.Run("narrative prepends a starter", func(t *testing.T) {
		cctx := culture.Context{Approach: culture.ApproachIndigenousHealing, Style: culture.StyleNarrative}
		reply := s.Synthesize(cctx, "hello", nil)
		assert.True(t, strings.HasPrefix(reply, narrativeStarters[0]), "got %q", reply)
	})

	t.Run("expressive appends a closer", func(t *testing.T) {
		cctx := culture.Context{Approach: culture.ApproachFamilySystemic, Style: culture.StyleExpressive}
		reply := s.Synthesize(cctx, "hello", nil)
		assert.True(t, strings.HasSuffix(reply, expressiveClosers[0]), "got %q", reply)
	})

	t.Run("indirect softens directives", func(t *testing.T) {
		got := s.adaptStyle(culture.StyleIndirect, "You should rest. You need to breathe.")
		assert.Equal(t, "You might consider rest. It may be helpful to breathe.", got)
	})

	t.Run("crisis wording ignores style", func(t *testing.T) {
		cctx := culture.Context{Region: culture.RegionAfrican, Style: culture.StyleNarrative}
		reply := s.SynthesizeCrisis(cctx)
		intro := strings.SplitN(reply, "\n\n", 2)[0]
		assert.Contains(t, crisisIntros[culture.RegionAfrican], intro)
	})
}

func TestEmergencyResourcesMatchBlock(t *testing.T) {
	resources := EmergencyResources()
	require.Len(t, resources, 4)
	for _, r := range resources {
		assert.Contains(t, emergencyBlock, r.Description)
	}
	assert.Equal(t, "988", resources[0].Phone)
	assert.Equal(t, "741741", resources[1].Phone)
	assert.Equal(t, "911", resources[3].Phone)
}
