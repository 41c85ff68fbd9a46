package respond

import "github.com/globalmind/support-platform/internal/culture"

// Theme identifiers detected in user messages.
const (
	ThemeGreeting         = "greeting"
	ThemeAnxiety          = "anxiety"
	ThemeDepression       = "depression"
	ThemeNegativeThoughts = "negative_thoughts"
	ThemeGeneralSupport   = "general_support"
)

// bundle maps themes to candidate responses for one therapeutic approach.
type bundle map[string][]string

var approachBundles = map[string]bundle{
	culture.ApproachWesternCBT: {
		ThemeGreeting: {
			"Hello! I'm here to support you today. What's on your mind?",
			"Welcome! How are you feeling right now?",
			"Hi there! I'm glad you're here. What would you like to talk about?",
			"Good to see you! What's been happening in your life lately?",
		},
		ThemeAnxiety: {
			"I understand you're feeling anxious. Let's try to identify what thoughts might be contributing to this feeling.",
			"Anxiety can feel overwhelming. Can you tell me what specific thoughts are going through your mind right now?",
			"It's completely normal to feel anxious sometimes. Let's work together to examine these worried thoughts.",
			"When you notice anxiety, try the 4-7-8 breathing technique: breathe in for 4, hold for 7, exhale for 8.",
		},
		ThemeDepression: {
			"I hear that you're struggling with difficult feelings. Depression can make everything feel harder.",
			"These feelings are valid, and you're not alone. What small step could we take together today?",
			"Depression often involves negative thought patterns. Let's examine some of these thoughts together.",
			"Even small activities can help when feeling depressed. What's one thing you enjoyed doing in the past?",
		},
		ThemeNegativeThoughts: {
			"Let's examine this thought. What evidence supports it, and what evidence challenges it?",
			"Is this thought helpful to you right now? How might you reframe it more positively?",
			"What would you tell a friend who had this same thought?",
			"Let's try the thought record technique. Rate how much you believe this thought from 1-10.",
		},
		ThemeGeneralSupport: {
			"You're showing real strength by reaching out for support.",
			"Remember, healing is a process, and you're taking important steps.",
			"Every small step forward is progress worth celebrating.",
			"You have more resilience than you might realize right now.",
		},
	},
	culture.ApproachEasternMindfulness: {
		ThemeGreeting: {
			"Welcome. Take a moment to breathe and notice how you're feeling in this present moment.",
			"Hello. Let's begin by taking three deep breaths together.",
			"Greetings. I invite you to settle into this moment with gentle awareness.",
			"Welcome to this space of mindful presence. What brings you here today?",
		},
		ThemeAnxiety: {
			"Notice where you feel the anxiety in your body. Can you breathe into that space with compassion?",
			"Anxiety is a visitor, not a permanent resident. Let's observe it with curiosity rather than judgment.",
			"When anxiety arises, return to your breath as an anchor in the present moment.",
			"Place one hand on your heart and one on your belly. Feel the natural rhythm of your breathing.",
		},
		ThemeDepression: {
			"Depression can feel like a heavy cloud. Can we sit with this feeling without trying to change it?",
			"Notice any judgments about your depression. Can we meet these feelings with kindness instead?",
			"What does your body need right now? Sometimes gentle movement or rest can be healing.",
			"Even in difficult moments, your breath continues to sustain you. This too shall pass.",
		},
		ThemeNegativeThoughts: {
			"Observe your thoughts like clouds passing in the sky - acknowledge them and let them go.",
			"Focus on your breath. When your mind wanders, gently guide your attention back without judgment.",
			"Can we practice accepting this moment exactly as it is, without needing it to be different?",
			"Your feelings are valid messengers. What might they be trying to tell you?",
		},
		ThemeGeneralSupport: {
			"What you're experiencing right now is part of the human experience. You're not alone.",
			"Resistance often increases suffering. What would it feel like to soften around this experience?",
			"Listen to the sounds around you for one minute. Notice how they arise and fade away.",
		},
	},
	culture.ApproachIndigenousHealing: {
		ThemeGreeting: {
			"Welcome, friend. Our ancestors remind us that healing happens in community and connection.",
			"I honor your presence here. In many traditions, sharing our burdens lightens them.",
			"Greetings. Like the circle of seasons, our healing journey has its own natural rhythm.",
			"Welcome to this sacred space of sharing and healing.",
		},
		ThemeAnxiety: {
			"The cycles of nature remind us that after every storm comes calm. Your worry has its own season.",
			"Our ancestors knew that walking on the earth could settle both body and spirit. When did you last feel grounded?",
			"Water cleanses, earth grounds, fire transforms, air renews. Which element calls to you today?",
		},
		ThemeDepression: {
			"In community, we can carry each other's burdens. You don't have to face this alone.",
			"Stories have always been medicine. What story is your heart wanting to tell?",
			"The cycles of nature remind us that after every winter comes spring. Your healing has its own season.",
		},
		ThemeNegativeThoughts: {
			"Your ancestors carried wisdom that lives within you. What guidance might they offer now?",
			"The earth beneath us and sky above us remind us we are part of something larger.",
		},
		ThemeGeneralSupport: {
			"Healing often happens in relationship with others. Who are your sources of support?",
			"Your struggles affect not just you, but ripple through your connections. Healing benefits all.",
			"What gifts do you have to offer your community, even in your time of struggle?",
		},
	},
	culture.ApproachFamilySystemic: {
		ThemeGreeting: {
			"Welcome! I'm interested in understanding not just your experience, but your important relationships too.",
			"Hello! Family and close relationships often play a big role in how we feel. Tell me about yours.",
			"Greetings! We are all shaped by our connections with others. What brings you here today?",
			"Welcome to this space where we can explore how your relationships support your wellbeing.",
		},
		ThemeAnxiety: {
			"How does your family typically handle stress or difficult emotions?",
			"Who in your family or close circle has been most supportive during difficult times?",
			"How might involving your support system help with what you're experiencing?",
		},
		ThemeDepression: {
			"How do you think your family members would describe what you're going through?",
			"Let's map out your support network. Who are the people you can truly count on?",
			"What wisdom has been passed down in your family about handling life's challenges?",
		},
		ThemeNegativeThoughts: {
			"Sometimes our struggles reflect larger family patterns. What do you notice about this?",
			"What role do you usually play in your family during challenging times?",
		},
		ThemeGeneralSupport: {
			"What cultural values about family and community did you grow up with?",
			"How might your family's cultural practices support your wellbeing right now?",
		},
	},
}

// fallbackResponses are used when a bundle has no entries for the selected theme.
var fallbackResponses = []string{
	"I'm here to support you through this.",
	"Thank you for sharing with me. Your feelings are valid.",
	"You're taking an important step by reaching out.",
	"Let's work through this together, one step at a time.",
}

var crisisIntros = map[string][]string{
	culture.RegionWestern: {
		"I'm really concerned about you right now. You're not alone, and there are people who want to help.",
		"What you're feeling is overwhelming, but these feelings can change. Let's get you some immediate support.",
		"I hear that you're in a lot of pain right now. There are crisis counselors available 24/7 who specialize in helping.",
		"You've reached out, which shows incredible strength. Let's connect you with immediate professional support.",
	},
	culture.RegionEastern: {
		"I understand you're experiencing great suffering. In times of crisis, it's important to remember you're part of a larger whole.",
		"Your life has value and meaning, even in this moment of darkness. Let's find you immediate support.",
		"This moment of intense pain can pass, like clouds across the sky. There are people trained to help you right now.",
		"You've shown wisdom by reaching out. Let's connect you with crisis support that understands your background.",
	},
	culture.RegionAfrican: {
		"Our ancestors teach us that no one should face their darkest hour alone. There is immediate help available.",
		"Your community values your life. Let's get you connected with crisis support right away.",
		"In our tradition, reaching out for help is a sign of wisdom, not weakness. There are people ready to support you now.",
		"Your story is not finished. There are crisis counselors who understand and want to help immediately.",
	},
	culture.RegionLatin: {
		"Tu vida tiene valor. Your life has value. There are people who want to help you through this crisis immediately.",
		"La familia and community want to support you. Let's get you connected with crisis help right now.",
		"You have shown courage by reaching out. There is immediate help available from people who understand.",
		"Esta crisis puede pasar. This crisis can pass. Let's get you professional support immediately.",
	},
}

// emergencyBlock is appended verbatim to every crisis response. These four
// resources are a hard contract with clinical review; do not reorder or drop
// items.
const emergencyBlock = "IMMEDIATE HELP:\n" +
	"- Call 988 (Crisis Lifeline)\n" +
	"- Text HELLO to 741741 (Crisis Text Line)\n" +
	"- Go to your nearest emergency room\n" +
	"- Call 911 if you're in immediate danger"

// Resource is one emergency contact in a crisis reply.
type Resource struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Phone       string `json:"phone,omitempty"`
	Description string `json:"description,omitempty"`
}

// EmergencyResources returns the structured form of the emergency block, in
// the same order.
func EmergencyResources() []Resource {
	return []Resource{
		{Type: "hotline", Name: "Crisis Lifeline", Phone: "988", Description: "Call 988 (Crisis Lifeline)"},
		{Type: "text_line", Name: "Crisis Text Line", Phone: "741741", Description: "Text HELLO to 741741 (Crisis Text Line)"},
		{Type: "emergency_room", Name: "Emergency room", Description: "Go to your nearest emergency room"},
		{Type: "emergency_number", Name: "Emergency services", Phone: "911", Description: "Call 911 if you're in immediate danger"},
	}
}

// narrativeStarters frame a reply as shared wisdom for narrative-style
// regions.
var narrativeStarters = []string{
	"In many traditions, ",
	"The wisdom of generations teaches us that ",
	"Stories from our communities remind us that ",
}

// expressiveClosers add warmth for expressive-style regions.
var expressiveClosers = []string{
	"Con cariño (with care).",
	"You have fortaleza (strength).",
	"Tu corazón (your heart) knows the way.",
}
