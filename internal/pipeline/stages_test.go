package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/promo-cli/internal/model"
)

func TestParseBullets(t *testing.T) {
	out := parseBullets("- Fast setup\n* Long battery\n\n• Works offline\n")
	require.Len(t, out.Items, 3)
	assert.Equal(t, "Fast setup", out.Items[0].Title)
	assert.Equal(t, "Long battery", out.Items[1].Title)
	assert.Equal(t, "Works offline", out.Items[2].Title)
}

func TestParseTitled(t *testing.T) {
	out := parseTitled("1. Getting Started | unbox and charge\n2. Daily Use | tips\nNo Summary Line\n")
	require.Len(t, out.Items, 3)
	assert.Equal(t, "Getting Started", out.Items[0].Title)
	assert.Equal(t, "unbox and charge", out.Items[0].Body)
	assert.Equal(t, "getting-started", out.Items[0].Anchor)
	assert.Equal(t, "No Summary Line", out.Items[2].Title)
	assert.Empty(t, out.Items[2].Body)
}

func TestParseFAQ(t *testing.T) {
	text := "Q: Does it work offline?\nA: Yes, fully.\nEven in airplane mode.\n\nQ: Is there a warranty?\nA: Two years."
	out := parseFAQ(text)
	require.Len(t, out.Items, 2)
	assert.Equal(t, "Does it work offline?", out.Items[0].Title)
	assert.Equal(t, "Yes, fully. Even in airplane mode.", out.Items[0].Body)
	assert.Equal(t, "Is there a warranty?", out.Items[1].Title)
}

func TestParseSteps(t *testing.T) {
	out := parseSteps("1. Unbox the device.\n2. Charge it fully.\nSome commentary line.\n3) Pair via app.")
	require.Len(t, out.Items, 3)
	assert.Equal(t, "Step 1", out.Items[0].Title)
	assert.Equal(t, "Unbox the device.", out.Items[0].Body)
	assert.Equal(t, "Pair via app.", out.Items[2].Body)
}

func TestParseKeywords(t *testing.T) {
	out := parseKeywords("Wireless Earbuds, anc,\nbattery life, ANC")
	require.Len(t, out.Items, 3)
	assert.Equal(t, "wireless earbuds", out.Items[0].Title)
	assert.Equal(t, "anc", out.Items[1].Title)
	assert.Equal(t, "battery life", out.Items[2].Title)
}

func TestParseHashtags(t *testing.T) {
	out := parseHashtags("Try #Widget and #acme, also #widget plus noise")
	require.Len(t, out.Items, 2)
	assert.Equal(t, "#widget", out.Items[0].Title)
	assert.Equal(t, "#acme", out.Items[1].Title)
}

func TestParseParagraphs(t *testing.T) {
	out := parseParagraphs("Factory Floor\nCut downtime by half.\n\nHome Office\nQuick setup.")
	require.Len(t, out.Items, 2)
	assert.Equal(t, "Factory Floor", out.Items[0].Title)
	assert.Equal(t, "Cut downtime by half.", out.Items[0].Body)
}

func TestFallbacksAreDeterministic(t *testing.T) {
	sc := &stageState{
		product: model.Product{
			Name:     "Acme Widget",
			Body:     "The Acme Widget assembles itself. More text.",
			Keywords: []string{"Widget Kit", "assembly"},
			Language: "en",
		},
		results: map[model.StageID]*model.StageResult{},
	}

	for id, def := range stageDefs {
		a := def.fallback(sc)
		b := def.fallback(sc)
		require.NotNil(t, a, string(id))
		assert.Equal(t, a, b, string(id))
	}

	desc := stageDefs[model.StageDescription].fallback(sc)
	assert.Contains(t, desc.Text, "Acme Widget")

	tags := stageDefs[model.StageHashtags].fallback(sc)
	require.Len(t, tags.Items, 2)
	assert.Equal(t, "#widgetkit", tags.Items[0].Title)
}

func TestPromptsCarryDependencies(t *testing.T) {
	sc := &stageState{
		product: model.Product{Name: "Acme Widget", Body: "body", Language: "en"},
		results: map[model.StageID]*model.StageResult{
			model.StageUSP: {
				Stage:  model.StageUSP,
				Status: model.StageCompleted,
				Output: &model.StageOutput{Items: []model.StageItem{{Title: "Self assembling"}}},
			},
			model.StageKeywords: {
				Stage:  model.StageKeywords,
				Status: model.StageCompleted,
				Output: &model.StageOutput{Items: []model.StageItem{{Title: "widget"}}},
			},
		},
	}

	faqPrompt := stageDefs[model.StageFAQ].prompt(sc)
	assert.Contains(t, faqPrompt, "Self assembling")

	tagPrompt := stageDefs[model.StageHashtags].prompt(sc)
	assert.Contains(t, tagPrompt, "widget")
}

func TestCitedLen(t *testing.T) {
	text := "Grounded claim [1].\nUngrounded claim.\nAnother grounded one [12]."
	cited := citedLen(text)
	assert.Equal(t, len("Grounded claim [1].")+len("Another grounded one [12]."), cited)

	assert.Zero(t, citedLen("no markers here"))
	assert.Zero(t, citedLen("bracketed [word] but not numeric"))
}

func TestTruncateAndFirstSentence(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Len(t, truncate(strings.Repeat("x", 50), 10), 10)
	assert.Equal(t, "First.", firstSentence("First. Second."))
	assert.Equal(t, "No terminator", firstSentence("No terminator"))
}
