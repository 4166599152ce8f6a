package tokens

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateTokensCeilsLenOverFour(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
}

func TestPruneDOMStripsScriptStyleAndComments(t *testing.T) {
	html := `<div><script>alert(1)</script><style>.x{color:red}</style><!-- hi --><p>hello   world</p></div>`
	pruned := PruneDOM(html, 1000)
	assert.NotContains(t, pruned, "alert")
	assert.NotContains(t, pruned, "color:red")
	assert.NotContains(t, pruned, "hi")
	assert.Contains(t, pruned, "hello world")
}

func TestPruneDOMIdempotent(t *testing.T) {
	html := strings.Repeat(`<div><script>x()</script><p>content here</p></div>`, 50)
	once := PruneDOM(html, 120)
	twice := PruneDOM(once, 120)
	assert.Equal(t, once, twice)
}

func TestPruneDOMTruncatesAtTagBoundary(t *testing.T) {
	html := "<p>aaaa</p><p>bbbb</p><p>cccc</p><p>dddd</p>"
	// 22 chars ends exactly on the second "</p>", past the 90% floor (19).
	pruned := PruneDOM(html, 22)
	assert.True(t, strings.HasSuffix(pruned, ">"), "expected truncation to land on a tag boundary, got %q", pruned)
}

func TestLimitHistoryKeepsLastN(t *testing.T) {
	seq := []string{"a", "b", "c", "d", "e"}
	assert.Equal(t, []string{"c", "d", "e"}, LimitHistory(seq, 3))
	assert.Equal(t, seq, LimitHistory(seq, 10))
	assert.Equal(t, []string{}, LimitHistory(seq, 0))
}

func TestBuildBoundedPromptStaysWithinBudget(t *testing.T) {
	in := PromptInputs{
		Base: "You are a test planner.",
		Goal: "Fill out the checkout form and submit the order.",
		Elements: []string{
			"button#submit \"Submit\"",
			"input#email",
			"input#name",
		},
		History: []string{
			"step1: click #name",
			"step2: type #email",
		},
		DOM: strings.Repeat("<div>content</div>", 500),
	}

	prompt, err := BuildBoundedPrompt(in, CallAction)
	require.NoError(t, err)
	assert.LessOrEqual(t, EstimateTokens(prompt), BudgetFor(CallAction))
}

func TestBuildBoundedPromptFailsFastWhenBaseAloneExceedsBudget(t *testing.T) {
	in := PromptInputs{Base: strings.Repeat("x", BudgetFor(CallCookieBanner)*charsPerToken)}
	_, err := BuildBoundedPrompt(in, CallCookieBanner)
	require.Error(t, err)
}

func TestBuildBoundedPromptKeepsRecentHistoryAndPriorityElements(t *testing.T) {
	in := PromptInputs{
		Base:     "base",
		Elements: []string{"first", "second", strings.Repeat("z", 20000)},
		History:  []string{strings.Repeat("old", 20000), "recent"},
	}
	prompt, err := BuildBoundedPrompt(in, CallAction)
	require.NoError(t, err)
	assert.Contains(t, prompt, "first")
	assert.Contains(t, prompt, "recent")
}
