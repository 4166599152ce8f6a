package domutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInteractiveElementsFindsAllKinds(t *testing.T) {
	htmlText := `
	<html><body>
		<button id="submit">Go</button>
		<input type="text" name="email" placeholder="Email">
		<a href="/cart">Cart</a>
		<select name="country"></select>
		<textarea name="bio"></textarea>
	</body></html>`

	elements, err := ParseInteractiveElements(htmlText)
	require.NoError(t, err)
	require.Len(t, elements, 5)

	kinds := map[Kind]bool{}
	for _, e := range elements {
		kinds[e.Kind] = true
	}
	assert.True(t, kinds[KindButton])
	assert.True(t, kinds[KindInput])
	assert.True(t, kinds[KindLink])
	assert.True(t, kinds[KindSelect])
	assert.True(t, kinds[KindTextarea])
}

func TestSelectorPriorityPrefersIDOverEverythingElse(t *testing.T) {
	elements, err := ParseInteractiveElements(`<button id="go" data-testid="x" name="y">Go</button>`)
	require.NoError(t, err)
	require.Len(t, elements, 1)
	assert.Equal(t, "#go", elements[0].Selector)
}

func TestSelectorFallsBackToDataTestID(t *testing.T) {
	elements, err := ParseInteractiveElements(`<button data-testid="submit-btn">Go</button>`)
	require.NoError(t, err)
	assert.Equal(t, `[data-testid="submit-btn"]`, elements[0].Selector)
}

func TestSelectorFallsBackToHasText(t *testing.T) {
	elements, err := ParseInteractiveElements(`<div><button>Save</button><button>Save</button></div>`)
	require.NoError(t, err)
	require.Len(t, elements, 2)
	assert.Equal(t, `button:has-text("Save")`, elements[0].Selector)
}

func TestHiddenInputDetected(t *testing.T) {
	elements, err := ParseInteractiveElements(`<input type="hidden" name="csrf" value="x">`)
	require.NoError(t, err)
	require.Len(t, elements, 1)
	assert.True(t, elements[0].Hidden)
}

func TestAccessibilitySummaryFlagsMissingLabelsAndHiddenCappedAt40(t *testing.T) {
	var elements []Element
	for i := 0; i < 50; i++ {
		elements = append(elements, Element{Selector: "button:nth-of-type(1)"})
	}
	flags := AccessibilitySummary(elements, 40)
	assert.Len(t, flags, 40)
}
