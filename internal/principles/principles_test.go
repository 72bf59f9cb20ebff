package principles

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllOrder(t *testing.T) {
	names := make([]string, 0, 5)
	for _, k := range All() {
		names = append(names, k.Name())
	}
	assert.Equal(t, []string{"Ahimsa", "Satya", "Asteya", "Brahmacharya", "Aparigraha"}, names)
}

func TestAllReturnsCopy(t *testing.T) {
	kinds := All()
	kinds[0] = Aparigraha
	assert.Equal(t, Ahimsa, All()[0])
}

func TestCheckStopMedication(t *testing.T) {
	out := Ahimsa.Check("you should stop medication")
	require.False(t, out.Passed)
	assert.Contains(t, out.Explanation, "stop medication")
	assert.Equal(t, "harm_indicators", out.Category)
	assert.Equal(t,
		"AHIMSA VIOLATION: Content suggests potentially harmful medical advice: 'stop medication'",
		out.Explanation)

	for _, k := range []Kind{Satya, Asteya, Brahmacharya, Aparigraha} {
		assert.True(t, k.Check("you should stop medication").Passed, "%s should pass", k)
	}
}

func TestCheckIsCaseInsensitive(t *testing.T) {
	out := Satya.Check("This supplement is GUARANTEED to help.")
	require.False(t, out.Passed)
	assert.Equal(t, "guaranteed", out.Matched)
}

func TestCheckSecondCategory(t *testing.T) {
	tests := []struct {
		kind     Kind
		content  string
		category string
		prefix   string
	}{
		{Ahimsa, "Honestly, you're avoiding the question.", "forcing_patterns", "AHIMSA VIOLATION: Content forces user disclosure"},
		{Satya, "Pick one, which is it?", "contradiction_dismissal", "SATYA VIOLATION: Dismissing user's contradictions"},
		{Asteya, "It won't work unless you upgrade.", "manipulation", "ASTEYA VIOLATION: Manipulative commercial intent"},
		{Brahmacharya, "Dig deeper immediately into that memory.", "forced_intensity", "BRAHMACHARYA VIOLATION: Forcing emotional intensity"},
		{Aparigraha, "Follow my plan for best results.", "outcome_attachment", "APARIGRAHA VIOLATION: Attached to specific outcome"},
	}

	for _, tt := range tests {
		t.Run(tt.kind.Name(), func(t *testing.T) {
			out := tt.kind.Check(tt.content)
			require.False(t, out.Passed)
			assert.Equal(t, tt.category, out.Category)
			assert.True(t, strings.HasPrefix(out.Explanation, tt.prefix), out.Explanation)
		})
	}
}

func TestEveryPhraseTripsItsOwner(t *testing.T) {
	for _, k := range All() {
		for category, phrases := range k.Phrases() {
			for _, phrase := range phrases {
				content := "Some preamble. " + strings.ToUpper(phrase) + " and more text."
				out := k.Check(content)
				if out.Passed {
					t.Errorf("%s/%s: phrase %q did not trip the check", k, category, phrase)
					continue
				}
				if !strings.Contains(phrase, out.Matched) {
					t.Errorf("%s: matched %q is not part of %q", k, out.Matched, phrase)
				}
				if !strings.Contains(out.Explanation, "'"+out.Matched+"'") {
					t.Errorf("%s: explanation %q does not quote the match", k, out.Explanation)
				}
			}
		}
	}
}

func TestCleanContentPasses(t *testing.T) {
	content := "Many people find that small walks after meals feel good. " +
		"Consider talking with your care team about what fits your routine."
	harmonies := map[Kind]string{
		Ahimsa:       "Ahimsa: Content respects user's boundaries and safety",
		Satya:        "Satya: Content honors complexity and uncertainty",
		Asteya:       "Asteya: Content respects user's narrative ownership",
		Brahmacharya: "Brahmacharya: Content maintains appropriate boundaries",
		Aparigraha:   "Aparigraha: Content offers without attachment",
	}
	for _, k := range All() {
		out := k.Check(content)
		assert.True(t, out.Passed, k.Name())
		assert.Equal(t, harmonies[k], out.Explanation)
		assert.Empty(t, out.Matched)
	}
}

func TestUnknownKind(t *testing.T) {
	out := Kind(42).Check("anything")
	assert.False(t, out.Passed)
	assert.Equal(t, "Kind(42)", Kind(42).Name())
	assert.Empty(t, Kind(42).Phrases())
}

func TestCheckConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k := All()[i%5]
			out := k.Check("the truth is this always works")
			if k == Satya || k == Asteya {
				assert.False(t, out.Passed)
			} else {
				assert.True(t, out.Passed)
			}
		}(i)
	}
	wg.Wait()
}
