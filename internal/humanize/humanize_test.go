package humanize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nous-labs/murmur/internal/chance"
	"github.com/nous-labs/murmur/internal/vibe"
)

func TestSanitize(t *testing.T) {
	s := NewSanitizer(DefaultBannedWords)
	tests := []struct {
		in, want string
	}{
		{"say hello there", "say *** there"},
		{"say HELLO there", "say *** there"},
		{"this is lit", "this is ***"},
		{"thistle and fireworks", "thistle and fireworks"},
		{"**bold** move", "bold move"},
		{"check https://example.com/x?y=1 now", "check [link] now"},
		{"don't; stop-it", "dont stopit"},
		{"Nothing To Strip", "Nothing To Strip"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Sanitize(tt.in))
		})
	}
}

func TestAddDisfluency(t *testing.T) {
	text := "that new map is really good"

	// gate closed
	assert.Equal(t, text, AddDisfluency(chance.NewScripted(0.5), text, 0.15))
	// too short
	assert.Equal(t, "so true", AddDisfluency(chance.NewScripted(0.0), "so true", 0.15))

	// hesitation prefix: gate, kind=0, phrase=1 ("um"), prefix roll > 0.5
	src := chance.NewScripted(0.0, 0.9).WithInts(int(hesitation), 1)
	assert.Equal(t, "um "+text, AddDisfluency(src, text, 0.15))

	// hesitation without prefix
	src = chance.NewScripted(0.0, 0.2).WithInts(int(hesitation), 1)
	assert.Equal(t, text, AddDisfluency(src, text, 0.15))

	// backtrack spliced after the second word
	src = chance.NewScripted(0.0).WithInts(int(backtrack), 1, 1)
	assert.Equal(t, "that new i mean, map is really good", AddDisfluency(src, text, 0.15))

	// backtrack needs more than four words
	src = chance.NewScripted(0.0).WithInts(int(backtrack), 0, 0)
	assert.Equal(t, "one two three four", AddDisfluency(src, "one two three four", 0.15))

	// filler leaves text unchanged
	src = chance.NewScripted(0.0).WithInts(int(filler), 0)
	assert.Equal(t, text, AddDisfluency(src, text, 0.15))
}

func TestAddSelfCorrection(t *testing.T) {
	assert.Equal(t, "ok", AddSelfCorrection(chance.NewScripted(0.5), "ok", 0.1))
	assert.Equal(t, "ok", AddSelfCorrection(chance.NewScripted(0.05, 0.3), "ok", 0.1))

	src := chance.NewScripted(0.05, 0.8).WithInts(5)
	assert.Equal(t, "scratch that, ok", AddSelfCorrection(src, "ok", 0.1))
}

func TestAddTypo(t *testing.T) {
	tests := []struct {
		name string
		src  chance.Source
		in   string
		want string
	}{
		{"gate closed", chance.NewScripted(0.9), "playing", "playing"},
		{"vowel e", chance.NewScripted(0.0, 0.9).WithInts(typoVowel), "good game", "good gamee"},
		{"vowel o", chance.NewScripted(0.0, 0.1).WithInts(typoVowel), "ok fine", "ok fineo"},
		{"suffix ing", chance.NewScripted(0.0).WithInts(typoSuffix), "still playing", "still playin"},
		{"suffix s", chance.NewScripted(0.0).WithInts(typoSuffix), "nice cats", "nice cat"},
		{"suffix none", chance.NewScripted(0.0).WithInts(typoSuffix), "cool", "cool"},
		{"common words", chance.NewScripted(0.0).WithInts(typoCommonWord), "the thing you said", "teh thing yu said"},
		{"common words whole only", chance.NewScripted(0.0).WithInts(typoCommonWord), "theory", "theory"},
		{"upper flip", chance.NewScripted(0.0).WithInts(typoUpper, 2), "nice", "niCe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AddTypo(tt.src, tt.in, 0.15))
		})
	}
}

func TestAddEmoji(t *testing.T) {
	assert.Equal(t, "gg", AddEmoji(chance.NewScripted(0.5), "gg", vibe.Lazy, 0.067))
	src := chance.NewScripted(0.01).WithInts(1)
	assert.Equal(t, "gg💤", AddEmoji(src, "gg", vibe.Lazy, 0.067))
}

func TestPipelineOrder(t *testing.T) {
	opts := DefaultOptions()
	opts.Typos = true
	// sanitize, disfluency gate closed, self-correction fires, typo upper
	// flip at index 0, emoji fires.
	src := chance.NewScripted(
		0.9,      // disfluency gate
		0.0, 0.9, // self-correction gate and prefix
		0.0, // typo gate
		0.0, // emoji gate
	).WithInts(1, typoUpper, 0, 0)
	p := New(opts, src)
	assert.Equal(t, "My bad, *** there🤩", p.Apply("Hello there", vibe.Excited))
}

func TestPipelineStagesOff(t *testing.T) {
	p := New(Options{}, chance.NewScripted(0.0))
	assert.Equal(t, "Say Hello", p.Apply("Say Hello", vibe.Chill))
}

func TestTypingTime(t *testing.T) {
	assert.Equal(t, 3100*time.Millisecond, TypingTime("one"))
	assert.Equal(t, 4*time.Second, TypingTime("one two three four five six seven eight nine ten"))
	long := ""
	for i := 0; i < 40; i++ {
		long += "word "
	}
	assert.Equal(t, 5*time.Second, TypingTime(long))
}

func TestVariedDelay(t *testing.T) {
	assert.Equal(t, 2*time.Second, VariedDelay(chance.NewScripted(0.3), 2*time.Second, 0))
	d := VariedDelay(chance.NewScripted(0.5), 2*time.Second, 0.3)
	assert.InDelta(t, float64(2*time.Second), float64(d), float64(time.Millisecond))
	d = VariedDelay(chance.NewScripted(0.0), 2*time.Second, 0.3)
	assert.InDelta(t, float64(1400*time.Millisecond), float64(d), float64(time.Millisecond))
}
