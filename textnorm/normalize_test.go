package textnorm

import (
	"testing"

	"github.com/nalgeon/be"
)

func TestNormalize(t *testing.T) {
	n := New(English())

	tests := []struct {
		in, want string
	}{
		{"Hello, World! 123", "hello world"},
		{"Win money now!!!", "win money"},
		{"free FREE prize", "free free prize"},
		{"Hello there friend", "hello friend"},
		{"  tabs\tand\nnewlines  ", "tabs newlines"},
		{"don't stop", "dont stop"},
		{"café naïve", "caf nave"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			be.Equal(t, n.Normalize(tt.in), tt.want)
		})
	}
}

func TestNormalizeStopwordsOnly(t *testing.T) {
	n := New(English())
	for _, in := range []string{
		"the and of, to!!! ... now",
		"?!?! -- ...",
		"Is IT there?",
	} {
		be.Equal(t, n.Normalize(in), "")
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	n := New(English())
	for _, in := range []string{
		"Hello, World! 123",
		"LIMITED offer: claim your $1,000 prize now -- click here",
		"Re: the meeting at 10am tomorrow",
		"Привет мир hello",
		"a b c d e",
		"",
	} {
		once := n.Normalize(in)
		be.Equal(t, n.Normalize(once), once)
	}
}

func TestNormalizeNonLatin(t *testing.T) {
	n := New(English())
	be.Equal(t, n.Normalize("こんにちは 世界"), "")
}

func TestEnglishIsShared(t *testing.T) {
	a, b := English(), English()
	be.True(t, a.Contains("now"))
	be.True(t, a.Contains("there"))
	be.True(t, !a.Contains("hello"))
	a["zzz-probe"] = struct{}{}
	be.True(t, b.Contains("zzz-probe"))
	delete(a, "zzz-probe")
}

func TestNilStopwords(t *testing.T) {
	n := New(nil)
	be.Equal(t, n.Normalize("The End"), "the end")
}
