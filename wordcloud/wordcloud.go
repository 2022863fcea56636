// Package wordcloud counts word frequencies across messages and renders
// them as a word cloud raster.
package wordcloud

import (
	"fmt"
	"image"
	"image/color"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/fogleman/gg"
	"github.com/rs/zerolog"

	"github.com/bassamadnan/mailsight/textnorm"
)

// Options sizes the raster. Zero fields take the defaults.
type Options struct {
	Width    int
	Height   int
	MaxWords int
}

const (
	DefaultWidth    = 800
	DefaultHeight   = 400
	DefaultMaxWords = 50
)

// WordCount is one token and how often it occurs.
type WordCount struct {
	Word  string
	Count int
}

// Renderer draws word clouds. Placement is random, so two renders of the
// same input differ.
type Renderer struct {
	norm  *textnorm.Normalizer
	opts  Options
	fonts *fontCache
	log   zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func New(norm *textnorm.Normalizer, opts Options, log zerolog.Logger) *Renderer {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.MaxWords <= 0 {
		opts.MaxWords = DefaultMaxWords
	}
	return &Renderer{
		norm:  norm,
		opts:  opts,
		fonts: newFontCache(),
		log:   log.With().Str("component", "wordcloud").Logger(),
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Frequencies normalizes every document and returns the token counts,
// most frequent first, ties broken alphabetically.
func (r *Renderer) Frequencies(docs []string) []WordCount {
	counts := make(map[string]int)
	for _, doc := range docs {
		for _, tok := range r.norm.Tokens(doc) {
			counts[tok]++
		}
	}
	words := make([]WordCount, 0, len(counts))
	for w, c := range counts {
		words = append(words, WordCount{Word: w, Count: c})
	}
	sort.Slice(words, func(i, j int) bool {
		if words[i].Count != words[j].Count {
			return words[i].Count > words[j].Count
		}
		return words[i].Word < words[j].Word
	})
	return words
}

// Top returns at most MaxWords of the most frequent words.
func (r *Renderer) Top(docs []string) []WordCount {
	words := r.Frequencies(docs)
	if len(words) > r.opts.MaxWords {
		words = words[:r.opts.MaxWords]
	}
	return words
}

// Render draws the most frequent words of docs on a black background.
// With no words left after normalization the image is blank.
func (r *Renderer) Render(docs []string) (image.Image, error) {
	words := r.Top(docs)

	r.mu.Lock()
	placements, err := layout(words, r.opts.Width, r.opts.Height, r.fonts.face, r.rng)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	dc := gg.NewContext(r.opts.Width, r.opts.Height)
	dc.SetColor(color.Black)
	dc.Clear()
	for _, p := range placements {
		face, err := r.fonts.face(p.Size)
		if err != nil {
			return nil, err
		}
		dc.SetFontFace(face)
		dc.SetColor(p.Color)
		dc.DrawString(p.Word, float64(p.Rect.Min.X), float64(p.Baseline))
	}
	r.log.Info().Int("words", len(words)).Int("placed", len(placements)).Msg("rendered word cloud")
	return dc.Image(), nil
}

// SavePNG writes img to path.
func SavePNG(img image.Image, path string) error {
	if err := gg.SavePNG(path, img); err != nil {
		return fmt.Errorf("saving word cloud to %s: %w", path, err)
	}
	return nil
}
