package wordcloud

import (
	"image"
	"image/color"
	"math"
	"math/rand/v2"

	"golang.org/x/image/font"
)

const (
	minFontSize = 10
	// spiralSteps bounds the search for a free spot at one font size.
	spiralSteps = 4000
	padding     = 2
)

// Placement is one positioned word. Rect is the word's box; the text is
// drawn from Rect.Min.X on Baseline.
type Placement struct {
	Word     string
	Size     int
	Color    color.Color
	Rect     image.Rectangle
	Baseline int
}

type faceFunc func(size int) (font.Face, error)

// layout places words largest first. Each word starts at a random point
// and walks an Archimedean spiral until its box fits inside the canvas
// without touching a placed box; if it never fits the font shrinks, and a
// word that cannot fit at the minimum size is dropped.
func layout(words []WordCount, width, height int, faceFor faceFunc, rng *rand.Rand) ([]Placement, error) {
	if len(words) == 0 {
		return nil, nil
	}
	maxCount := words[0].Count
	maxSize := height / 4
	if maxSize < minFontSize {
		maxSize = minFontSize
	}
	bounds := image.Rect(0, 0, width, height)

	var placed []Placement
	for _, wc := range words {
		size := fontSize(wc.Count, maxCount, maxSize)
		for size >= minFontSize {
			face, err := faceFor(size)
			if err != nil {
				return nil, err
			}
			w, h, ascent := measure(face, wc.Word)
			if rect, ok := findSpot(w, h, bounds, placed, rng); ok {
				placed = append(placed, Placement{
					Word:     wc.Word,
					Size:     size,
					Color:    plasma[rng.IntN(len(plasma))],
					Rect:     rect,
					Baseline: rect.Min.Y + ascent,
				})
				break
			}
			size = size * 85 / 100
		}
	}
	return placed, nil
}

// fontSize scales linearly with frequency relative to the most frequent
// word.
func fontSize(count, maxCount, maxSize int) int {
	if maxCount <= 0 {
		return minFontSize
	}
	size := minFontSize + (maxSize-minFontSize)*count/maxCount
	return max(size, minFontSize)
}

func measure(face font.Face, word string) (w, h, ascent int) {
	m := face.Metrics()
	ascent = m.Ascent.Ceil()
	return font.MeasureString(face, word).Ceil(), ascent + m.Descent.Ceil(), ascent
}

func findSpot(w, h int, bounds image.Rectangle, placed []Placement, rng *rand.Rand) (image.Rectangle, bool) {
	if w > bounds.Dx() || h > bounds.Dy() {
		return image.Rectangle{}, false
	}
	x0 := rng.IntN(bounds.Dx() - w + 1)
	y0 := rng.IntN(bounds.Dy() - h + 1)
	for step := range spiralSteps {
		t := float64(step) * 0.1
		x := x0 + int(math.Round(t*math.Cos(t)))
		y := y0 + int(math.Round(t*math.Sin(t)*0.5))
		rect := image.Rect(x, y, x+w, y+h)
		if !rect.In(bounds) {
			continue
		}
		if !collides(rect, placed) {
			return rect, true
		}
	}
	return image.Rectangle{}, false
}

func collides(rect image.Rectangle, placed []Placement) bool {
	padded := rect.Inset(-padding)
	for _, p := range placed {
		if padded.Overlaps(p.Rect) {
			return true
		}
	}
	return false
}

// plasma samples matplotlib's plasma colormap.
var plasma = []color.Color{
	color.RGBA{0x0d, 0x08, 0x87, 0xff},
	color.RGBA{0x46, 0x03, 0x9f, 0xff},
	color.RGBA{0x72, 0x01, 0xa8, 0xff},
	color.RGBA{0x9c, 0x17, 0x9e, 0xff},
	color.RGBA{0xbd, 0x37, 0x86, 0xff},
	color.RGBA{0xd8, 0x57, 0x6b, 0xff},
	color.RGBA{0xed, 0x79, 0x53, 0xff},
	color.RGBA{0xfb, 0x9f, 0x3a, 0xff},
	color.RGBA{0xfd, 0xca, 0x26, 0xff},
	color.RGBA{0xf0, 0xf9, 0x21, 0xff},
}
