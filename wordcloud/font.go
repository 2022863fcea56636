package wordcloud

import (
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
)

var parseBold = sync.OnceValues(func() (*opentype.Font, error) {
	return opentype.Parse(gobold.TTF)
})

// fontCache keeps one face per pixel size.
type fontCache struct {
	mu    sync.Mutex
	faces map[int]font.Face
}

func newFontCache() *fontCache {
	return &fontCache{faces: make(map[int]font.Face)}
}

func (c *fontCache) face(size int) (font.Face, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.faces[size]; ok {
		return f, nil
	}
	ttf, err := parseBold()
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}
	f, err := opentype.NewFace(ttf, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("creating %dpx font face: %w", size, err)
	}
	c.faces[size] = f
	return f, nil
}
