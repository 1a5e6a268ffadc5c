package studio

import (
	"sync"

	"github.com/timmy/memegenie/internal/domain"
)

// Composition holds the meme being built: the working image, the applied
// captions and the last caption suggestions. Every image change bumps the
// generation so results computed for an older image can be recognised.
type Composition struct {
	mu          sync.RWMutex
	image       domain.ImageRef
	top         string
	bottom      string
	suggestions []domain.CaptionPair
	generation  uint64
}

// Snapshot is a consistent copy of a Composition.
type Snapshot struct {
	Image       domain.ImageRef
	Top         string
	Bottom      string
	Suggestions []domain.CaptionPair
	Generation  uint64
}

// Selected reports whether suggestion i is the applied caption pair.
func (s Snapshot) Selected(i int) bool {
	if i < 0 || i >= len(s.Suggestions) {
		return false
	}
	return s.Suggestions[i].Top == s.Top && s.Suggestions[i].Bottom == s.Bottom
}

// NewComposition returns an empty composition.
func NewComposition() *Composition {
	return &Composition{}
}

// SetImage selects new art: the image is replaced and all captioning work is discarded.
func (c *Composition) SetImage(ref domain.ImageRef) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.image = ref
	c.top, c.bottom = "", ""
	c.suggestions = nil
	c.generation++
}

// ReplaceImage installs an edited image if the composition is still at
// generation gen. Captions are kept, suggestions are dropped.
// Returns false when the result is stale.
func (c *Composition) ReplaceImage(gen uint64, ref domain.ImageRef) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != gen {
		return false
	}
	c.image = ref
	c.suggestions = nil
	c.generation++
	return true
}

// SetSuggestions stores caption suggestions computed at generation gen.
// Returns false when the image changed in the meantime.
func (c *Composition) SetSuggestions(gen uint64, pairs []domain.CaptionPair) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != gen {
		return false
	}
	c.suggestions = append([]domain.CaptionPair(nil), pairs...)
	return true
}

// SetCaptions stores user-typed captions verbatim.
func (c *Composition) SetCaptions(top, bottom string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.top, c.bottom = top, bottom
}

// ApplySuggestion copies suggestion i into the applied captions.
func (c *Composition) ApplySuggestion(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i < 0 || i >= len(c.suggestions) {
		return domain.ErrSuggestionIndex
	}
	c.top, c.bottom = c.suggestions[i].Top, c.suggestions[i].Bottom
	return nil
}

// Reset clears captions and suggestions and keeps the image.
func (c *Composition) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.top, c.bottom = "", ""
	c.suggestions = nil
}

// Snapshot returns a copy safe to use without holding the lock.
func (c *Composition) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		Image:       c.image,
		Top:         c.top,
		Bottom:      c.bottom,
		Suggestions: append([]domain.CaptionPair(nil), c.suggestions...),
		Generation:  c.generation,
	}
}
