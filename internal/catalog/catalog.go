package catalog

import (
	"github.com/timmy/memegenie/internal/config"
	"github.com/timmy/memegenie/internal/domain"
)

// Catalog is a read-only list of meme templates.
type Catalog interface {
	// List returns all templates in display order.
	List() []domain.Template

	// Get returns the template with the given id.
	// Returns domain.ErrTemplateNotFound for unknown ids.
	Get(id string) (domain.Template, error)
}

// Static is an in-memory Catalog.
type Static struct {
	templates []domain.Template
	byID      map[string]int
}

// defaultTemplates are the trending templates shipped with the service.
var defaultTemplates = []domain.Template{
	{ID: "1", Name: "Distracted Boyfriend", URL: "https://i.imgflip.com/1otk96.jpg"},
	{ID: "2", Name: "Woman Yelling at Cat", URL: "https://i.imgflip.com/30zz5g.jpg"},
	{ID: "3", Name: "Success Kid", URL: "https://i.imgflip.com/1bhk.jpg"},
	{ID: "4", Name: "Drake Hotline Bling", URL: "https://i.imgflip.com/9ehk.jpg"},
	{ID: "5", Name: "One Does Not Simply", URL: "https://i.imgflip.com/1g8my4.jpg"},
	{ID: "6", Name: "Two Buttons", URL: "https://i.imgflip.com/1g8my4.jpg"},
	{ID: "7", Name: "Change My Mind", URL: "https://i.imgflip.com/24y43o.jpg"},
	{ID: "8", Name: "This Is Fine", URL: "https://i.imgflip.com/261o3j.jpg"},
}

// NewStatic builds a catalog from the given templates. Later duplicates of an
// id are ignored.
func NewStatic(templates []domain.Template) *Static {
	c := &Static{byID: make(map[string]int, len(templates))}
	for _, t := range templates {
		if _, dup := c.byID[t.ID]; dup {
			continue
		}
		c.byID[t.ID] = len(c.templates)
		c.templates = append(c.templates, t)
	}
	return c
}

// Default returns the built-in catalog.
func Default() *Static {
	return NewStatic(defaultTemplates)
}

// FromConfig returns the configured catalog, or the built-in one when the
// configuration lists no templates.
func FromConfig(entries []config.TemplateConfig) *Static {
	if len(entries) == 0 {
		return Default()
	}
	templates := make([]domain.Template, 0, len(entries))
	for _, e := range entries {
		name := e.Name
		if name == "" {
			name = e.ID
		}
		templates = append(templates, domain.Template{ID: e.ID, Name: name, URL: e.URL})
	}
	return NewStatic(templates)
}

func (c *Static) List() []domain.Template {
	out := make([]domain.Template, len(c.templates))
	copy(out, c.templates)
	return out
}

func (c *Static) Get(id string) (domain.Template, error) {
	i, ok := c.byID[id]
	if !ok {
		return domain.Template{}, domain.ErrTemplateNotFound
	}
	return c.templates[i], nil
}
