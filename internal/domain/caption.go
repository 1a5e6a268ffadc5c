package domain

// CaptionPair is one top/bottom text combination for the meme overlay.
// Either side may be empty.
type CaptionPair struct {
	Top    string `json:"top"`
	Bottom string `json:"bottom"`
}

// MaxSuggestions is how many caption pairs the gateway asks for and keeps.
const MaxSuggestions = 5

// Template is one entry in the template catalog.
type Template struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}
