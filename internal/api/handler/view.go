package handler

import (
	"github.com/timmy/memegenie/internal/domain"
	"github.com/timmy/memegenie/internal/studio"
)

// ImageView describes the working image without inlining its bytes.
type ImageView struct {
	Kind      domain.ImageKind `json:"kind"`
	URL       string           `json:"url,omitempty"`
	MediaType string           `json:"media_type,omitempty"`
	Size      int              `json:"size,omitempty"`
}

// SuggestionView is one caption suggestion as shown in the picker.
type SuggestionView struct {
	Top      string `json:"top"`
	Bottom   string `json:"bottom"`
	Selected bool   `json:"selected"`
}

// SessionView is the JSON state of a studio session.
type SessionView struct {
	ID          string           `json:"id"`
	Image       *ImageView       `json:"image"`
	TopText     string           `json:"top_text"`
	BottomText  string           `json:"bottom_text"`
	Suggestions []SuggestionView `json:"suggestions"`
	Busy        bool             `json:"busy"`
	StatusText  string           `json:"status_text,omitempty"`
	Notice      string           `json:"notice,omitempty"`
}

func newSessionView(s *studio.Studio) SessionView {
	state := s.State()

	view := SessionView{
		ID:          s.ID(),
		Image:       newImageView(state.Image),
		TopText:     state.Top,
		BottomText:  state.Bottom,
		Suggestions: make([]SuggestionView, len(state.Suggestions)),
		Busy:        state.Busy,
		StatusText:  state.StatusText,
		Notice:      state.Notice,
	}
	for i, p := range state.Suggestions {
		view.Suggestions[i] = SuggestionView{Top: p.Top, Bottom: p.Bottom, Selected: state.Selected(i)}
	}
	return view
}

func newImageView(ref domain.ImageRef) *ImageView {
	if ref.IsZero() {
		return nil
	}
	if ref.Kind() == domain.ImageKindURL {
		return &ImageView{Kind: domain.ImageKindURL, URL: ref.URL()}
	}
	view := &ImageView{Kind: domain.ImageKindEmbedded}
	if mediaType, size, err := ref.EmbeddedInfo(); err == nil {
		view.MediaType = mediaType
		view.Size = size
	}
	return view
}
