package studio

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"

	"github.com/timmy/memegenie/internal/domain"
)

type fakeGateway struct {
	mu      sync.Mutex
	suggest func(ctx context.Context, ref domain.ImageRef) ([]domain.CaptionPair, error)
	edit    func(ctx context.Context, ref domain.ImageRef, instruction string) (domain.ImageRef, error)
	calls   int
}

func (g *fakeGateway) SuggestCaptions(ctx context.Context, ref domain.ImageRef) ([]domain.CaptionPair, error) {
	g.mu.Lock()
	g.calls++
	fn := g.suggest
	g.mu.Unlock()
	if fn == nil {
		return nil, errors.New("unexpected suggest call")
	}
	return fn(ctx, ref)
}

func (g *fakeGateway) EditImage(ctx context.Context, ref domain.ImageRef, instruction string) (domain.ImageRef, error) {
	g.mu.Lock()
	g.calls++
	fn := g.edit
	g.mu.Unlock()
	if fn == nil {
		return domain.ImageRef{}, errors.New("unexpected edit call")
	}
	return fn(ctx, ref, instruction)
}

// fakeDecoder serves solid images keyed by reference string.
type fakeDecoder struct {
	images map[string]image.Image
	err    error
}

func (d *fakeDecoder) Decode(ctx context.Context, ref domain.ImageRef) (image.Image, error) {
	if d.err != nil {
		return nil, d.err
	}
	if img, ok := d.images[ref.String()]; ok {
		return img, nil
	}
	return solid(10, 10), nil
}

// fakeSurface records the last render call.
type fakeSurface struct {
	mu        sync.Mutex
	lastImage image.Image
	lastTop   string
	lastBot   string
	lastScale float64
}

func (s *fakeSurface) Render(img image.Image, top, bottom string, scale float64) image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastImage, s.lastTop, s.lastBot, s.lastScale = img, top, bottom, scale
	return image.NewRGBA(image.Rect(0, 0, int(80*scale), int(60*scale)))
}

type fakeArchive struct {
	mu    sync.Mutex
	files map[string][]byte
	err   error
}

func (a *fakeArchive) Archive(ctx context.Context, filename string, data []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return "", a.err
	}
	if a.files == nil {
		a.files = map[string][]byte{}
	}
	a.files[filename] = data
	return "https://cdn.example.com/exports/" + filename, nil
}

func solid(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{B: 255, A: 255})
		}
	}
	return img
}

func mustTemplate(url string) domain.ImageRef {
	ref, err := domain.ParseImageRef(url)
	if err != nil {
		panic(err)
	}
	return ref
}

func fivePairs() []domain.CaptionPair {
	return []domain.CaptionPair{
		{Top: "ONE", Bottom: "1"},
		{Top: "TWO", Bottom: "2"},
		{Top: "THREE", Bottom: "3"},
		{Top: "", Bottom: "ONLY BOTTOM"},
		{Top: "FIVE", Bottom: ""},
	}
}
