package studio

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/timmy/memegenie/internal/domain"
	"github.com/timmy/memegenie/internal/logger"
)

// Gateway is the AI boundary: caption suggestions and image edits.
type Gateway interface {
	SuggestCaptions(ctx context.Context, ref domain.ImageRef) ([]domain.CaptionPair, error)
	EditImage(ctx context.Context, ref domain.ImageRef, instruction string) (domain.ImageRef, error)
}

// ImageDecoder loads the pixels behind an image reference.
type ImageDecoder interface {
	Decode(ctx context.Context, ref domain.ImageRef) (image.Image, error)
}

// Surface projects an image and captions to pixels.
type Surface interface {
	Render(img image.Image, top, bottom string, scale float64) image.Image
}

// Archiver stores exported files and returns where they can be fetched.
type Archiver interface {
	Archive(ctx context.Context, filename string, data []byte) (string, error)
}

// Options wires a Studio to its collaborators. Archive may be nil.
type Options struct {
	Gateway     Gateway
	Images      ImageDecoder
	Surface     Surface
	Archive     Archiver
	ExportScale float64
	Clock       func() time.Time
}

// State is what a client sees of a studio session.
type State struct {
	Snapshot
	Lifecycle
}

// Studio is one meme-editing session: a composition plus the controller that
// serialises its AI and export operations.
type Studio struct {
	id   string
	comp *Composition
	ctrl *Controller
	opts Options
}

// New creates a studio session.
func New(id string, opts Options) *Studio {
	if opts.ExportScale <= 0 {
		opts.ExportScale = 2
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Studio{
		id:   id,
		comp: NewComposition(),
		ctrl: NewController(),
		opts: opts,
	}
}

// ID returns the session id.
func (s *Studio) ID() string { return s.id }

// State returns the composition and lifecycle state.
func (s *Studio) State() State {
	return State{Snapshot: s.comp.Snapshot(), Lifecycle: s.ctrl.State()}
}

// Busy reports whether an operation is in flight.
func (s *Studio) Busy() bool { return s.ctrl.Busy() }

// Wait blocks until the in-flight operation, if any, finishes.
func (s *Studio) Wait(ctx context.Context) error { return s.ctrl.Wait(ctx) }

func (s *Studio) logCtx(ctx context.Context, op string) context.Context {
	ctx = logger.SetSessionID(ctx, s.id)
	return logger.SetOperation(ctx, op)
}

// SelectUpload makes uploaded bytes the working image and starts over.
// It returns false, changing nothing, when data is empty.
func (s *Studio) SelectUpload(ctx context.Context, data []byte, mediaType string) bool {
	ref, ok := FromUpload(data, mediaType)
	if !ok {
		return false
	}
	s.comp.SetImage(ref)
	logger.With(logger.Fields{"media_type": mediaType}).
		WithSize(len(data)).
		Info(s.logCtx(ctx, "upload"), "Image uploaded")
	return true
}

// SelectTemplate makes a template URL the working image and starts over.
func (s *Studio) SelectTemplate(ctx context.Context, url string) error {
	ref, err := FromTemplate(url)
	if err != nil {
		return err
	}
	s.comp.SetImage(ref)
	logger.CtxInfo(s.logCtx(ctx, "template"), "Template selected: %s", url)
	return nil
}

// SetCaptions stores user-typed captions.
func (s *Studio) SetCaptions(top, bottom string) {
	s.comp.SetCaptions(top, bottom)
}

// ApplySuggestion applies suggestion i to the captions.
func (s *Studio) ApplySuggestion(i int) error {
	return s.comp.ApplySuggestion(i)
}

// Reset clears captions and suggestions.
func (s *Studio) Reset() {
	s.comp.Reset()
}

// SuggestCaptions asks the gateway for caption suggestions for the current image.
// Parameters:
//   - ctx: request context; the operation outlives its cancellation.
//
// Returns:
//   - *Flight: handle resolving when suggestions are stored or the call failed.
//   - error: domain.ErrNoImage without an image, domain.ErrBusy while another operation runs.
func (s *Studio) SuggestCaptions(ctx context.Context) (*Flight, error) {
	snap := s.comp.Snapshot()
	if snap.Image.IsZero() {
		return nil, domain.ErrNoImage
	}

	ctx = s.logCtx(ctx, "suggest_captions")
	return s.ctrl.Invoke(ctx, StatusSuggest, NoticeSuggest, func(ctx context.Context) error {
		start := time.Now()
		pairs, err := s.opts.Gateway.SuggestCaptions(ctx, snap.Image)
		if err != nil {
			logger.Since(start).Error(ctx, "Caption suggestion failed: %v", err)
			return err
		}
		if !s.comp.SetSuggestions(snap.Generation, pairs) {
			logger.CtxWarn(ctx, "Discarding %d suggestions for a replaced image", len(pairs))
			return nil
		}
		logger.Since(start).WithCount(len(pairs)).Info(ctx, "Suggestions stored")
		return nil
	})
}

// EditImage asks the gateway to edit the current image with instruction.
// A reply without an image keeps the current image.
// Parameters:
//   - ctx: request context; the operation outlives its cancellation.
//   - instruction: free-text edit request; blank is rejected.
//
// Returns:
//   - *Flight: handle resolving when the edit is applied, skipped or failed.
//   - error: domain.ErrEmptyInstruction, domain.ErrNoImage or domain.ErrBusy.
func (s *Studio) EditImage(ctx context.Context, instruction string) (*Flight, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return nil, domain.ErrEmptyInstruction
	}
	snap := s.comp.Snapshot()
	if snap.Image.IsZero() {
		return nil, domain.ErrNoImage
	}

	ctx = s.logCtx(ctx, "edit_image")
	status := fmt.Sprintf(StatusEditTemplate, instruction)
	return s.ctrl.Invoke(ctx, status, NoticeEdit, func(ctx context.Context) error {
		start := time.Now()
		edited, err := s.opts.Gateway.EditImage(ctx, snap.Image, instruction)
		if err != nil {
			logger.Since(start).Error(ctx, "Image edit failed: %v", err)
			return err
		}
		if edited.IsZero() {
			logger.CtxWarn(ctx, "Edit produced no image, keeping the current one")
			return nil
		}
		if !s.comp.ReplaceImage(snap.Generation, edited) {
			logger.CtxWarn(ctx, "Discarding edit result for a replaced image")
			return nil
		}
		logger.Since(start).Info(ctx, "Edited image applied")
		return nil
	})
}
