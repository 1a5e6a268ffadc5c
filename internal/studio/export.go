package studio

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"time"

	"github.com/timmy/memegenie/internal/domain"
	"github.com/timmy/memegenie/internal/logger"
)

// ExportResult is a rendered meme file.
type ExportResult struct {
	Filename string
	Data     []byte
	Width    int
	Height   int
	URL      string // archive URL, empty when archiving is off or failed
}

// ExportFilename names an export taken at t.
func ExportFilename(t time.Time) string {
	return fmt.Sprintf("memegenie-%d.png", t.UnixMilli())
}

// Export renders the composition at the export scale and encodes it as PNG.
// Parameters:
//   - ctx: request context; the export outlives its cancellation.
//
// Returns:
//   - *ExportResult: PNG bytes, filename and optional archive URL.
//   - error: domain.ErrNoImage, domain.ErrBusy, or *domain.CaptureError when the image cannot be loaded.
func (s *Studio) Export(ctx context.Context) (*ExportResult, error) {
	snap := s.comp.Snapshot()
	if snap.Image.IsZero() {
		return nil, domain.ErrNoImage
	}

	ctx = s.logCtx(ctx, "export")
	var result *ExportResult
	err := s.ctrl.Run(ctx, StatusExport, NoticeExport, func(ctx context.Context) error {
		start := time.Now()
		pic, err := s.capture(ctx, snap, s.opts.ExportScale)
		if err != nil {
			logger.CtxError(ctx, "Export failed: %v", err)
			return err
		}
		data, err := encodePNG(pic)
		if err != nil {
			return err
		}

		b := pic.Bounds()
		result = &ExportResult{
			Filename: ExportFilename(s.opts.Clock()),
			Data:     data,
			Width:    b.Dx(),
			Height:   b.Dy(),
		}

		if s.opts.Archive != nil {
			url, err := s.opts.Archive.Archive(ctx, result.Filename, data)
			if err != nil {
				logger.CtxWarn(ctx, "Export archive failed: %v", err)
			} else {
				result.URL = url
			}
		}

		logger.With(logger.Fields{"filename": result.Filename}).
			Since(start).
			WithSize(len(data)).
			Info(ctx, "Export completed (%dx%d)", result.Width, result.Height)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Preview renders the composition at scale 1, or the upload placeholder when
// there is no image. It does not go through the controller.
func (s *Studio) Preview(ctx context.Context) ([]byte, error) {
	snap := s.comp.Snapshot()
	if snap.Image.IsZero() {
		return encodePNG(s.opts.Surface.Render(nil, "", "", 1))
	}
	pic, err := s.capture(s.logCtx(ctx, "preview"), snap, 1)
	if err != nil {
		return nil, err
	}
	return encodePNG(pic)
}

func (s *Studio) capture(ctx context.Context, snap Snapshot, scale float64) (image.Image, error) {
	img, err := s.opts.Images.Decode(ctx, snap.Image)
	if err != nil {
		return nil, &domain.CaptureError{Err: err}
	}
	return s.opts.Surface.Render(img, snap.Top, snap.Bottom, scale), nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}
