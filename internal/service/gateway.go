package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/timmy/memegenie/internal/domain"
	"github.com/timmy/memegenie/internal/logger"
	"github.com/timmy/memegenie/internal/prompts"
	"google.golang.org/genai"
)

const (
	opSuggestCaptions = "suggest_captions"
	opEditImage       = "edit_image"
)

var errMissingAPIKey = errors.New("gemini api key is not configured")

// contentGenerator is the slice of the genai client the gateway uses.
// *genai.Models satisfies it.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// imageFetcher resolves an ImageRef to bytes.
type imageFetcher interface {
	Fetch(ctx context.Context, ref domain.ImageRef) (*FetchedImage, error)
}

// GatewayConfig holds configuration for the Gemini gateway.
type GatewayConfig struct {
	APIKey       string
	CaptionModel string
	EditModel    string
	Timeout      time.Duration
}

// GeminiGateway talks to the Gemini API for caption suggestions and image edits.
// The client is created on first use, so a missing key only fails the calls.
type GeminiGateway struct {
	cfg    GatewayConfig
	images imageFetcher

	mu        sync.Mutex
	generator contentGenerator
}

// NewGeminiGateway creates a new gateway.
// Parameters:
//   - cfg: model names, API key and HTTP client timeout.
//   - images: loader used to inline URL references.
//
// Returns:
//   - *GeminiGateway: gateway ready for use.
func NewGeminiGateway(cfg GatewayConfig, images imageFetcher) *GeminiGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &GeminiGateway{cfg: cfg, images: images}
}

// newGeminiGatewayWith is used by tests to inject a fake generator.
func newGeminiGatewayWith(cfg GatewayConfig, images imageFetcher, gen contentGenerator) *GeminiGateway {
	g := NewGeminiGateway(cfg, images)
	g.generator = gen
	return g
}

func (g *GeminiGateway) client(ctx context.Context) (contentGenerator, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.generator != nil {
		return g.generator, nil
	}
	if strings.TrimSpace(g.cfg.APIKey) == "" {
		return nil, errMissingAPIKey
	}

	client, err := genai.NewClient(ctx, g.clientConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	g.generator = client.Models
	return g.generator, nil
}

// clientConfig bounds every model call with the HTTP client's timeout;
// callers' contexts carry no extra deadline.
func (g *GeminiGateway) clientConfig() *genai.ClientConfig {
	return &genai.ClientConfig{
		APIKey:     g.cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: g.cfg.Timeout},
	}
}

// captionSchema constrains the caption response to {captions: [{top, bottom}]}.
var captionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"captions": {
			Type:        genai.TypeArray,
			Description: prompts.CaptionListDescription,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"top":    {Type: genai.TypeString, Description: prompts.CaptionTopDescription},
					"bottom": {Type: genai.TypeString, Description: prompts.CaptionBottomDescription},
				},
				Required: []string{"top", "bottom"},
			},
		},
	},
	Required: []string{"captions"},
}

// SuggestCaptions asks the caption model for setup/punchline pairs for the image.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - ref: current working image.
//
// Returns:
//   - []domain.CaptionPair: up to MaxSuggestions pairs; empty when the reply cannot be parsed.
//   - error: *domain.GatewayError on transport, key or model failure.
func (g *GeminiGateway) SuggestCaptions(ctx context.Context, ref domain.ImageRef) ([]domain.CaptionPair, error) {
	model := g.cfg.CaptionModel
	wrap := func(err error) error {
		return &domain.GatewayError{Op: opSuggestCaptions, Model: model, Err: err}
	}

	gen, err := g.client(ctx)
	if err != nil {
		return nil, wrap(err)
	}
	imagePart, err := g.inlinePart(ctx, ref)
	if err != nil {
		return nil, wrap(err)
	}

	start := time.Now()
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{imagePart, {Text: prompts.CaptionInstruction}},
	}}
	resp, err := gen.GenerateContent(ctx, model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   captionSchema,
	})
	if err != nil {
		return nil, wrap(err)
	}
	if resp == nil {
		return nil, wrap(errors.New("empty response"))
	}

	captions, err := parseCaptions(resp.Text())
	if err != nil {
		logger.With(logger.Fields{logger.FieldModel: model}).
			Since(start).
			Warn(ctx, "Caption reply did not match the schema: %v", err)
		return []domain.CaptionPair{}, nil
	}

	logger.With(logger.Fields{logger.FieldModel: model}).
		Since(start).
		WithCount(len(captions)).
		Info(ctx, "Caption suggestions received")
	return captions, nil
}

// EditImage asks the image model to apply instruction to the image.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - ref: current working image.
//   - instruction: free-form edit request.
//
// Returns:
//   - domain.ImageRef: embedded edited image; zero when the reply holds no image.
//   - error: *domain.GatewayError on transport, key or model failure.
func (g *GeminiGateway) EditImage(ctx context.Context, ref domain.ImageRef, instruction string) (domain.ImageRef, error) {
	model := g.cfg.EditModel
	wrap := func(err error) error {
		return &domain.GatewayError{Op: opEditImage, Model: model, Err: err}
	}

	gen, err := g.client(ctx)
	if err != nil {
		return domain.ImageRef{}, wrap(err)
	}
	imagePart, err := g.inlinePart(ctx, ref)
	if err != nil {
		return domain.ImageRef{}, wrap(err)
	}

	start := time.Now()
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{imagePart, {Text: instruction}},
	}}
	resp, err := gen.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		return domain.ImageRef{}, wrap(err)
	}

	edited, ok := extractImage(resp)
	entry := logger.With(logger.Fields{logger.FieldModel: model}).Since(start)
	if !ok {
		entry.Warn(ctx, "Edit reply contained no image")
		return domain.ImageRef{}, nil
	}
	entry.Info(ctx, "Edited image received")
	return edited, nil
}

func (g *GeminiGateway) inlinePart(ctx context.Context, ref domain.ImageRef) (*genai.Part, error) {
	fetched, err := g.images.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	fetched, err = toInline(fetched)
	if err != nil {
		return nil, err
	}
	return &genai.Part{InlineData: &genai.Blob{MIMEType: fetched.MediaType, Data: fetched.Data}}, nil
}

// captionReply mirrors captionSchema. Pointer fields tell a missing or null
// value apart from an empty string.
type captionReply struct {
	Captions *[]struct {
		Top    *string `json:"top"`
		Bottom *string `json:"bottom"`
	} `json:"captions"`
}

// parseCaptions decodes the structured reply and keeps at most MaxSuggestions pairs.
// Any item without a string top and bottom rejects the whole reply.
func parseCaptions(text string) ([]domain.CaptionPair, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	var reply captionReply
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &reply); err != nil {
		return nil, err
	}
	if reply.Captions == nil {
		return nil, errors.New("reply has no captions list")
	}

	items := *reply.Captions
	captions := make([]domain.CaptionPair, 0, min(len(items), domain.MaxSuggestions))
	for i, item := range items {
		if item.Top == nil || item.Bottom == nil {
			return nil, fmt.Errorf("caption %d: top and bottom are required", i)
		}
		if len(captions) < domain.MaxSuggestions {
			captions = append(captions, domain.CaptionPair{Top: *item.Top, Bottom: *item.Bottom})
		}
	}
	return captions, nil
}

// extractImage returns the first inline image of the first candidate.
func extractImage(resp *genai.GenerateContentResponse) (domain.ImageRef, bool) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return domain.ImageRef{}, false
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		mime := strings.TrimSpace(part.InlineData.MIMEType)
		if mime == "" {
			mime = "image/png"
		}
		return domain.EmbeddedImageRef(mime, part.InlineData.Data), true
	}
	return domain.ImageRef{}, false
}
