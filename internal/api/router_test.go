package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/memegenie/internal/api/handler"
	"github.com/timmy/memegenie/internal/catalog"
	"github.com/timmy/memegenie/internal/config"
	"github.com/timmy/memegenie/internal/domain"
	"github.com/timmy/memegenie/internal/logger"
	"github.com/timmy/memegenie/internal/render"
	"github.com/timmy/memegenie/internal/studio"
)

type stubGateway struct {
	mu         sync.Mutex
	pairs      []domain.CaptionPair
	suggestErr error
	edited     domain.ImageRef
	block      chan struct{}
}

func (g *stubGateway) SuggestCaptions(ctx context.Context, ref domain.ImageRef) ([]domain.CaptionPair, error) {
	g.mu.Lock()
	block := g.block
	g.mu.Unlock()
	if block != nil {
		<-block
	}
	return g.pairs, g.suggestErr
}

func (g *stubGateway) EditImage(ctx context.Context, ref domain.ImageRef, instruction string) (domain.ImageRef, error) {
	return g.edited, nil
}

type stubImages struct {
	err error
}

func (s *stubImages) Decode(ctx context.Context, ref domain.ImageRef) (image.Image, error) {
	if s.err != nil {
		return nil, s.err
	}
	return image.NewRGBA(image.Rect(0, 0, 40, 30)), nil
}

type testServer struct {
	router  *gin.Engine
	gateway *stubGateway
	images  *stubImages
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	surface, err := render.NewRenderer(render.Options{StageWidth: 80, StageHeight: 60})
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}
	gw := &stubGateway{pairs: []domain.CaptionPair{
		{Top: "A", Bottom: "1"}, {Top: "B", Bottom: "2"}, {Top: "C", Bottom: "3"},
	}}
	images := &stubImages{}
	registry := studio.NewRegistry(studio.Options{
		Gateway: gw,
		Images:  images,
		Surface: surface,
		Clock:   func() time.Time { return time.UnixMilli(1700000000000) },
	}, time.Hour)

	log := logger.New(&logger.Config{Level: "error", Format: "json", Output: &bytes.Buffer{}, ServiceName: "test"})
	router := SetupRouter(registry, catalog.Default(), config.ServerConfig{
		Mode:        "test",
		MaxUploadMB: 1,
		CORS:        config.CORSConfig{AllowAllOrigins: true},
	}, log)

	return &testServer{router: router, gateway: gw, images: images}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeSession(t *testing.T, w *httptest.ResponseRecorder) handler.SessionView {
	t.Helper()
	var view handler.SessionView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode session: %v (body=%s)", err, w.Body.String())
	}
	return view
}

func (s *testServer) newSession(t *testing.T) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/sessions", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create session: %d %s", w.Code, w.Body.String())
	}
	return decodeSession(t, w).ID
}

func (s *testServer) withTemplate(t *testing.T) string {
	t.Helper()
	id := s.newSession(t)
	w := s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/template", gin.H{"template_id": "4"})
	if w.Code != http.StatusOK {
		t.Fatalf("select template: %d %s", w.Code, w.Body.String())
	}
	return id
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("unexpected health response %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}
}

func TestCatalogEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/templates", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("templates: %d", w.Code)
	}
	var templates struct {
		Templates []domain.Template `json:"templates"`
		Total     int               `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &templates); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if templates.Total == 0 || len(templates.Templates) != templates.Total {
		t.Errorf("unexpected catalog %+v", templates)
	}

	w = s.do(t, http.MethodGet, "/api/v1/edit-prompts", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Add a retro 80s neon filter") {
		t.Errorf("unexpected edit prompts %d %s", w.Code, w.Body.String())
	}
}

func TestSelectTemplate(t *testing.T) {
	s := newTestServer(t)
	id := s.newSession(t)

	w := s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/template", gin.H{"template_id": "nope"})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown template: expected 404, got %d", w.Code)
	}

	w = s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/template", gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty request: expected 400, got %d", w.Code)
	}

	w = s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/template", gin.H{"template_id": "4"})
	if w.Code != http.StatusOK {
		t.Fatalf("catalog template: %d %s", w.Code, w.Body.String())
	}
	tmpl, err := catalog.Default().Get("4")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	view := decodeSession(t, w)
	if view.Image == nil || view.Image.Kind != domain.ImageKindURL || view.Image.URL != tmpl.URL {
		t.Errorf("unexpected image %+v", view.Image)
	}

	w = s.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/image", nil)
	if w.Code != http.StatusFound || w.Header().Get("Location") != tmpl.URL {
		t.Errorf("expected redirect to template, got %d %s", w.Code, w.Header().Get("Location"))
	}
}

func TestSelectTemplateRejectsArbitraryURL(t *testing.T) {
	var hits int
	var mu sync.Mutex
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.Write([]byte("secret"))
	}))
	defer internal.Close()

	s := newTestServer(t)
	id := s.newSession(t)

	w := s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/template", gin.H{"url": internal.URL + "/latest/meta-data/iam"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("free url: expected 400, got %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil)
	if view := decodeSession(t, w); view.Image != nil {
		t.Errorf("free url must not select an image, got %+v", view.Image)
	}
	for _, path := range []string{"/image", "/preview.png", "/export"} {
		w = s.do(t, http.MethodGet, "/api/v1/sessions/"+id+path, nil)
		if w.Code == http.StatusFound {
			t.Errorf("%s redirected to %s", path, w.Header().Get("Location"))
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if hits != 0 {
		t.Errorf("internal server was contacted %d times", hits)
	}
}

func uploadRequest(t *testing.T, path string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if data != nil {
		part, err := mw.CreateFormFile("file", "square.png")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		_, _ = part.Write(data)
	} else {
		_ = mw.WriteField("note", "no file")
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func squarePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	img.Set(1, 1, color.White)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestUpload(t *testing.T) {
	s := newTestServer(t)
	id := s.newSession(t)
	path := "/api/v1/sessions/" + id + "/upload"

	// no file: no-op
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, uploadRequest(t, path, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("upload without file: %d %s", w.Code, w.Body.String())
	}
	if view := decodeSession(t, w); view.Image != nil {
		t.Errorf("upload without file changed the image: %+v", view.Image)
	}

	data := squarePNG(t)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, uploadRequest(t, path, data))
	if w.Code != http.StatusOK {
		t.Fatalf("upload: %d %s", w.Code, w.Body.String())
	}
	view := decodeSession(t, w)
	if view.Image == nil || view.Image.Kind != domain.ImageKindEmbedded || view.Image.MediaType != "image/png" || view.Image.Size != len(data) {
		t.Errorf("unexpected image %+v", view.Image)
	}

	w = s.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/image", nil)
	if w.Code != http.StatusOK || !bytes.Equal(w.Body.Bytes(), data) {
		t.Errorf("image endpoint returned %d (%d bytes)", w.Code, w.Body.Len())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("unexpected content type %q", ct)
	}
}

func TestUploadTooLarge(t *testing.T) {
	s := newTestServer(t)
	id := s.newSession(t)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, uploadRequest(t, "/api/v1/sessions/"+id+"/upload", make([]byte, 3<<20)))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d %s", w.Code, w.Body.String())
	}
}

func TestCaptionFlow(t *testing.T) {
	s := newTestServer(t)
	id := s.withTemplate(t)
	base := "/api/v1/sessions/" + id

	w := s.do(t, http.MethodPost, base+"/captions/suggest", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("suggest: %d %s", w.Code, w.Body.String())
	}
	if view := decodeSession(t, w); len(view.Suggestions) != 3 || view.Busy {
		t.Fatalf("unexpected suggest result %+v", view)
	}

	w = s.do(t, http.MethodPost, base+"/captions/apply", gin.H{"index": 2})
	if w.Code != http.StatusOK {
		t.Fatalf("apply: %d %s", w.Code, w.Body.String())
	}
	view := decodeSession(t, w)
	if view.TopText != "C" || view.BottomText != "3" {
		t.Errorf("expected third pair applied, got %q/%q", view.TopText, view.BottomText)
	}
	for i, sug := range view.Suggestions {
		if sug.Selected != (i == 2) {
			t.Errorf("suggestion %d selected=%v", i, sug.Selected)
		}
	}

	w = s.do(t, http.MethodPost, base+"/captions/apply", gin.H{"index": 7})
	if w.Code != http.StatusBadRequest {
		t.Errorf("out of range apply: expected 400, got %d", w.Code)
	}
	w = s.do(t, http.MethodPost, base+"/captions/apply", gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing index: expected 400, got %d", w.Code)
	}

	w = s.do(t, http.MethodPut, base+"/captions", gin.H{"top": "typed", "bottom": ""})
	if w.Code != http.StatusOK {
		t.Fatalf("set captions: %d", w.Code)
	}
	view = decodeSession(t, w)
	if view.TopText != "typed" || view.BottomText != "" {
		t.Errorf("captions not set exactly: %q/%q", view.TopText, view.BottomText)
	}
	for i, sug := range view.Suggestions {
		if sug.Selected {
			t.Errorf("suggestion %d still selected after typing", i)
		}
	}

	w = s.do(t, http.MethodPost, base+"/reset", nil)
	if view := decodeSession(t, w); view.TopText != "" || len(view.Suggestions) != 0 || view.Image == nil {
		t.Errorf("unexpected state after reset %+v", view)
	}
}

func TestSuggestFailureReturnsNotice(t *testing.T) {
	s := newTestServer(t)
	s.gateway.suggestErr = &domain.GatewayError{Op: "suggest_captions", Err: errors.New("quota")}
	id := s.withTemplate(t)

	w := s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/captions/suggest", nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	var body struct {
		Error   string              `json:"error"`
		Session handler.SessionView `json:"session"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Session.Notice != studio.NoticeSuggest || body.Session.Busy {
		t.Errorf("unexpected session after failure %+v", body.Session)
	}
	if body.Error == "" || strings.Contains(body.Error, "quota") {
		t.Errorf("expected a fixed error message, got %q", body.Error)
	}
}

func TestAsyncSuggestAndBusy(t *testing.T) {
	s := newTestServer(t)
	release := make(chan struct{})
	s.gateway.block = release
	id := s.withTemplate(t)
	base := "/api/v1/sessions/" + id

	w := s.do(t, http.MethodPost, base+"/captions/suggest?async=true", nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	if view := decodeSession(t, w); !view.Busy || view.StatusText != studio.StatusSuggest {
		t.Errorf("expected busy state, got %+v", view)
	}

	w = s.do(t, http.MethodPost, base+"/captions/suggest", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 while busy, got %d", w.Code)
	}

	close(release)
	deadline := time.Now().Add(2 * time.Second)
	for {
		view := decodeSession(t, s.do(t, http.MethodGet, base, nil))
		if !view.Busy {
			if len(view.Suggestions) != 3 {
				t.Errorf("expected suggestions after async completion, got %d", len(view.Suggestions))
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("operation did not finish")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestGuardsAreConflicts(t *testing.T) {
	s := newTestServer(t)
	id := s.newSession(t)
	base := "/api/v1/sessions/" + id

	for _, tc := range []struct {
		method, path string
		body         interface{}
	}{
		{http.MethodPost, base + "/captions/suggest", nil},
		{http.MethodPost, base + "/edit", gin.H{"instruction": "neon"}},
		{http.MethodGet, base + "/export", nil},
		{http.MethodGet, base + "/image", nil},
	} {
		if w := s.do(t, tc.method, tc.path, tc.body); w.Code != http.StatusConflict {
			t.Errorf("%s %s: expected 409, got %d", tc.method, tc.path, w.Code)
		}
	}

	id = s.withTemplate(t)
	if w := s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/edit", gin.H{"instruction": "  "}); w.Code != http.StatusConflict {
		t.Errorf("empty instruction: expected 409, got %d", w.Code)
	}
}

func TestEdit(t *testing.T) {
	s := newTestServer(t)
	s.gateway.edited = domain.EmbeddedImageRef("image/png", squarePNG(t))
	id := s.withTemplate(t)

	w := s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/edit", gin.H{"instruction": "Make it look like an oil painting"})
	if w.Code != http.StatusOK {
		t.Fatalf("edit: %d %s", w.Code, w.Body.String())
	}
	if view := decodeSession(t, w); view.Image == nil || view.Image.Kind != domain.ImageKindEmbedded {
		t.Errorf("expected edited embedded image, got %+v", view.Image)
	}
}

func TestPreviewAndExport(t *testing.T) {
	s := newTestServer(t)

	// placeholder preview before any image
	id := s.newSession(t)
	w := s.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/preview.png", nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("placeholder preview: %d", w.Code)
	}

	id = s.withTemplate(t)
	base := "/api/v1/sessions/" + id

	w = s.do(t, http.MethodGet, base+"/preview.png", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("preview: %d", w.Code)
	}
	preview, err := png.DecodeConfig(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("preview decode: %v", err)
	}

	w = s.do(t, http.MethodGet, base+"/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export: %d %s", w.Code, w.Body.String())
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="memegenie-1700000000000.png"` {
		t.Errorf("unexpected content disposition %q", cd)
	}
	exported, err := png.DecodeConfig(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("export decode: %v", err)
	}
	if exported.Width != 2*preview.Width || exported.Height != 2*preview.Height {
		t.Errorf("export %dx%d is not 2x preview %dx%d", exported.Width, exported.Height, preview.Width, preview.Height)
	}
}

func TestExportCaptureFailure(t *testing.T) {
	s := newTestServer(t)
	s.images.err = errors.New("failed to decode text/plain; charset=utf-8 image")
	id := s.withTemplate(t)

	w := s.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/export", nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "text/plain") {
		t.Errorf("capture cause leaked to the client: %s", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), studio.NoticeExport) {
		t.Errorf("expected export notice in body: %s", w.Body.String())
	}
}

func TestDeleteSession(t *testing.T) {
	s := newTestServer(t)
	id := s.newSession(t)

	if w := s.do(t, http.MethodDelete, "/api/v1/sessions/"+id, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", w.Code)
	}
	if w := s.do(t, http.MethodDelete, "/api/v1/sessions/"+id, nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sessions", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("unexpected allow origin %q", w.Header().Get("Access-Control-Allow-Origin"))
	}
	if !strings.Contains(w.Header().Get("Access-Control-Expose-Headers"), "X-Export-URL") {
		t.Error("export url header not exposed")
	}
}
