package api

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"soundguard/internal/audio"
	"soundguard/internal/classifier"
	"soundguard/internal/detect"
	"soundguard/internal/features"
	"soundguard/internal/model"
	"soundguard/internal/testutil"
)

// constantModel ignores its input and always produces softmax(bias).
func constantModel(t *testing.T, bias ...float64) classifier.Classifier {
	t.Helper()
	weights := make([][]float64, features.Size)
	for i := range weights {
		weights[i] = make([]float64, len(bias))
	}
	clf, err := classifier.NewDense(classifier.DenseFile{
		InputSize: features.Size,
		Layers: []classifier.LayerFile{
			{Weights: weights, Bias: bias, Activation: "softmax"},
		},
	})
	if err != nil {
		t.Fatalf("build model: %v", err)
	}
	return clf
}

type testServer struct {
	engine *gin.Engine
	opts   Options
}

func newTestServer(t *testing.T, clf classifier.Classifier, legacy bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	d, err := detect.New(&audio.Loader{}, features.New(features.DefaultConfig()), clf)
	if err != nil {
		t.Fatalf("build detector: %v", err)
	}

	root := t.TempDir()
	opts := Options{
		UploadDir:         filepath.Join(root, "uploads"),
		TempDir:           filepath.Join(root, "temp"),
		LegacyStatusCodes: legacy,
	}

	r := gin.New()
	r.Use(CORS(), BodyLimit(4<<20))
	NewHandler(d, opts, zerolog.Nop()).RegisterRoutes(r)
	return &testServer{engine: r, opts: opts}
}

func (s *testServer) do(req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func (s *testServer) assertTempEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(s.opts.TempDir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("read temp dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected temp dir to be empty, found %d entries", len(entries))
	}
}

func sineWAV(t *testing.T) []byte {
	return testutil.EncodeWAV(t, testutil.PCM16(22050), testutil.Sine(440, 22050, 1))
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t, constantModel(t, 0, 1), true)

	w, body := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected body %v", body)
	}
	m, ok := body["model"].(map[string]any)
	if !ok || m["input_size"] != float64(features.Size) || m["classes"] != float64(2) {
		t.Fatalf("unexpected model info %v", body["model"])
	}
}

func TestUploadMissingFile(t *testing.T) {
	s := newTestServer(t, constantModel(t, 0, 1), true)

	w, body := s.do(testutil.MultipartRequest(t, "/upload", "other", "a.wav", []byte("x")))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if body["error"] != "No audio file in request" {
		t.Fatalf("unexpected body %v", body)
	}

	w, _ = s.do(httptest.NewRequest(http.MethodPost, "/upload", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without a body, got %d", w.Code)
	}
}

func TestUploadStoresFile(t *testing.T) {
	s := newTestServer(t, constantModel(t, 0, 1), true)
	content := sineWAV(t)

	w, body := s.do(testutil.MultipartRequest(t, "/upload", "audio", "clip.wav", content))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if body["status"] != "success" || body["file_saved"] != "clip.wav" {
		t.Fatalf("unexpected body %v", body)
	}

	got, err := os.ReadFile(filepath.Join(s.opts.UploadDir, "clip.wav"))
	if err != nil {
		t.Fatalf("read upload: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatal("stored file differs from upload")
	}
}

func TestUploadOverwrites(t *testing.T) {
	s := newTestServer(t, constantModel(t, 0, 1), true)

	for _, content := range []string{"first", "second"} {
		w, _ := s.do(testutil.MultipartRequest(t, "/upload", "audio", "same.bin", []byte(content)))
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
	}

	got, err := os.ReadFile(filepath.Join(s.opts.UploadDir, "same.bin"))
	if err != nil {
		t.Fatalf("read upload: %v", err)
	}
	if string(got) != "second" {
		t.Fatalf("expected last write to win, got %q", got)
	}
}

func TestUploadStripsPath(t *testing.T) {
	s := newTestServer(t, constantModel(t, 0, 1), true)

	w, body := s.do(testutil.MultipartRequest(t, "/upload", "audio", "../../escape.wav", []byte("data")))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body["file_saved"] != "escape.wav" {
		t.Fatalf("unexpected body %v", body)
	}
	if _, err := os.Stat(filepath.Join(s.opts.UploadDir, "escape.wav")); err != nil {
		t.Fatalf("expected file inside upload dir: %v", err)
	}
}

func TestUploadTooLarge(t *testing.T) {
	s := newTestServer(t, constantModel(t, 0, 1), true)

	w, _ := s.do(testutil.MultipartRequest(t, "/upload", "audio", "big.wav", make([]byte, 5<<20)))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", w.Code)
	}
}

func TestPredictMissingFile(t *testing.T) {
	tests := []struct {
		name   string
		legacy bool
		code   int
	}{
		{"legacy", true, http.StatusOK},
		{"strict", false, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, constantModel(t, 0, 1), tt.legacy)

			w, body := s.do(testutil.MultipartRequest(t, "/predict", "audio", "a.wav", sineWAV(t)))
			if w.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, w.Code)
			}
			if body["error"] != "No file provided" {
				t.Fatalf("unexpected body %v", body)
			}
			if _, ok := body["prediction"]; ok {
				t.Fatal("missing file must not produce a prediction")
			}
		})
	}
}

func TestPredictDangerous(t *testing.T) {
	s := newTestServer(t, constantModel(t, 0, 1), true)

	w, body := s.do(testutil.MultipartRequest(t, "/predict", "file", "scream.wav", sineWAV(t)))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if body["prediction"] != model.LabelDangerous {
		t.Fatalf("unexpected prediction %v", body["prediction"])
	}

	want := math.E / (1 + math.E)
	if c, ok := body["confidence"].(float64); !ok || math.Abs(c-want) > 1e-9 {
		t.Fatalf("expected confidence %f, got %v", want, body["confidence"])
	}
	s.assertTempEmpty(t)
}

func TestPredictSafe(t *testing.T) {
	s := newTestServer(t, constantModel(t, 2, 0), true)

	w, body := s.do(testutil.MultipartRequest(t, "/predict", "file", "street.wav", sineWAV(t)))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body["prediction"] != model.LabelSafe {
		t.Fatalf("unexpected prediction %v", body["prediction"])
	}
	if c := body["confidence"].(float64); c < 0.5 || c > 1 {
		t.Fatalf("confidence %f out of range", c)
	}
	s.assertTempEmpty(t)
}

func TestPredictSilence(t *testing.T) {
	// Equal scores: the lowest class index wins.
	s := newTestServer(t, constantModel(t, 0, 0), true)
	silence := testutil.EncodeWAV(t, testutil.PCM16(22050), make([]float64, 22050))

	w, body := s.do(testutil.MultipartRequest(t, "/predict", "file", "quiet.wav", silence))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body["prediction"] != model.LabelSafe || body["confidence"] != 0.5 {
		t.Fatalf("unexpected body %v", body)
	}
	s.assertTempEmpty(t)
}

func TestPredictResamples(t *testing.T) {
	s := newTestServer(t, constantModel(t, 0, 1), true)
	clip := testutil.EncodeWAV(t, testutil.PCM16(44100),
		testutil.Sine(440, 44100, 1), testutil.Sine(880, 44100, 1))

	w, body := s.do(testutil.MultipartRequest(t, "/predict", "file", "stereo.wav", clip))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if body["prediction"] != model.LabelDangerous {
		t.Fatalf("unexpected body %v", body)
	}
	s.assertTempEmpty(t)
}

func TestPredictNotAudio(t *testing.T) {
	s := newTestServer(t, constantModel(t, 0, 1), true)

	w, body := s.do(testutil.MultipartRequest(t, "/predict", "file", "notes.wav", []byte("definitely not a wav file")))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if body["error"] != "internal server error" {
		t.Fatalf("unexpected body %v", body)
	}
	s.assertTempEmpty(t)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, constantModel(t, 0, 1), true)

	w, _ := s.do(httptest.NewRequest(http.MethodOptions, "/predict", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header")
	}
}
