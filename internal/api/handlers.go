package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"soundguard/internal/detect"
	"soundguard/internal/storage"
	"soundguard/internal/utils"
)

// Options controls where uploads land and how missing files are reported.
type Options struct {
	UploadDir string
	TempDir   string
	// LegacyStatusCodes answers a /predict request without a file with 200,
	// as deployed clients expect.
	LegacyStatusCodes bool
}

// Handler serves the upload and prediction endpoints.
type Handler struct {
	detector *detect.Detector
	opts     Options
	log      zerolog.Logger
}

func NewHandler(detector *detect.Detector, opts Options, log zerolog.Logger) *Handler {
	return &Handler{
		detector: detector,
		opts:     opts,
		log:      log.With().Str("component", "api").Logger(),
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.healthCheck)
	r.POST("/upload", h.uploadFile)
	r.POST("/predict", h.predict)
}

// healthCheck returns server health status
func (h *Handler) healthCheck(c *gin.Context) {
	clf := h.detector.Classifier()
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "soundguard",
		"model": gin.H{
			"input_size": clf.InputSize(),
			"classes":    clf.NumClasses(),
		},
	})
}

// uploadFile stores the "audio" field under the upload directory.
func (h *Handler) uploadFile(c *gin.Context) {
	file, err := c.FormFile("audio")
	if err != nil {
		if tooLarge(err) {
			utils.Error(c, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		utils.Error(c, http.StatusBadRequest, "No audio file in request")
		return
	}

	name, err := storage.SaveUpload(h.opts.UploadDir, file)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidFilename) {
			utils.Error(c, http.StatusBadRequest, "Invalid file name")
			return
		}
		h.log.Error().Err(err).Str("filename", file.Filename).Msg("failed to save upload")
		utils.Fault(c)
		return
	}

	h.log.Info().Str("filename", name).Int64("size", file.Size).Msg("audio uploaded")
	utils.Success(c, gin.H{"file_saved": name})
}

// predict classifies the "file" field and reports whether it is dangerous.
func (h *Handler) predict(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		if tooLarge(err) {
			utils.Error(c, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		code := http.StatusBadRequest
		if h.opts.LegacyStatusCodes {
			code = http.StatusOK
		}
		utils.Error(c, code, "No file provided")
		return
	}

	scratch, err := storage.Stage(h.opts.TempDir, file)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to stage upload")
		utils.Fault(c)
		return
	}
	defer func() {
		if err := scratch.Release(); err != nil {
			h.log.Warn().Err(err).Str("path", scratch.Path).Msg("failed to remove scratch file")
		}
	}()

	pred, err := h.detector.DetectFile(c.Request.Context(), scratch.Path)
	if err != nil {
		h.log.Error().Err(err).Str("filename", file.Filename).Int64("size", scratch.Size).Msg("prediction failed")
		_ = c.Error(err)
		utils.Fault(c)
		return
	}

	h.log.Info().
		Int("class", pred.Class).
		Str("class_name", pred.ClassName).
		Floats64("scores", pred.Scores).
		Float64("confidence", pred.Confidence).
		Bool("dangerous", pred.Dangerous).
		Dur("duration", pred.Duration).
		Msg("prediction")

	c.JSON(http.StatusOK, gin.H{
		"prediction": pred.Label,
		"confidence": pred.Confidence,
	})
}

func tooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
