package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sportclassifier/internal/domain"
	"sportclassifier/internal/service"
	"sportclassifier/internal/validator"
)

// multipartOverhead is the allowance for boundaries and part headers on top of the image itself.
const multipartOverhead = 1 << 20

type Predictor interface {
	Predict(ctx context.Context, img *domain.UploadedImage) (*domain.Prediction, error)
}

type RecordLister interface {
	Recent(ctx context.Context, limit int) ([]domain.PredictionRecord, error)
}

type ModelStatus interface {
	Ready() bool
}

type PredictionObserver interface {
	ObservePrediction(status, reason string)
}

type Handler struct {
	predictor Predictor
	validator *validator.UploadValidator
	records   RecordLister
	model     ModelStatus
	observer  PredictionObserver
	log       *zap.Logger
}

func NewHandler(
	predictor Predictor,
	validator *validator.UploadValidator,
	records RecordLister,
	model ModelStatus,
	observer PredictionObserver,
	log *zap.Logger,
) *Handler {
	return &Handler{
		predictor: predictor,
		validator: validator,
		records:   records,
		model:     model,
		observer:  observer,
		log:       log,
	}
}

func (h *Handler) Predict(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.validator.MaxSize()+multipartOverhead)

	form, err := c.MultipartForm()
	if err != nil {
		h.respond(c, nil, formError(err))
		return
	}

	img, err := h.validator.Validate(form)
	if err != nil {
		h.respond(c, nil, err)
		return
	}
	defer img.Close()

	pred, err := h.predictor.Predict(c.Request.Context(), img)
	h.respond(c, pred, err)
}

func formError(err error) error {
	if validator.IsBodyTooLarge(err) {
		return validator.TooLarge(err)
	}
	return &domain.ValidationError{Reason: domain.ReasonMissingImage, Err: err}
}

func (h *Handler) respond(c *gin.Context, pred *domain.Prediction, err error) {
	code, body := service.Compose(pred, err)
	if err != nil {
		fields := []zap.Field{zap.Int("status", code), zap.Error(err)}
		if code >= http.StatusInternalServerError {
			h.log.Error("Prediction request failed", fields...)
		} else {
			h.log.Info("Prediction request rejected", fields...)
		}
	}

	h.observer.ObservePrediction(body.Status, body.Error)
	c.JSON(code, body)
}

func (h *Handler) ListPredictions(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	records, err := h.records.Recent(c.Request.Context(), limit)
	if err != nil {
		h.log.Error("Failed to list predictions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list predictions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"predictions": records})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	model := "unavailable"
	if h.model.Ready() {
		model = "ready"
	}
	c.JSON(http.StatusOK, gin.H{"status": "OK", "model": model})
}

func (h *Handler) GetUI(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{})
}
