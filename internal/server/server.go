package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"sportclassifier/internal/config"
	"sportclassifier/internal/domain"
	"sportclassifier/internal/handler"
	"sportclassifier/internal/inference"
	"sportclassifier/internal/inference/opencv"
	"sportclassifier/internal/metrics"
	"sportclassifier/internal/repository"
	"sportclassifier/internal/repository/sqlite"
	"sportclassifier/internal/service"
	"sportclassifier/internal/staging"
	"sportclassifier/internal/validator"
)

type Server struct {
	httpServer *http.Server
	model      *inference.Handle
	db         *sqlite.DB
	cfg        *config.Config
	log        *zap.Logger
}

func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)

	fs := afero.NewOsFs()
	m := metrics.New()

	model := inference.NewHandle(opencv.Loader(cfg.Model, log), log)
	// A failed load is retried on the next prediction request.
	_ = model.Init(ctx)
	adapter := inference.NewAdapter(model, domain.NewLabelSet(cfg.Model.Labels), fs, log,
		inference.WithMaxPixels(cfg.Model.MaxPixels))

	s3Repo, err := repository.NewS3Repository(ctx, &cfg.S3, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 repository: %w", err)
	}
	bucketCtx, cancel := context.WithTimeout(ctx, cfg.S3.Timeout)
	if err := s3Repo.EnsureBucket(bucketCtx); err != nil {
		log.Warn("Bucket check failed, uploads will be reported as failed until storage is reachable",
			zap.String("bucket", cfg.S3.BucketName),
			zap.Error(err))
	}
	cancel()

	db, err := sqlite.New(ctx, cfg.Records)
	if err != nil {
		model.Close()
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}
	records := sqlite.NewPredictionRepository(db)

	predictions := service.NewPredictionService(
		staging.NewManager(fs, cfg.App.ScratchDir, log),
		adapter,
		repository.NewObjectStorage(s3Repo, fs, cfg.S3.MaxRetries, log),
		records,
		m,
		service.Options{
			Folder:         cfg.S3.Folder,
			StorageTimeout: cfg.S3.Timeout,
			RecordTimeout:  cfg.Records.Timeout,
		},
		log,
	)

	h := handler.NewHandler(predictions, validator.NewUploadValidator(cfg.App.MaxUploadSize), records, model, m, log)
	router := NewRouter(h, m.Handler(log), cfg.App, log)

	server := &Server{
		httpServer: &http.Server{
			Addr:           cfg.Server.Host + ":" + cfg.Server.Port,
			Handler:        router,
			ReadTimeout:    cfg.Server.ReadTimeout,
			WriteTimeout:   cfg.Server.WriteTimeout,
			MaxHeaderBytes: 1 << 20, // 1 MB
		},
		model: model,
		db:    db,
		cfg:   cfg,
		log:   log,
	}

	log.Info("Server created successfully",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
		zap.Bool("model_ready", model.Ready()))

	return server, nil
}

// NewRouter registers every route on a fresh engine. Templates and static assets
// are skipped when their configured locations are empty or missing.
func NewRouter(h *handler.Handler, metricsHandler http.Handler, app config.AppConfig, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), handler.RequestLogger(log))

	if app.TemplatesGlob != "" {
		if matches, _ := filepath.Glob(app.TemplatesGlob); len(matches) > 0 {
			router.LoadHTMLGlob(app.TemplatesGlob)
			router.GET("/", h.GetUI)
		} else {
			log.Warn("No templates found, landing page disabled", zap.String("glob", app.TemplatesGlob))
		}
	}

	router.GET("/health", h.HealthCheck)
	router.POST("/predict", h.Predict)
	router.GET("/metrics", gin.WrapH(metricsHandler))

	api := router.Group("/api")
	{
		api.GET("/predictions", h.ListPredictions)
	}

	if app.StaticDir != "" {
		router.Static("/static", app.StaticDir)
	}

	return router
}

func (s *Server) Run() error {
	s.log.Info("Server is running",
		zap.String("host", s.cfg.Server.Host),
		zap.String("port", s.cfg.Server.Port),
		zap.String("address", s.httpServer.Addr))

	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and then releases the model and the record store.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down server")
	err := s.httpServer.Shutdown(ctx)
	return errors.Join(err, s.model.Close(), s.db.Close())
}
