package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	asrservice "github.com/lk2023060901/asr-studio-backend/internal/asr/service"
	fileservice "github.com/lk2023060901/asr-studio-backend/internal/file/service"
	"github.com/lk2023060901/asr-studio-backend/internal/conf"
	"go.uber.org/zap"
)

type HTTPServer struct {
	server *http.Server
	logger *zap.Logger
}

func NewHTTPServer(
	config *conf.Config,
	logger *zap.Logger,
	fileService *fileservice.FileService,
	versionService *fileservice.VersionService,
	trashService *fileservice.TrashService,
	exportService *fileservice.ExportService,
	asrService *asrservice.ASRService,
) *HTTPServer {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// API routes
	api := router.Group("/api/v1")

	files := api.Group("/files")
	{
		files.GET("", fileService.ListFiles)
		files.POST("/upload", fileService.UploadFile)
		files.POST("/batch-delete", fileService.BatchDeleteFiles)
		files.GET("/:id", fileService.GetFile)
		files.PUT("/:id", fileService.UpdateFile)
		files.DELETE("/:id", fileService.DeleteFile)
		files.PUT("/:id/rename", fileService.RenameFile)
		files.GET("/:id/audio", fileService.DownloadAudio)
		files.GET("/:id/transcript", exportService.ExportFile)

		files.POST("/:id/versions", versionService.SaveVersion)
		files.GET("/:id/versions", versionService.ListVersions)
		files.GET("/:id/versions/:versionId", versionService.GetVersion)
		files.POST("/:id/versions/:versionId/restore", versionService.RestoreVersion)
	}

	trash := api.Group("/trash")
	{
		trash.GET("", trashService.ListTrash)
		trash.DELETE("", trashService.ClearTrash)
		trash.POST("/batch-restore", trashService.BatchRestore)
		trash.POST("/batch-delete", trashService.BatchPurge)
		trash.POST("/:id/restore", trashService.RestoreFile)
		trash.DELETE("/:id", trashService.PurgeFile)
	}

	asr := api.Group("/asr")
	{
		asr.POST("/recognize/:id", asrService.StartRecognition)
		asr.GET("/progress/:id", asrService.GetProgress)
		asr.GET("/languages", asrService.GetLanguages)
	}

	api.GET("/ws/asr/progress/:id", asrService.WatchProgress)

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)

	return &HTTPServer{
		server: &http.Server{
			Addr:    addr,
			Handler: router,
		},
		logger: logger,
	}
}

func (s *HTTPServer) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}

func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}
