package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	asrbiz "github.com/lk2023060901/asr-studio-backend/internal/asr/biz"
	asrdata "github.com/lk2023060901/asr-studio-backend/internal/asr/data"
	"github.com/lk2023060901/asr-studio-backend/internal/asr/engine"
	asrqueue "github.com/lk2023060901/asr-studio-backend/internal/asr/queue"
	asrservice "github.com/lk2023060901/asr-studio-backend/internal/asr/service"
	"github.com/lk2023060901/asr-studio-backend/internal/conf"
	"github.com/lk2023060901/asr-studio-backend/internal/data"
	filebiz "github.com/lk2023060901/asr-studio-backend/internal/file/biz"
	filedata "github.com/lk2023060901/asr-studio-backend/internal/file/data"
	fileservice "github.com/lk2023060901/asr-studio-backend/internal/file/service"
	"github.com/lk2023060901/asr-studio-backend/internal/pkg/logger"
	"github.com/lk2023060901/asr-studio-backend/internal/pkg/ws"
	"github.com/lk2023060901/asr-studio-backend/internal/server"
	"go.uber.org/zap"
)

var (
	configFile = flag.String("config", "config.yaml", "config file path")
)

func main() {
	flag.Parse()

	// Load configuration
	config, err := conf.LoadConfig(*configFile)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger with config
	logConfig := &logger.Config{
		Level:            config.Log.Level,
		Format:           config.Log.Format,
		Output:           config.Log.Output,
		EnableCaller:     config.Log.EnableCaller,
		EnableStacktrace: config.Log.EnableStacktrace,
		File: logger.FileConfig{
			Filename:   config.Log.File.Filename,
			MaxSize:    config.Log.File.MaxSize,
			MaxAge:     config.Log.File.MaxAge,
			MaxBackups: config.Log.File.MaxBackups,
			Compress:   config.Log.File.Compress,
		},
	}

	log, err := logger.New(logConfig)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	// Initialize global logger
	if err := logger.InitGlobal(logConfig); err != nil {
		log.Fatal("failed to initialize global logger", zap.Error(err))
	}

	log.Info("config loaded successfully")

	// Initialize data layer
	d, cleanup, err := data.NewData(config, log)
	if err != nil {
		log.Fatal("failed to initialize data layer", zap.Error(err))
	}
	defer cleanup()

	// Initialize repositories
	fileRepo := filedata.NewFileRepo(d.DB, log)
	versionRepo := filedata.NewVersionRepo(d.DB, log)
	blobStorage := filedata.NewBlobStorage(d.MinIOClient, log)
	taskStore := asrdata.NewTaskStore(d.RedisClient, log)
	taskQueue := asrdata.NewTaskQueue(d.RedisClient, log)

	// Initialize recognition engine client
	engineClient, err := engine.New(&engine.Config{
		BaseURL:         config.Engine.BaseURL,
		APIKey:          config.Engine.APIKey,
		Timeout:         config.Engine.Timeout,
		PollInterval:    config.Engine.PollInterval,
		PollTimeout:     config.Engine.PollTimeout,
		DefaultLanguage: config.Engine.DefaultLanguage,
	}, log)
	if err != nil {
		log.Fatal("failed to initialize engine client", zap.Error(err))
	}

	hub := ws.NewHub()

	// Initialize use cases
	fileUseCase := filebiz.NewFileUseCase(fileRepo, versionRepo, blobStorage, log)
	cache := fileUseCase.Cache()
	versionUseCase := filebiz.NewVersionUseCase(fileRepo, versionRepo, cache, log)
	trashUseCase := filebiz.NewTrashUseCase(fileRepo, versionRepo, blobStorage, taskStore, cache, log)

	var source asrbiz.ProgressSource
	if config.Progress.Mode == "poll" {
		source = asrbiz.NewPollingSource(taskStore, fileRepo, &asrbiz.PollingConfig{
			Interval:    config.Progress.Interval,
			MaxInterval: config.Progress.MaxInterval,
			MaxRetries:  config.Progress.MaxRetries,
		}, log)
	} else {
		source = asrbiz.NewPushSource(hub, log)
	}

	tracker := asrbiz.NewTracker(fileRepo, cache, taskStore, taskQueue, source, log)

	uploader := filebiz.NewUploader(fileRepo, versionRepo, blobStorage, tracker, hub, cache, &filebiz.UploadConfig{
		MaxSize:       config.Upload.MaxSize,
		BaseTimeout:   config.Upload.BaseTimeout,
		MaxTimeout:    config.Upload.MaxTimeout,
		MinThroughput: config.Upload.MinThroughput,
	}, log)

	// Initialize recognition worker
	worker := asrqueue.NewWorker(
		taskQueue,
		taskStore,
		fileRepo,
		versionRepo,
		cache,
		engineClient,
		hub,
		log.Logger,
		config.Worker.Count,
	)
	worker.AudioURL = func(objectKey string) string {
		scheme := "http"
		if config.MinIO.UseSSL {
			scheme = "https"
		}
		return fmt.Sprintf("%s://%s/%s/%s", scheme, config.MinIO.Endpoint, config.MinIO.Bucket, objectKey)
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if err := worker.Start(workerCtx); err != nil {
		log.Fatal("failed to start recognition worker", zap.Error(err))
	}

	// Initialize services
	fileService := fileservice.NewFileService(fileUseCase, uploader, blobStorage, log.Logger)
	versionService := fileservice.NewVersionService(versionUseCase, log.Logger)
	trashService := fileservice.NewTrashService(trashUseCase, log.Logger)
	exportService := fileservice.NewExportService(fileUseCase, log.Logger)
	asrService := asrservice.NewASRService(tracker, log.Logger)

	// Initialize HTTP server
	httpServer := server.NewHTTPServer(
		config,
		log.Logger,
		fileService,
		versionService,
		trashService,
		exportService,
		asrService,
	)

	go func() {
		if err := httpServer.Start(); err != nil {
			log.Fatal("failed to start HTTP server", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// 先取消 worker 上下文中断在途的引擎轮询，Stop 才能在有限时间内返回
	workerCancel()
	worker.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Stop(ctx); err != nil {
		log.Error("failed to stop HTTP server gracefully", zap.Error(err))
	}

	log.Info("server stopped")
}
