package data

import (
	"fmt"

	"github.com/lk2023060901/asr-studio-backend/internal/conf"
	filedata "github.com/lk2023060901/asr-studio-backend/internal/file/data"
	"github.com/lk2023060901/asr-studio-backend/internal/pkg/database"
	"github.com/lk2023060901/asr-studio-backend/internal/pkg/logger"
	"github.com/lk2023060901/asr-studio-backend/internal/pkg/minio"
	"github.com/lk2023060901/asr-studio-backend/internal/pkg/redis"
	"go.uber.org/zap"
)

// Data 基础设施句柄集合
type Data struct {
	DB          *database.DB
	RedisClient *redis.Client
	MinIOClient *minio.Client
	Logger      *logger.Logger
}

// NewData 初始化数据层，返回清理函数
func NewData(config *conf.Config, log *logger.Logger) (*Data, func(), error) {
	dbConfig := database.DefaultConfig()
	dbConfig.Host = config.Database.Host
	dbConfig.Port = config.Database.Port
	dbConfig.User = config.Database.User
	dbConfig.Password = config.Database.Password
	dbConfig.DBName = config.Database.DBName
	dbConfig.SSLMode = config.Database.SSLMode

	db, err := database.New(dbConfig, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init database: %w", err)
	}

	if err := db.AutoMigrate(&filedata.FilePO{}, &filedata.VersionPO{}); err != nil {
		return nil, nil, fmt.Errorf("failed to auto migrate: %w", err)
	}

	redisClient, err := redis.New(&redis.Config{
		Host:     config.Redis.Host,
		Port:     config.Redis.Port,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	}, log)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to init redis: %w", err)
	}

	minioClient, err := minio.New(&minio.Config{
		Endpoint:  config.MinIO.Endpoint,
		AccessKey: config.MinIO.AccessKey,
		SecretKey: config.MinIO.SecretKey,
		UseSSL:    config.MinIO.UseSSL,
		Bucket:    config.MinIO.Bucket,
	}, log)
	if err != nil {
		redisClient.Close()
		db.Close()
		return nil, nil, fmt.Errorf("failed to init minio: %w", err)
	}

	d := &Data{
		DB:          db,
		RedisClient: redisClient,
		MinIOClient: minioClient,
		Logger:      log,
	}

	cleanup := func() {
		log.Info("cleaning up data resources")

		if err := redisClient.Close(); err != nil {
			log.Warn("failed to close redis", zap.Error(err))
		}
		if err := db.Close(); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
	}

	return d, cleanup, nil
}
