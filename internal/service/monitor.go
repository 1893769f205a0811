package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"resq-firewatch/internal/camera"
	"resq-firewatch/internal/classifier"
	"resq-firewatch/internal/config"
	"resq-firewatch/internal/detector"
	"resq-firewatch/internal/engine"
	"resq-firewatch/internal/notifier"
	"resq-firewatch/internal/registry"
	"resq-firewatch/internal/repository"
	"resq-firewatch/internal/sink"

	"resq-firewatch/pkg/database"
	"resq-firewatch/pkg/mqttclient"
	"resq-firewatch/pkg/redisclient"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// MonitorService 火情监控服务（整合各层）
type MonitorService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqttclient.Client // 可选，Broker 未配置时为 nil
	logger      *zap.Logger

	// 各层组件
	deviceRepo    *repository.DeviceRepository
	incidentRepo  *repository.IncidentRepository
	alertRepo     *repository.AlertRepository
	identity      *registry.Identity
	cooldownCache *registry.RedisCooldownCache
	alertSink     *sink.RegistrySink
	clfClient     *classifier.Client
	frameSource   camera.FrameSource

	// 会话期组件（Start 时创建）
	deviceID string
	engine   *engine.Engine
	loop     *detector.Loop
}

// NewMonitorService 创建监控服务
func NewMonitorService(cfg *config.Config, logger *zap.Logger) (*MonitorService, error) {
	// 1. 连接数据库
	db, err := database.NewPostgresDB(buildDSN(cfg), cfg.Database.MaxConns, cfg.Database.MaxIdle)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 2. 连接 Redis
	redisClient := redisclient.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err := redisclient.Ping(context.Background(), redisClient); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 3. 连接 MQTT（可选）
	var mqttClient *mqttclient.Client
	if cfg.MQTT.Broker != "" {
		mqttClient, err = mqttclient.New(mqttclient.Options{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		})
		if err != nil {
			db.Close()
			redisClient.Close()
			return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
	}

	// 4. 创建 Repository 层
	deviceRepo := repository.NewDeviceRepository(db, logger)
	incidentRepo := repository.NewIncidentRepository(db, logger)
	alertRepo := repository.NewAlertRepository(db, logger)

	// 5. 创建注册/缓存层
	location := registry.DefaultLocation{
		Text: cfg.Registry.DefaultLocation.Text,
		Lat:  cfg.Registry.DefaultLocation.Lat,
		Lng:  cfg.Registry.DefaultLocation.Lng,
	}
	deviceCache := registry.NewRedisDeviceCache(redisClient, logger)
	cooldown := time.Duration(cfg.Detection.AlertCooldownMS) * time.Millisecond
	cooldownCache := registry.NewRedisCooldownCache(redisClient, cooldown, logger)
	identity := registry.NewIdentity(deviceRepo, deviceCache, location, logger)

	// 6. 创建报警持久化 sink（MQTT 推送可选）
	var alertNotifier sink.Notifier
	if mqttClient != nil {
		alertNotifier = notifier.NewMQTTNotifier(mqttClient, cfg.MQTT.Topic, byte(cfg.MQTT.QoS), logger)
	}
	alertSink := sink.NewRegistrySink(deviceRepo, incidentRepo, alertRepo, alertNotifier, location, logger)

	// 7. 创建推理客户端与帧源
	clfClient := classifier.NewClient(
		cfg.Classifier.BaseURL,
		time.Duration(cfg.Classifier.TimeoutMS)*time.Millisecond,
		logger,
	)
	frameSource := camera.NewSnapshotSource(
		cfg.Camera.SnapshotURL,
		time.Duration(cfg.Camera.TimeoutMS)*time.Millisecond,
		logger,
	)

	return &MonitorService{
		config:        cfg,
		db:            db,
		redisClient:   redisClient,
		mqttClient:    mqttClient,
		logger:        logger,
		deviceRepo:    deviceRepo,
		incidentRepo:  incidentRepo,
		alertRepo:     alertRepo,
		identity:      identity,
		cooldownCache: cooldownCache,
		alertSink:     alertSink,
		clfClient:     clfClient,
		frameSource:   frameSource,
	}, nil
}

// Start 启动监控会话（阻塞直到 ctx 取消）
func (s *MonitorService) Start(ctx context.Context) error {
	s.logger.Info("Starting fire monitor service")

	// 1. 检查推理后端健康状态（失败不阻塞启动：后端可能稍后上线，循环会继续重试）
	if modelLoaded, err := s.clfClient.Health(ctx); err != nil {
		s.logger.Warn("Detection backend health check failed, will keep sampling",
			zap.Error(err),
		)
	} else if !modelLoaded {
		s.logger.Warn("Detection backend is up but model is not loaded")
	}

	// 2. 解析设备身份
	deviceID, err := s.resolveDeviceID(ctx)
	if err != nil {
		return err
	}
	s.deviceID = deviceID

	// 3. 创建决策引擎，用持久化的冷却时间初始化
	writeTimeout := time.Duration(s.config.Registry.WriteTimeoutMS) * time.Millisecond
	tuning := engine.Tuning{
		SustainedDetection: time.Duration(s.config.Detection.SustainedDetectionMS) * time.Millisecond,
		AlertCooldown:      time.Duration(s.config.Detection.AlertCooldownMS) * time.Millisecond,
	}
	s.engine = engine.New(deviceID, s.alertSink, s.cooldownCache, tuning, writeTimeout, s.logger)

	if lastAlert, err := s.cooldownCache.GetLastAlert(ctx, deviceID); err == nil {
		s.engine.SeedLastAlert(lastAlert)
		s.logger.Info("Seeded alert cooldown from previous session",
			zap.Time("last_alert_at", lastAlert),
		)
	} else if !errors.Is(err, registry.ErrCacheMiss) {
		// 缓存故障按无冷却处理
		s.logger.Warn("Failed to read persisted cooldown, starting without it",
			zap.Error(err),
		)
	}

	// 4. 启动检测循环
	interval := time.Duration(s.config.Detection.SamplingIntervalMS) * time.Millisecond
	s.loop = detector.NewLoop(s.frameSource, s.clfClient, s.engine, interval, s.logger)

	s.logger.Info("Fire monitor session started",
		zap.String("device_id", deviceID),
		zap.Duration("sampling_interval", interval),
		zap.Float64("confidence_threshold", s.config.Detection.ConfidenceThreshold),
	)

	return s.loop.Run(ctx)
}

// resolveDeviceID 解析会话的设备身份
// 注册失败且配置了兜底设备ID时降级使用，否则失败向上传播
func (s *MonitorService) resolveDeviceID(ctx context.Context) (string, error) {
	device, err := s.identity.Resolve(ctx)
	if err == nil {
		return device.ID, nil
	}

	if s.config.Registry.FallbackDeviceID != "" {
		s.logger.Error("Device registration failed, using fallback device id",
			zap.String("fallback_device_id", s.config.Registry.FallbackDeviceID),
			zap.Error(err),
		)
		return s.config.Registry.FallbackDeviceID, nil
	}

	return "", fmt.Errorf("failed to resolve device identity: %w", err)
}

// Stop 停止服务：结束会话、设备置离线、关闭连接
func (s *MonitorService) Stop() error {
	s.logger.Info("Stopping fire monitor service")

	if s.engine != nil {
		s.engine.Close()
	}

	// 置离线要在连接关闭前完成
	if s.deviceID != "" {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.identity.Release(shutdownCtx, s.deviceID)
	}

	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("Failed to close redis",
			zap.Error(err),
		)
	}

	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database",
			zap.Error(err),
		)
	}

	return nil
}

// buildDSN 构建数据库连接字符串
func buildDSN(cfg *config.Config) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Database,
		cfg.Database.SSLMode,
	)
}
