package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config 火情监控服务配置
type Config struct {
	Database struct {
		Host     string
		Port     int
		User     string
		Password string
		Database string
		SSLMode  string
		MaxConns int
		MaxIdle  int
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	// MQTT 报警推送配置（Broker 为空时禁用推送）
	MQTT struct {
		Broker   string
		ClientID string
		Username string
		Password string
		QoS      int
		Topic    string // 报警主题前缀，如 "resq/alerts"
	}

	// ML 推理后端配置
	Classifier struct {
		BaseURL   string // YOLOv8 推理服务地址
		TimeoutMS int    // 单次推理请求超时
	}

	// 摄像头帧源配置
	Camera struct {
		SnapshotURL string // IP摄像头快照地址
		TimeoutMS   int    // 单帧抓取超时
	}

	// 检测调参
	Detection struct {
		SamplingIntervalMS   int     // 采样间隔，默认 2000ms
		SustainedDetectionMS int     // 持续确认窗口，默认 3000ms
		AlertCooldownMS      int     // 报警冷却窗口，默认 30000ms
		ConfidenceThreshold  float64 // 置信度阈值（由推理后端应用），默认 0.9
	}

	// 设备注册配置
	Registry struct {
		WriteTimeoutMS   int    // 注册/写入超时，默认 15000ms
		FallbackDeviceID string // 注册失败时的兜底设备ID（为空表示注册失败即不可报警）
		DefaultLocation  struct {
			Text string
			Lat  float64
			Lng  float64
		}
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 数据库配置（从环境变量加载，带默认值）
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	port, err := getEnvInt("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}
	cfg.Database.Port = port
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "resq")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = 10
	cfg.Database.MaxIdle = 5

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "resq-firewatch")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1
	cfg.MQTT.Topic = getEnv("MQTT_ALERT_TOPIC", "resq/alerts")

	cfg.Classifier.BaseURL = getEnv("ML_BACKEND_URL", "http://localhost:8000")
	if cfg.Classifier.BaseURL == "" {
		return nil, fmt.Errorf("ML_BACKEND_URL cannot be empty")
	}
	timeout, err := getEnvInt("ML_TIMEOUT_MS", 10000)
	if err != nil {
		return nil, err
	}
	cfg.Classifier.TimeoutMS = timeout

	cfg.Camera.SnapshotURL = getEnv("CAMERA_SNAPSHOT_URL", "")
	captureTimeout, err := getEnvInt("CAMERA_TIMEOUT_MS", 5000)
	if err != nil {
		return nil, err
	}
	cfg.Camera.TimeoutMS = captureTimeout

	// 检测调参（与前端参考实现保持一致的默认值）
	sampling, err := getEnvInt("SAMPLING_INTERVAL_MS", 2000)
	if err != nil {
		return nil, err
	}
	cfg.Detection.SamplingIntervalMS = sampling
	sustained, err := getEnvInt("SUSTAINED_DETECTION_MS", 3000)
	if err != nil {
		return nil, err
	}
	cfg.Detection.SustainedDetectionMS = sustained
	cooldown, err := getEnvInt("ALERT_COOLDOWN_MS", 30000)
	if err != nil {
		return nil, err
	}
	cfg.Detection.AlertCooldownMS = cooldown
	threshold, err := getEnvFloat("CONFIDENCE_THRESHOLD", 0.9)
	if err != nil {
		return nil, err
	}
	cfg.Detection.ConfidenceThreshold = threshold

	writeTimeout, err := getEnvInt("REGISTRY_WRITE_TIMEOUT_MS", 15000)
	if err != nil {
		return nil, err
	}
	cfg.Registry.WriteTimeoutMS = writeTimeout
	cfg.Registry.FallbackDeviceID = getEnv("FALLBACK_DEVICE_ID", "")
	cfg.Registry.DefaultLocation.Text = getEnv("DEFAULT_LOCATION_TEXT", "USTP CDO Campus")
	cfg.Registry.DefaultLocation.Lat = 8.4857
	cfg.Registry.DefaultLocation.Lng = 124.6565

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q", key, value)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q", key, value)
	}
	return f, nil
}
