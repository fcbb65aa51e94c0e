package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           int
	Password       string
	LogDirectory   string
	MaxUploadBytes int64

	// Detection
	ModelPath           string
	DetectorWorkers     int // Liczba instancji modelu w puli
	InputSize           int
	ConfidenceThreshold float64
	IOUThreshold        float64
	TargetClassID       int
	TargetLabel         string
	DetectTimeout       time.Duration

	// Object storage (S3-compatible primary backend)
	StorageEndpoint string
	StorageRegion   string
	AccessKeyID     string
	SecretAccessKey string
	StorageBucket   string
	StoragePrefix   string
	UploadTimeout   time.Duration
	FallbackDir     string // Secondary backend, used when the upload fails
	JPEGQuality     int
	DatabasePath    string

	// MQTT
	MQTTEnabled    bool
	MQTTBrokerHost string
	MQTTBrokerPort int
	MQTTTopic      string
	MQTTClientID   string
	MQTTUsername   string
	MQTTPassword   string
	MQTTQoS        int
	DeviceAllow    []string

	// Streaming
	CaptureInterval   time.Duration
	StreamReadTimeout time.Duration
	SnapshotDir       string
}

// Load reads an optional .env file and builds the configuration from the environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:           getEnvAsInt("PORT", 5000),
		Password:       getEnv("PASSWORD", "motorwatch"),
		LogDirectory:   getEnv("LOG_DIR", filepath.Join(".", "logs")),
		MaxUploadBytes: getEnvAsInt64("MAX_UPLOAD_BYTES", 10<<20),

		ModelPath:           getEnv("MODEL_PATH", filepath.Join(".", "models", "yolov11.onnx")),
		DetectorWorkers:     getEnvAsInt("DETECTOR_WORKERS", 2),
		InputSize:           getEnvAsInt("INPUT_SIZE", 640),
		ConfidenceThreshold: getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.25),
		IOUThreshold:        getEnvAsFloat("IOU_THRESHOLD", 0.45),
		TargetClassID:       getEnvAsInt("TARGET_CLASS_ID", 3), // COCO: motorcycle
		TargetLabel:         getEnv("TARGET_LABEL", "motorcycle"),
		DetectTimeout:       getEnvAsDuration("DETECT_TIMEOUT", 10*time.Second),

		StorageEndpoint: getEnv("STORAGE_ENDPOINT", ""),
		StorageRegion:   getEnv("STORAGE_REGION", "us-east-1"),
		AccessKeyID:     getEnv("ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("SECRET_ACCESS_KEY", ""),
		StorageBucket:   getEnv("STORAGE_BUCKET", "motor-images"),
		StoragePrefix:   getEnv("STORAGE_PREFIX", ""),
		UploadTimeout:   getEnvAsDuration("UPLOAD_TIMEOUT", 15*time.Second),
		FallbackDir:     getEnv("FALLBACK_DIR", filepath.Join(".", "fallback")),
		JPEGQuality:     getEnvAsInt("JPEG_QUALITY", 90),
		DatabasePath:    getEnv("DB_PATH", filepath.Join(".", "data", "artifacts.db")),

		MQTTEnabled:    getEnvAsBool("MQTT_ENABLED", false),
		MQTTBrokerHost: getEnv("MQTT_BROKER_HOST", "localhost"),
		MQTTBrokerPort: getEnvAsInt("MQTT_BROKER_PORT", 1883),
		MQTTTopic:      getEnv("MQTT_TOPIC", "motorwatch/frames"),
		MQTTClientID:   getEnv("MQTT_CLIENT_ID", "motorwatch-server"),
		MQTTUsername:   getEnv("MQTT_USERNAME", ""),
		MQTTPassword:   getEnv("MQTT_PASSWORD", ""),
		MQTTQoS:        getEnvAsInt("MQTT_QOS", 0),
		DeviceAllow:    getEnvAsList("DEVICE_ALLOW_LIST"),

		CaptureInterval:   getEnvAsDuration("CAPTURE_INTERVAL", 5*time.Second),
		StreamReadTimeout: getEnvAsDuration("STREAM_READ_TIMEOUT", 5*time.Second),
		SnapshotDir:       getEnv("SNAPSHOT_DIR", ""),
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be within [0,1], got %v", c.ConfidenceThreshold)
	}
	if c.IOUThreshold < 0 || c.IOUThreshold > 1 {
		return fmt.Errorf("IOU_THRESHOLD must be within [0,1], got %v", c.IOUThreshold)
	}
	if c.TargetClassID < 0 {
		return fmt.Errorf("TARGET_CLASS_ID must be >= 0, got %d", c.TargetClassID)
	}
	if c.DetectorWorkers <= 0 {
		return fmt.Errorf("DETECTOR_WORKERS must be > 0, got %d", c.DetectorWorkers)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("JPEG_QUALITY must be within [1,100], got %d", c.JPEGQuality)
	}
	if c.MQTTQoS < 0 || c.MQTTQoS > 2 {
		return fmt.Errorf("MQTT_QOS must be 0, 1 or 2, got %d", c.MQTTQoS)
	}
	return nil
}

// DeviceAllowed reports whether a device id may submit frames over MQTT.
// An empty allow-list accepts every device.
func (c *Config) DeviceAllowed(deviceID string) bool {
	if len(c.DeviceAllow) == 0 {
		return true
	}
	for _, id := range c.DeviceAllow {
		if id == deviceID {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("5s") or plain seconds ("5").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
