// Package config 统一配置管理
//
// 配置加载策略：
//  1. 从 .env 加载敏感信息（密钥、密码）和 APP_ENV
//  2. 根据 APP_ENV 加载对应的 configs/{env}.yaml 配置文件
//  3. 环境变量可覆盖 YAML 配置
//
// 使用方式：
//   - 开发环境: APP_ENV=dev (默认)
//   - 测试环境: APP_ENV=test
//   - 生产环境: APP_ENV=prod
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"eventhub/internal/objstore"
)

// Environment 环境类型
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
	EnvDevelopment Environment = "dev"
)

// YAMLConfig YAML 配置文件结构
type YAMLConfig struct {
	Server ServerConfig    `yaml:"server"`
	Mongo  MongoConfig     `yaml:"mongo"`
	Redis  RedisConfig     `yaml:"redis"`
	MinIO  objstore.Config `yaml:"minio"`
	Auth   AuthConfig      `yaml:"auth"`
	Upload UploadConfig    `yaml:"upload"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type MongoConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Name string `yaml:"name"`
}

type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	DB      int    `yaml:"db"`
}

// AuthConfig 认证配置
type AuthConfig struct {
	// TokenTTL 会话令牌有效期，与客户端 cookie 窗口一致
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// UploadConfig 图片上传配置
type UploadConfig struct {
	// MaxSizeBytes 单文件大小上限
	MaxSizeBytes int64 `yaml:"max_size_bytes"`
	// Folder 对象存储中的命名空间目录
	Folder string `yaml:"folder"`
}

// RazorpayConfig 支付网关凭证（只从环境变量读取）
type RazorpayConfig struct {
	KeyID     string
	KeySecret string
}

// Config 应用配置（最终使用的配置）
type Config struct {
	Env      Environment
	APIPort  string
	MongoURI string
	MongoDB  string
	RedisURL string // 为空表示未启用
	MinIO    objstore.Config
	Auth     AuthConfig
	Upload   UploadConfig
	Razorpay RazorpayConfig

	// JWTSecret HS256 签名密钥，从 JWT_SECRET 环境变量读取
	JWTSecret string

	// 启动时自动创建的管理员账号（可选）
	AdminEmail    string
	AdminPassword string
}

var configPaths = []string{
	"configs",
	"../configs",
	"../../configs",
	"../../../configs",
}

var envPaths = []string{
	".env",
	"../.env",
	"../../.env",
	"../../../.env",
}

// Load 加载配置
// 1. 加载 .env（敏感信息 + APP_ENV）
// 2. 根据 APP_ENV 加载 configs/{env}.yaml
// 3. 构建最终配置
func Load() *Config {
	for _, p := range envPaths {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	env := parseEnv(getEnv("APP_ENV", "dev"))
	yamlCfg := loadYAMLConfig(env)

	cfg := &Config{
		Env:           env,
		APIPort:       getEnv("API_PORT", yamlCfg.Server.Port),
		MongoURI:      buildMongoURI(yamlCfg.Mongo),
		MongoDB:       yamlCfg.Mongo.Name,
		MinIO:         yamlCfg.MinIO,
		Auth:          yamlCfg.Auth,
		Upload:        yamlCfg.Upload,
		JWTSecret:     os.Getenv("JWT_SECRET"),
		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		Razorpay: RazorpayConfig{
			KeyID:     os.Getenv("RAZORPAY_KEY_ID"),
			KeySecret: os.Getenv("RAZORPAY_KEY_SECRET"),
		},
	}

	if uri := os.Getenv("MONGO_URI"); uri != "" {
		cfg.MongoURI = uri
	}
	if yamlCfg.Redis.Enabled {
		cfg.RedisURL = fmt.Sprintf("redis://%s:%d/%d",
			yamlCfg.Redis.Host, yamlCfg.Redis.Port, yamlCfg.Redis.DB)
	}

	cfg.MinIO.AccessKey = os.Getenv("MINIO_ACCESS_KEY")
	cfg.MinIO.SecretKey = os.Getenv("MINIO_SECRET_KEY")

	return cfg
}

// loadYAMLConfig 加载 YAML 配置文件
// 加载顺序：默认值 → common.yaml → {env}.yaml
func loadYAMLConfig(env Environment) *YAMLConfig {
	cfg := &YAMLConfig{
		Server: ServerConfig{Port: "8080"},
		Mongo:  MongoConfig{Host: "localhost", Port: 27017, Name: "eventhub"},
		Redis:  RedisConfig{Enabled: false, Host: "localhost", Port: 6379, DB: 0},
		MinIO:  objstore.Config{Endpoint: "localhost:9000", Bucket: "eventhub"},
		Auth:   AuthConfig{TokenTTL: 7 * 24 * time.Hour},
		Upload: UploadConfig{MaxSizeBytes: 5 * 1024 * 1024, Folder: "events"},
	}

	for _, base := range configPaths {
		path := filepath.Join(base, "common.yaml")
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, cfg)
			break
		}
	}

	filename := fmt.Sprintf("%s.yaml", env)
	for _, base := range configPaths {
		path := filepath.Join(base, filename)
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, cfg)
			break
		}
	}

	return cfg
}

// buildMongoURI 构建 MongoDB 连接字符串
// 凭证从 MONGO_USER / MONGO_PASSWORD 环境变量读取
func buildMongoURI(m MongoConfig) string {
	user := os.Getenv("MONGO_USER")
	pass := os.Getenv("MONGO_PASSWORD")
	if user != "" && pass != "" {
		return fmt.Sprintf("mongodb://%s:%s@%s:%d", user, pass, m.Host, m.Port)
	}
	return fmt.Sprintf("mongodb://%s:%d", m.Host, m.Port)
}

func parseEnv(env string) Environment {
	switch strings.ToLower(env) {
	case "test":
		return EnvTest
	case "prod", "production":
		return EnvProduction
	default:
		return EnvDevelopment
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// IsTest 是否为测试环境
func (c *Config) IsTest() bool {
	return c.Env == EnvTest
}

// String 返回配置摘要（隐藏凭证）
func (c *Config) String() string {
	return fmt.Sprintf("Config{Env: %s, Mongo: %s/%s, Redis: %s, MinIO: %s}",
		c.Env, maskPassword(c.MongoURI), c.MongoDB, c.RedisURL, c.MinIO.Endpoint)
}

// maskPassword 隐藏连接串中的密码
func maskPassword(url string) string {
	re := regexp.MustCompile(`(://[^:]+:)([^@]+)(@)`)
	return re.ReplaceAllString(url, "${1}***${3}")
}
