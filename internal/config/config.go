package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	TransferCreated string `mapstructure:"transfer_created"`
	BatchCreated    string `mapstructure:"batch_created"`
}

// AuthConfig 管理端鉴权配置
// 会话/登录由管理端网关负责，本服务只校验静态令牌和角色
type AuthConfig struct {
	Admins []AdminCredential `mapstructure:"admins"`
}

type AdminCredential struct {
	ID    int64  `mapstructure:"id"`
	Token string `mapstructure:"token"`
	Role  string `mapstructure:"role"`
}

type BusinessConfig struct {
	TransferRunIntervalMinutes int `mapstructure:"transfer_run_interval_minutes"` // 周结算任务的巡检间隔
	MaxBatchTransfers          int `mapstructure:"max_batch_transfers"`           // 单批次转账数上限，0 表示不限制
	MaxRetryCount              int `mapstructure:"max_retry_count"`               // 发件箱消息最大重试次数
}

var GlobalConfig *Config

// LoadConfig 加载配置文件
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	GlobalConfig = config
	return config
}
