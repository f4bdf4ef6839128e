package config

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	SSH      SSHConfig      `mapstructure:"ssh"`
	Telnet   TelnetConfig   `mapstructure:"telnet"`
	SNMP     SNMPConfig     `mapstructure:"snmp"`
	Report   ReportConfig   `mapstructure:"report"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Mode           string        `mapstructure:"mode"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	SimulateEnable bool          `mapstructure:"simulate_enable"`
	SimulateFile   string        `mapstructure:"simulate_file"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

// SQLiteConfig SQLite配置
type SQLiteConfig struct {
	Path            string        `mapstructure:"path"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// StorageConfig 对象存储配置
type StorageConfig struct {
	Minio MinioConfig `mapstructure:"minio"`
}

// MinioConfig 报告归档用的 MinIO 配置
type MinioConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Secure    bool   `mapstructure:"secure"`
}

// ArchiveConfig 报告归档配置
type ArchiveConfig struct {
	// Backend 归档后端：local | minio | none
	Backend string `mapstructure:"backend"`
	// Prefix 顶层目录前缀
	Prefix         string `mapstructure:"prefix"`
	BaseDir        string `mapstructure:"base_dir"`
	MkdirIfMissing bool   `mapstructure:"mkdir_if_missing"`
}

// SSHConfig SSH配置
type SSHConfig struct {
	// Timeout 单条命令执行窗口；在 Load 中由 ssh.timeout.timeout_all 填充
	Timeout           time.Duration `mapstructure:"-"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	KeepAliveInterval time.Duration `mapstructure:"keep_alive_interval"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
	MaxSessions       int           `mapstructure:"max_sessions"`
	MaxIdle           int           `mapstructure:"max_idle"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
}

// TelnetConfig Telnet 采集配置
type TelnetConfig struct {
	Port    int           `mapstructure:"port"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SNMPConfig 平台探测配置（设备未登记平台时使用）
type SNMPConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Community string        `mapstructure:"community"`
	Port      int           `mapstructure:"port"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Retries   int           `mapstructure:"retries"`
}

// ReportConfig 报告生成配置
type ReportConfig struct {
	// PlatformPrefix 支持的平台前缀（Nexus 为 N）
	PlatformPrefix string `mapstructure:"platform_prefix"`
	// Schedule 定时生成报告的 cron 表达式，为空则不启用
	Schedule string `mapstructure:"schedule"`
	// Template 定时任务使用的报告模板
	Template string `mapstructure:"template"`
	// Concurrent 定时任务并发设备数
	Concurrent int `mapstructure:"concurrent"`
	// TimeoutSec 单次报告生成超时（秒）
	TimeoutSec int `mapstructure:"timeout_sec"`
	// DeviceSeed 启动时导入的设备清单 YAML
	DeviceSeed string `mapstructure:"device_seed"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("../../configs")
	}

	v.SetEnvPrefix("SWITCH_REPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// ssh.timeout 为嵌套块：timeout_all 为执行窗口，dial/auth 合并为握手超时
	if to := v.GetDuration("ssh.timeout.timeout_all"); to > 0 {
		config.SSH.Timeout = to
	}
	dialSec := v.GetInt("ssh.timeout.dial_timeout")
	authSec := v.GetInt("ssh.timeout.auth_timeout")
	if config.SSH.ConnectTimeout <= 0 && (dialSec > 0 || authSec > 0) {
		config.SSH.ConnectTimeout = time.Duration(dialSec+authSec) * time.Second
	}

	config = replaceEnvVars(config)

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 18000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 60*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)
	v.SetDefault("server.simulate_enable", false)
	v.SetDefault("server.simulate_file", "simulate/simulate.yaml")

	v.SetDefault("database.sqlite.path", "./data/switchreport.db")
	v.SetDefault("database.sqlite.conn_max_lifetime", time.Hour)

	v.SetDefault("archive.backend", "local")
	v.SetDefault("archive.prefix", "reports")
	v.SetDefault("archive.base_dir", "./data/archive")
	v.SetDefault("archive.mkdir_if_missing", true)

	v.SetDefault("ssh.timeout.timeout_all", 60*time.Second)
	v.SetDefault("ssh.timeout.dial_timeout", 2)
	v.SetDefault("ssh.timeout.auth_timeout", 5)
	v.SetDefault("ssh.keep_alive_interval", 30*time.Second)
	v.SetDefault("ssh.cleanup_interval", 30*time.Second)
	v.SetDefault("ssh.max_sessions", 32)
	v.SetDefault("ssh.max_idle", 8)
	v.SetDefault("ssh.idle_timeout", 5*time.Minute)

	v.SetDefault("telnet.port", 23)
	v.SetDefault("telnet.timeout", 60*time.Second)

	v.SetDefault("snmp.enabled", false)
	v.SetDefault("snmp.community", "public")
	v.SetDefault("snmp.port", 161)
	v.SetDefault("snmp.timeout", 5*time.Second)
	v.SetDefault("snmp.retries", 1)

	v.SetDefault("report.platform_prefix", "N")
	v.SetDefault("report.schedule", "")
	v.SetDefault("report.template", "switch_inventory")
	v.SetDefault("report.concurrent", 8)
	v.SetDefault("report.timeout_sec", 120)
	v.SetDefault("report.device_seed", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "console")
	v.SetDefault("log.file_path", "./logs/switchreport.log")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 30)
}

// replaceEnvVars 替换 ${VAR} 形式的敏感配置
func replaceEnvVars(config Config) Config {
	config.Storage.Minio.AccessKey = expandEnv(config.Storage.Minio.AccessKey)
	config.Storage.Minio.SecretKey = expandEnv(config.Storage.Minio.SecretKey)
	config.SNMP.Community = expandEnv(config.SNMP.Community)
	return config
}

func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		envVar := strings.TrimSuffix(strings.TrimPrefix(s, "${"), "}")
		if value := os.Getenv(envVar); value != "" {
			return value
		}
	}
	return s
}

// GetServerAddr 获取服务器地址
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ReportTimeout 单次报告生成超时，未配置时为 120 秒
func (c *Config) ReportTimeout() time.Duration {
	if c == nil || c.Report.TimeoutSec <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.Report.TimeoutSec) * time.Second
}

// AcceptedPlatformPrefix 支持的平台前缀，未配置时为 N
func (c *Config) AcceptedPlatformPrefix() string {
	if c == nil || strings.TrimSpace(c.Report.PlatformPrefix) == "" {
		return "N"
	}
	return c.Report.PlatformPrefix
}

// Provider 运行期配置来源，每次调用返回当前快照
type Provider interface {
	Current() *Config
}

// Current 固定配置本身即为快照
func (c *Config) Current() *Config {
	return c
}

// Store 可热更新的配置；快照只读，更新时整体替换
type Store struct {
	p atomic.Pointer[Config]
}

// NewStore 以初始配置创建
func NewStore(cfg *Config) *Store {
	s := &Store{}
	s.p.Store(cfg)
	return s
}

// Current 当前配置快照
func (s *Store) Current() *Config {
	return s.p.Load()
}

// Replace 替换配置，返回旧快照
func (s *Store) Replace(cfg *Config) *Config {
	return s.p.Swap(cfg)
}
