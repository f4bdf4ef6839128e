// Package logger 进程内共享的 logrus 实例。
//
// Init 可在配置热更新时重复调用：实例本身不替换，只调整级别、格式与输出，
// 已持有 *logrus.Entry 的调用方无需重新获取。
package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const timestampFormat = "2006-01-02 15:04:05"

var (
	log = logrus.New()

	// rotating 当前打开的滚动文件，重新配置时关闭
	mu       sync.Mutex
	rotating *lumberjack.Logger
)

// Config 日志配置
type Config struct {
	Level      string `json:"level"`
	Format     string `json:"format"`
	Output     string `json:"output"` // console, file, both
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"`
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"`
	Compress   bool   `json:"compress"`
}

// Init 按配置调整共享实例；未知级别按 info 处理
func Init(cfg Config) error {
	out, file, err := openOutput(cfg)
	if err != nil {
		return err
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(formatter(cfg.Format))
	log.SetOutput(out)

	mu.Lock()
	prev := rotating
	rotating = file
	mu.Unlock()
	if prev != nil && prev != file {
		_ = prev.Close()
	}
	return nil
}

func formatter(format string) logrus.Formatter {
	if format == "json" {
		// XML 回显中的 <> 原样输出
		return &logrus.JSONFormatter{TimestampFormat: timestampFormat, DisableHTMLEscape: true}
	}
	return &logrus.TextFormatter{FullTimestamp: true, TimestampFormat: timestampFormat}
}

func openOutput(cfg Config) (io.Writer, *lumberjack.Logger, error) {
	if cfg.Output != "file" && cfg.Output != "both" {
		return os.Stdout, nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
		return nil, nil, err
	}
	file := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	if cfg.Output == "both" {
		return io.MultiWriter(file, os.Stdout), file, nil
	}
	return file, file, nil
}

// SetOutput 替换日志输出（测试中用于静默或捕获日志）
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

// GetLogger 共享实例
func GetLogger() *logrus.Logger {
	return log
}

func Debugf(format string, args ...interface{}) {
	log.Debugf(format, args...)
}

func Info(args ...interface{}) {
	log.Info(args...)
}

func Warn(args ...interface{}) {
	log.Warn(args...)
}

func Warnf(format string, args ...interface{}) {
	log.Warnf(format, args...)
}

// Fatalf 记录后退出进程
func Fatalf(format string, args ...interface{}) {
	log.Fatalf(format, args...)
}

func WithField(key string, value interface{}) *logrus.Entry {
	return log.WithField(key, value)
}

func WithFields(fields logrus.Fields) *logrus.Entry {
	return log.WithFields(fields)
}

func WithError(err error) *logrus.Entry {
	return log.WithError(err)
}

// WithDevice 以设备序列号为上下文字段
func WithDevice(serial string) *logrus.Entry {
	return log.WithField("serial_number", serial)
}
