// Package app 组装数据库、设备清单、采集执行与报告服务，供各入口程序共用。
package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/sshcollectorpro/switchreport/internal/config"
	"github.com/sshcollectorpro/switchreport/internal/database"
	"github.com/sshcollectorpro/switchreport/internal/service"
	"github.com/sshcollectorpro/switchreport/pkg/logger"
	"github.com/sshcollectorpro/switchreport/pkg/snmp"
	"github.com/sshcollectorpro/switchreport/pkg/ssh"
)

// App 运行期依赖
type App struct {
	Config    *config.Store
	DB        *gorm.DB
	Pool      *ssh.Pool
	Inventory *service.InventoryService
	Executor  *service.ExecAdapter
	Reports   *service.ReportService
}

// InitLogger 按配置初始化日志
func InitLogger(cfg *config.Config) error {
	return logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})
}

// New 打开数据库并创建各服务
func New(cfg *config.Config) (*App, error) {
	if err := database.InitSQLite(cfg.Database.SQLite); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	db := database.GetDB()

	var prober service.ModelProber
	if cfg.SNMP.Enabled {
		prober = snmp.NewProber(snmp.Config{
			Community: cfg.SNMP.Community,
			Port:      uint16(cfg.SNMP.Port),
			Timeout:   cfg.SNMP.Timeout,
			Retries:   cfg.SNMP.Retries,
		})
	}
	inventory := service.NewInventoryService(db, prober)

	pool := ssh.NewPool(&ssh.PoolConfig{
		MaxIdle:         cfg.SSH.MaxIdle,
		MaxActive:       cfg.SSH.MaxSessions,
		IdleTimeout:     cfg.SSH.IdleTimeout,
		CleanupInterval: cfg.SSH.CleanupInterval,
		SSHConfig: &ssh.Config{
			ConnectTimeout: cfg.SSH.ConnectTimeout,
			KeepAlive:      cfg.SSH.KeepAliveInterval,
		},
	})
	store := config.NewStore(cfg)
	executor := service.NewExecAdapter(inventory, pool, store)

	// archive.backend=none 时不归档
	reports := service.NewReportService(db, inventory, executor, service.NewStorageWriter(cfg), store)

	return &App{
		Config:    store,
		DB:        db,
		Pool:      pool,
		Inventory: inventory,
		Executor:  executor,
		Reports:   reports,
	}, nil
}

// Close 释放连接池与数据库
func (a *App) Close() {
	if a.Pool != nil {
		if err := a.Pool.Close(); err != nil {
			logger.Warnf("SSH pool close: %v", err)
		}
	}
	if err := database.Close(); err != nil {
		logger.Warnf("Database close: %v", err)
	}
}
