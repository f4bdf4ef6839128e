package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/sshcollectorpro/switchreport/api/handler"
	"github.com/sshcollectorpro/switchreport/api/router"
	"github.com/sshcollectorpro/switchreport/internal/app"
	"github.com/sshcollectorpro/switchreport/internal/config"
	"github.com/sshcollectorpro/switchreport/internal/service"
	"github.com/sshcollectorpro/switchreport/pkg/logger"
	"github.com/sshcollectorpro/switchreport/simulate"
)

const configPath = "configs/config.yaml"

func main() {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := app.InitLogger(cfg); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.WithField("version", "1.0.0").Info("Starting Switch Report Server")

	a, err := app.New(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	ctx := context.Background()
	if cfg.Report.DeviceSeed != "" {
		n, err := a.Inventory.LoadDeviceSeed(ctx, cfg.Report.DeviceSeed)
		if err != nil {
			logger.WithError(err).Warn("Device seed import failed")
		} else {
			logger.WithField("devices", n).Info("Device seed imported")
		}
	}

	// 启动模拟设备（可选）
	sim := &simulator{}
	if cfg.Server.SimulateEnable {
		sim.start(cfg.Server.SimulateFile)
	}
	defer sim.stop()

	scheduler := service.NewScheduler(a.Inventory, a.Reports, cfg.Report)
	if err := scheduler.Start(cfg.Report.Schedule); err != nil {
		logger.WithError(err).Error("Report scheduler not started")
	}

	r := router.SetupRouter(cfg.Server.Mode, router.Handlers{
		Health:  handler.NewHealthHandler(a.DB, a.Pool, scheduler),
		Devices: handler.NewDeviceHandler(a.Inventory),
		Reports: handler.NewReportHandler(a.Reports),
	})

	server := &http.Server{
		Addr:           cfg.GetServerAddr(),
		Handler:        r,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	go func() {
		logger.WithFields(logrus.Fields{"addr": server.Addr, "mode": cfg.Server.Mode}).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 配置文件监听与热更新；运行中的报告持有旧快照，新配置只对之后的调用生效
	go watchFile(configPath, func() {
		newCfg, err := config.Load(configPath)
		if err != nil {
			logger.WithError(err).Warn("Config reload failed")
			return
		}
		a.Config.Replace(newCfg)
		_ = app.InitLogger(newCfg)
		if err := scheduler.UpdateConfig(newCfg.Report); err != nil {
			logger.WithError(err).Warn("Report schedule not updated")
		}
		logger.Info("Config reloaded")

		// 模拟开关变化时动态启停
		switch {
		case newCfg.Server.SimulateEnable && !sim.running():
			sim.start(newCfg.Server.SimulateFile)
		case !newCfg.Server.SimulateEnable && sim.running():
			sim.stop()
		}
	})

	// simulate.yaml 变化时重启模拟设备
	go watchFile(cfg.Server.SimulateFile, func() {
		current := a.Config.Current()
		if !current.Server.SimulateEnable {
			logger.Info("Simulate: reload ignored, simulate disabled")
			return
		}
		sim.stop()
		sim.start(current.Server.SimulateFile)
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	scheduler.Stop(shutdownCtx)
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	} else {
		logger.Info("Server shutdown complete")
	}
}

// simulator 可热启停的模拟设备
type simulator struct {
	mu  sync.Mutex
	srv *simulate.Server
}

func (s *simulator) running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.srv != nil
}

func (s *simulator) start(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return
	}
	sc, err := simulate.LoadConfig(path)
	if err != nil {
		logger.WithError(err).Warn("Simulate: failed to load config")
		return
	}
	srv, err := simulate.Start(sc)
	if err != nil {
		logger.WithError(err).Warn("Simulate: failed to start")
		return
	}
	s.srv = srv
	logger.WithFields(logrus.Fields{"addr": srv.Addr().String(), "devices": len(sc.Devices)}).Info("Simulate: started")
}

func (s *simulator) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		s.srv.Stop()
		s.srv = nil
	}
}

// watchFile 监听文件变化，300ms 去抖后回调
func watchFile(path string, onChange func()) {
	if _, err := os.Stat(path); err != nil {
		logger.WithField("path", path).Debug("Watch skipped, file not found")
		return
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.WithError(err).Warn("File watch init failed")
		return
	}
	defer watcher.Close()
	if err := watcher.Add(path); err != nil {
		logger.WithError(err).WithField("path", path).Warn("File watch add failed")
		return
	}

	var debounce *time.Timer
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(300*time.Millisecond, onChange)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.WithError(err).Warn("File watch error")
		}
	}
}
