package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sshcollectorpro/switchreport/internal/config"
	"github.com/sshcollectorpro/switchreport/internal/model"
	"github.com/sshcollectorpro/switchreport/pkg/logger"
)

// DeviceLister 列出全部设备
type DeviceLister interface {
	List(ctx context.Context) ([]model.Device, error)
}

// ReportRunner 为单台设备生成报告
type ReportRunner interface {
	Run(ctx context.Context, template, serial, trigger string) (*RunResult, error)
}

// BatchSummary 一轮定时报告的统计
type BatchSummary struct {
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// Scheduler 按 cron 表达式为清单中全部设备生成报告
type Scheduler struct {
	devices DeviceLister
	runner  ReportRunner

	mu         sync.Mutex
	cron       *cron.Cron
	entry      cron.EntryID
	spec       string
	template   string
	concurrent int
	log        *logrus.Entry
}

// NewScheduler 创建调度器
func NewScheduler(devices DeviceLister, runner ReportRunner, cfg config.ReportConfig) *Scheduler {
	log := logger.WithField("component", "scheduler")
	s := &Scheduler{
		devices: devices,
		runner:  runner,
		log:     log,
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger{log}),
			cron.SkipIfStillRunning(cronLogger{log}),
		)),
	}
	s.apply(cfg)
	return s
}

func (s *Scheduler) apply(cfg config.ReportConfig) {
	s.template = cfg.Template
	s.concurrent = cfg.Concurrent
	if s.concurrent <= 0 {
		s.concurrent = 1
	}
}

// Start 注册定时任务并启动；表达式为空时不启用
func (s *Scheduler) Start(spec string) error {
	if err := s.Reschedule(spec); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Reschedule 替换定时表达式，配置热更新时调用
func (s *Scheduler) Reschedule(spec string) error {
	spec = strings.TrimSpace(spec)

	s.mu.Lock()
	defer s.mu.Unlock()
	if spec == s.spec && (spec == "" || s.entry != 0) {
		return nil
	}
	var schedule cron.Schedule
	if spec != "" {
		// 表达式非法时保留原有任务
		parsed, err := cron.ParseStandard(spec)
		if err != nil {
			return fmt.Errorf("invalid report schedule %q: %w", spec, err)
		}
		schedule = parsed
	}
	if s.entry != 0 {
		s.cron.Remove(s.entry)
		s.entry = 0
	}
	s.spec = spec
	if spec == "" {
		s.log.Info("Report schedule disabled")
		return nil
	}
	s.entry = s.cron.Schedule(schedule, cron.FuncJob(func() {
		if _, err := s.RunOnce(context.Background()); err != nil {
			s.log.WithError(err).Error("Scheduled report batch failed")
		}
	}))
	s.log.WithField("schedule", spec).Info("Report schedule registered")
	return nil
}

// UpdateConfig 热更新模板、并发与定时表达式
func (s *Scheduler) UpdateConfig(cfg config.ReportConfig) error {
	s.mu.Lock()
	s.apply(cfg)
	s.mu.Unlock()
	return s.Reschedule(cfg.Schedule)
}

// Next 下次触发时间，未启用时为零值
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	id := s.entry
	s.mu.Unlock()
	if id == 0 {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

// Stop 停止调度并等待正在运行的批次结束
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("Scheduler stop timed out; batch still running")
	}
}

// RunOnce 为全部设备生成一轮报告，单台失败不影响其他设备
func (s *Scheduler) RunOnce(ctx context.Context) (BatchSummary, error) {
	start := time.Now()
	devices, err := s.devices.List(ctx)
	if err != nil {
		return BatchSummary{}, fmt.Errorf("list devices: %w", err)
	}

	s.mu.Lock()
	template, limit := s.template, s.concurrent
	s.mu.Unlock()

	var succeeded, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, dev := range devices {
		serial := dev.SerialNumber
		g.Go(func() error {
			result, err := s.runner.Run(gctx, template, serial, model.TriggerSchedule)
			if err != nil || result == nil || result.Run.Status != model.RunStatusSuccess {
				failed.Add(1)
				if err != nil {
					s.log.WithError(err).WithField("serial", serial).Warn("Scheduled report failed")
				}
				return nil
			}
			succeeded.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	summary := BatchSummary{
		Total:     len(devices),
		Succeeded: int(succeeded.Load()),
		Failed:    int(failed.Load()),
		Duration:  time.Since(start),
	}
	s.log.WithFields(logrus.Fields{
		"total":     summary.Total,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"duration":  summary.Duration,
	}).Info("Report batch finished")
	return summary, ctx.Err()
}

// cronLogger 将 cron 日志写入 logrus
type cronLogger struct {
	entry *logrus.Entry
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(kvFields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.entry.WithError(err).WithFields(kvFields(keysAndValues)).Error(msg)
}

func kvFields(kv []interface{}) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
