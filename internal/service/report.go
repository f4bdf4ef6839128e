package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/sshcollectorpro/switchreport/addone/collect"
	"github.com/sshcollectorpro/switchreport/addone/report"
	"github.com/sshcollectorpro/switchreport/internal/config"
	"github.com/sshcollectorpro/switchreport/internal/database"
	"github.com/sshcollectorpro/switchreport/internal/model"
	"github.com/sshcollectorpro/switchreport/pkg/logger"
	"github.com/sshcollectorpro/switchreport/pkg/render"
)

// ErrRunNotFound 报告运行记录不存在
var ErrRunNotFound = errors.New("report run not found")

// 归档文件名
const (
	archiveJSONName = "report.json"
	archiveTextName = "report.txt"
)

// ReportInventory 报告服务依赖的设备清单能力
type ReportInventory interface {
	Get(ctx context.Context, serial string) (*model.Device, error)
	Platform(ctx context.Context, serial string) (string, error)
	MarkReported(ctx context.Context, serial string, at time.Time) error
}

// RunResult 一次报告生成的结果
type RunResult struct {
	Run      *model.ReportRun `json:"run"`
	Response *report.Response `json:"report"`
	Archive  []StoredObject   `json:"archive,omitempty"`
	// Text 纯文本渲染结果
	Text string `json:"-"`
}

// ReportService 报告生成、归档与运行记录
type ReportService struct {
	db        *gorm.DB
	inventory ReportInventory
	executor  collect.Executor
	writer    StorageWriter
	cfg       config.Provider
}

// NewReportService 创建报告服务；writer 为 nil 时不归档
func NewReportService(db *gorm.DB, inventory ReportInventory, executor collect.Executor, writer StorageWriter, cfg config.Provider) *ReportService {
	return &ReportService{db: db, inventory: inventory, executor: executor, writer: writer, cfg: cfg}
}

// Run 为设备生成指定模板的报告，trigger 为触发来源
// 设备不存在时返回 ErrDeviceNotFound，插件层面的失败体现在 RunResult 中
func (s *ReportService) Run(ctx context.Context, template, serial, trigger string) (*RunResult, error) {
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return nil, fmt.Errorf("%w: serial_number is required", ErrInvalidDevice)
	}
	if _, err := s.inventory.Get(ctx, serial); err != nil {
		return nil, err
	}
	// 单次运行内使用同一份配置快照
	cfg := s.cfg.Current()
	if template == "" {
		template = cfg.Report.Template
	}

	run := &model.ReportRun{
		ID:           uuid.NewString(),
		Template:     template,
		SerialNumber: serial,
		Trigger:      trigger,
		StartedAt:    time.Now(),
	}
	log := logger.WithDevice(serial).WithFields(logrus.Fields{"template": template, "run_id": run.ID})
	log.Info("Report run started")

	plugin := collect.Get(template)
	genCtx, cancel := context.WithTimeout(ctx, cfg.ReportTimeout())
	resp := plugin.Generate(genCtx, collect.Env{
		Platforms:      s.inventory,
		Executor:       s.executor,
		PlatformPrefix: cfg.AcceptedPlatformPrefix(),
	}, serial)
	timedOut := errors.Is(genCtx.Err(), context.DeadlineExceeded)
	cancel()

	if resp == nil {
		resp = report.NewResponse()
		resp.SetFailureRetCode()
		resp.AddErrorReport(template, "Report plugin returned no response")
	}
	run.RetCode = string(resp.RetCode)
	run.Status = model.RunStatusSuccess
	if !resp.OK() {
		run.Status = model.RunStatusFailure
	}
	if timedOut {
		run.Status = model.RunStatusError
		run.ErrorMsg = fmt.Sprintf("report generation exceeded %s", cfg.ReportTimeout())
	}
	if len(resp.ErrorReports) > 0 {
		if bs, err := json.Marshal(resp.ErrorReports); err == nil {
			run.ErrorReports = string(bs)
		}
	}

	result := &RunResult{Run: run, Response: resp, Text: render.TextString(resp)}
	if err := s.archive(ctx, log, result); err != nil {
		run.Status = model.RunStatusError
		run.ErrorMsg = joinMsg(run.ErrorMsg, err.Error())
	}

	run.FinishedAt = time.Now()
	run.Duration = run.FinishedAt.Sub(run.StartedAt).Milliseconds()
	if err := database.WithRetry(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		return tx.Create(run).Error
	}, 3, 0); err != nil {
		log.WithError(err).Error("Failed to record report run")
		return result, fmt.Errorf("failed to record report run: %w", err)
	}

	if resp.OK() && resp.Value != nil {
		if err := s.inventory.MarkReported(ctx, serial, run.FinishedAt); err != nil {
			log.WithError(err).Warn("Failed to update last report time")
		}
	}
	log.WithFields(logrus.Fields{"status": run.Status, "duration_ms": run.Duration}).Info("Report run finished")
	return result, nil
}

// archive 写入 JSON 与文本两份归档；MinIO 回退本地不视为失败
func (s *ReportService) archive(ctx context.Context, log *logrus.Entry, result *RunResult) error {
	if s.writer == nil {
		return nil
	}
	data, err := render.JSON(result.Response)
	if err != nil {
		return fmt.Errorf("render report json: %w", err)
	}
	meta := ArchiveMeta{SerialNumber: result.Run.SerialNumber, RunID: result.Run.ID, StartedAt: result.Run.StartedAt}

	jsonObj, err := s.writer.Write(ctx, meta, archiveJSONName, data, "application/json")
	if err != nil && !errors.Is(err, ErrArchiveFallback) {
		return fmt.Errorf("archive %s: %w", archiveJSONName, err)
	}
	if err != nil {
		log.WithError(err).Warn("Report archived locally")
	}
	result.Run.JSONURI = jsonObj.URI
	result.Run.Checksum = jsonObj.Checksum
	result.Archive = append(result.Archive, jsonObj)

	textObj, err := s.writer.Write(ctx, meta, archiveTextName, []byte(result.Text), "text/plain; charset=utf-8")
	if err != nil && !errors.Is(err, ErrArchiveFallback) {
		return fmt.Errorf("archive %s: %w", archiveTextName, err)
	}
	result.Run.TextURI = textObj.URI
	result.Archive = append(result.Archive, textObj)
	return nil
}

func joinMsg(a, b string) string {
	if a == "" {
		return b
	}
	return a + "; " + b
}

// GetRun 查询运行记录
func (s *ReportService) GetRun(ctx context.Context, id string) (*model.ReportRun, error) {
	var run model.ReportRun
	err := s.db.WithContext(ctx).First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns 按开始时间倒序列出运行记录，serial 为空时不过滤
func (s *ReportService) ListRuns(ctx context.Context, serial string, limit int) ([]model.ReportRun, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := s.db.WithContext(ctx).Order("started_at DESC").Limit(limit)
	if serial = strings.TrimSpace(serial); serial != "" {
		q = q.Where("serial_number = ?", serial)
	}
	var runs []model.ReportRun
	if err := q.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
