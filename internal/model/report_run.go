package model

import (
	"time"
)

// 报告运行状态
const (
	RunStatusSuccess = "success"
	RunStatusFailure = "failure"
	// RunStatusError 插件之外的错误（归档、超时等）
	RunStatusError = "error"
)

// 触发来源
const (
	TriggerAPI      = "api"
	TriggerSchedule = "schedule"
	TriggerCLI      = "cli"
)

// ReportRun 一次报告生成的记录
type ReportRun struct {
	ID           string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Template     string    `json:"template" gorm:"type:varchar(64);not null;index"`
	SerialNumber string    `json:"serial_number" gorm:"type:varchar(64);not null;index"`
	Trigger      string    `json:"trigger" gorm:"type:varchar(16);not null"`
	Status       string    `json:"status" gorm:"type:varchar(16);not null"`
	RetCode      string    `json:"ret_code" gorm:"type:varchar(16)"`
	ErrorReports string    `json:"error_reports" gorm:"type:text"`
	ErrorMsg     string    `json:"error_msg" gorm:"type:text"`
	JSONURI      string    `json:"json_uri" gorm:"type:varchar(512)"`
	TextURI      string    `json:"text_uri" gorm:"type:varchar(512)"`
	Checksum     string    `json:"checksum" gorm:"type:varchar(64)"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Duration     int64     `json:"duration"` // 毫秒
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 表名
func (ReportRun) TableName() string {
	return "report_runs"
}
