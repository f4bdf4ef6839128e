package collect

import (
	"context"

	"github.com/sshcollectorpro/switchreport/addone/report"
)

// ReportPlugin 报告模板插件接口
type ReportPlugin interface {
	// Name 模板名称，同时作为错误条目的分类（如 switch_inventory）
	Name() string
	// Commands 模板需要在设备上执行的命令
	Commands() []string
	// Generate 为指定设备生成报告
	Generate(ctx context.Context, env Env, serial string) *report.Response
}

// DefaultPlugin 未注册模板时的兜底插件
type DefaultPlugin struct {
	// Requested 调用方请求的模板名称
	Requested string
}

func (p *DefaultPlugin) Name() string { return "default" }

// Commands 默认插件不执行命令
func (p *DefaultPlugin) Commands() []string { return []string{} }

func (p *DefaultPlugin) Generate(ctx context.Context, env Env, serial string) *report.Response {
	resp := report.NewResponse()
	resp.SetFailureRetCode()
	category := p.Requested
	if category == "" {
		category = p.Name()
	}
	resp.AddErrorReport(category, "Report template not found")
	return resp
}
