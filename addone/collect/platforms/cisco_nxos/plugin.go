package cisco_nxos

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sshcollectorpro/switchreport/addone/collect"
	"github.com/sshcollectorpro/switchreport/addone/report"
	"github.com/sshcollectorpro/switchreport/pkg/logger"
)

const (
	// TemplateName 报告模板名，同时用作错误条目分类
	TemplateName = "switch_inventory"
	ReportTitle  = "Switch inventory"

	CmdShowVersion   = "show version | xml"
	CmdShowInventory = "show interface transceiver details | xml"
	CmdShowLicense   = "show license usage | xml"

	defaultPlatformPrefix = "N"
)

// 处理失败时 Errors 章节中的固定标签
const (
	errLabelVersion   = `Error "show version"`
	errLabelInventory = `Error "show_inventory"`
	errLabelLicense   = `Error "show license usage"`
)

var errMissingCollaborator = errors.New("platform lookup or executor not configured")

// Plugin Nexus 交换机清单报告
type Plugin struct{}

func (p *Plugin) Name() string { return TemplateName }

// Commands 按 version、inventory、license 顺序执行
func (p *Plugin) Commands() []string {
	return []string{CmdShowVersion, CmdShowInventory, CmdShowLicense}
}

// Generate 查询平台、批量执行命令并按命令分发到解析函数
func (p *Plugin) Generate(ctx context.Context, env collect.Env, serial string) *report.Response {
	resp := report.NewResponse()
	rep := report.New(ReportTitle)
	log := logger.WithDevice(serial)

	if env.Platforms == nil || env.Executor == nil {
		return setupFailed(resp, log, errMissingCollaborator)
	}

	platform, err := env.Platforms.Platform(ctx, serial)
	if err != nil {
		return setupFailed(resp, log, fmt.Errorf("platform lookup: %w", err))
	}
	log.Infof("Model name of switch [%s]: %s", serial, platform)

	prefix := env.PlatformPrefix
	if prefix == "" {
		prefix = defaultPlatformPrefix
	}
	if !strings.HasPrefix(platform, prefix) {
		msg := fmt.Sprintf("Device [%s] of non-Nexus based platforms is not supported!", platform)
		rep.AddSummary().Set("Error", report.Formatter.AddMarker(msg, report.MarkerWarning))
		log.Errorf("Report failed: %s", msg)
		resp.SetValue(rep)
		return resp
	}

	responses, err := env.Executor.Execute(ctx, serial, p.Commands()...)
	if err != nil {
		return setupFailed(resp, log, fmt.Errorf("execute commands: %w", err))
	}

	if len(responses) == 1 && responses[0].Failed() {
		addConnectivityError(rep)
		log.Warnf("Connectivity failure: %s", strings.TrimSpace(responses[0].Response))
		resp.SetSuccessRetCode()
		resp.SetValue(rep)
		return resp
	}

	eInfo := report.NewFields()
	for _, r := range responses {
		if err := r.Validate(); err != nil {
			log.WithError(err).Warn("Skipping command response")
			continue
		}
		command := strings.TrimSpace(r.Command)
		log.Info(command)
		switch {
		case strings.Contains(command, CmdShowVersion):
			if err := processShowVersion(rep, serial, r); err != nil {
				recordParseError(eInfo, log, errLabelVersion, "show version", err)
			}
		case strings.Contains(command, CmdShowInventory):
			if err := processShowInventory(rep, r); err != nil {
				recordParseError(eInfo, log, errLabelInventory, "show inventory", err)
			}
		case strings.Contains(command, CmdShowLicense):
			if err := processShowLicenseUsage(rep, r); err != nil {
				recordParseError(eInfo, log, errLabelLicense, "show license usage", err)
			}
		}
	}

	if eInfo.Len() > 0 {
		errorInfo := rep.AddSection("Errors", "error2")
		errorInfo.Append("Processing errors", eInfo, "error")
	}

	log.Info("Generating report done!")
	resp.SetSuccessRetCode()
	resp.SetValue(rep)
	return resp
}

func setupFailed(resp *report.Response, log *logrus.Entry, err error) *report.Response {
	log.WithError(err).Error("Report failed: exception while getting platform and extracting cli responses")
	resp.SetFailureRetCode()
	resp.AddErrorReport(TemplateName, "Exception while processing")
	return resp
}

func addConnectivityError(rep *report.Report) {
	rep.AddSummary().SetText("Error", "Delivery failed due to device connectivity or invalid credential issue.")
	connError := rep.AddSection("Error", "error")
	info := report.NewFields()
	info.Set("Error Status", report.Formatter.AddMarker(
		"Switch inventory report could not be generated because of connection issue with switch.", report.MarkerWarning))
	info.Set("Fix", report.Formatter.AddMarker(
		"Double check credentials to ensure correct authentication. In case of network issues perform the necessary fixes.", report.MarkerInfo))
	connError.Append("Connectivity error", info, "error")
}

func recordParseError(eInfo *report.Fields, log *logrus.Entry, label, display string, err error) {
	log.WithError(err).Errorf("Processing %q failed", display)
	eInfo.Set(label, report.Formatter.AddMarker(
		fmt.Sprintf(`There is no parsable output. Please check show command logs for output of "%s" command`, display),
		report.MarkerInfo))
}

// invalidCommand 命令状态非 success 时的提示
func invalidCommand(command string) report.Value {
	return report.Formatter.AddMarker(
		fmt.Sprintf("Command %s is invalid, no output received. Please check command logs for further information.", command),
		report.MarkerWarning)
}

func init() { collect.Register(TemplateName, &Plugin{}) }
