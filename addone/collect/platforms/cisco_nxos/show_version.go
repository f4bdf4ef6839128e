package cisco_nxos

import (
	"fmt"

	"github.com/sshcollectorpro/switchreport/addone/collect"
	"github.com/sshcollectorpro/switchreport/addone/report"
	"github.com/sshcollectorpro/switchreport/pkg/logger"
	"github.com/sshcollectorpro/switchreport/pkg/xmltree"
)

// VersionInfo show version 解析结果
type VersionInfo struct {
	HostName  string
	Model     string
	OSVersion string
	Uptime    string
}

// parseShowVersion 解析 show version | xml
func parseShowVersion(raw string) (VersionInfo, error) {
	content, err := xmltree.Parse(raw, xmltree.ReadonlyRoot)
	if err != nil {
		return VersionInfo{}, err
	}
	return VersionInfo{
		HostName:  content.Text("./host_name"),
		Model:     content.Text("./chassis_id"),
		OSVersion: osVersion(content),
		Uptime: fmt.Sprintf("%s day(s), %s hour(s), %s minute(s), %s second(s)",
			content.Text("./kern_uptm_days"),
			content.Text("./kern_uptm_hrs"),
			content.Text("./kern_uptm_mins"),
			content.Text("./kern_uptm_secs")),
	}, nil
}

// osVersion kickstart_ver_str 优先，其次 kickstart_ver
func osVersion(content *xmltree.Node) string {
	switch {
	case content.HasTag("kickstart_ver_str"):
		return content.Text("./kickstart_ver_str")
	case content.HasTag("kickstart_ver"):
		return content.Text("./kickstart_ver")
	default:
		return "N/A"
	}
}

func processShowVersion(rep *report.Report, serial string, resp collect.CommandResponse) error {
	logger.Debugf("Processing show version for %s", serial)
	summary := rep.AddSummary()
	if !resp.Succeeded() {
		summary.Set("Error", invalidCommand(resp.Command))
		return nil
	}
	info, err := parseShowVersion(resp.Response)
	if err != nil {
		return err
	}
	summary.SetText("Device Name", info.HostName)
	summary.SetText("Chassis ID", serial)
	summary.SetText("Model", info.Model)
	summary.SetText("NXOS version", info.OSVersion)
	summary.SetText("UpTime", info.Uptime)
	return nil
}
