package cisco_nxos

import (
	"github.com/sshcollectorpro/switchreport/addone/collect"
	"github.com/sshcollectorpro/switchreport/addone/report"
	"github.com/sshcollectorpro/switchreport/pkg/logger"
	"github.com/sshcollectorpro/switchreport/pkg/xmltree"
)

// LicenseSchema show license usage 的表结构变体
type LicenseSchema int

const (
	LicenseSchemaNone LicenseSchema = iota
	// LicenseSchemaAll 传统许可，通用平台（TABLE_show_lic_usage）
	LicenseSchemaAll
	// LicenseSchemaN5K 传统许可，N5K（TABLE_lic_usage）
	LicenseSchemaN5K
	// LicenseSchemaSmart 智能许可（TABLE_show_smart_lic_usage）
	LicenseSchemaSmart
)

// LicenseType 报告中展示的许可类型
func (s LicenseSchema) LicenseType() string {
	switch s {
	case LicenseSchemaAll, LicenseSchemaN5K:
		return "Traditional"
	case LicenseSchemaSmart:
		return "Smart"
	default:
		return ""
	}
}

// License 单个特性的许可使用情况
type License struct {
	Feature    string
	Installed  string
	Count      string
	Status     string
	ExpiryDate string
	Comments   string
	Version    string
}

// LicenseUsage show license usage 解析结果
type LicenseUsage struct {
	Schema   LicenseSchema
	Licenses []License
}

// detectLicenseSchema 按固定优先级探测表结构
func detectLicenseSchema(content *xmltree.Node) LicenseSchema {
	switch {
	case content.HasTag("TABLE_show_lic_usage"):
		return LicenseSchemaAll
	case content.HasTag("TABLE_lic_usage"):
		return LicenseSchemaN5K
	case content.HasTag("TABLE_show_smart_lic_usage"):
		return LicenseSchemaSmart
	default:
		return LicenseSchemaNone
	}
}

// parseLicenseUsage 解析 show license usage | xml
func parseLicenseUsage(raw string) (LicenseUsage, error) {
	content, err := xmltree.Parse(raw, xmltree.ReadonlyRoot)
	if err != nil {
		return LicenseUsage{}, err
	}
	usage := LicenseUsage{Schema: detectLicenseSchema(content)}
	switch usage.Schema {
	case LicenseSchemaAll:
		for _, row := range content.Rows("./TABLE_show_lic_usage/ROW_show_lic_usage") {
			usage.Licenses = append(usage.Licenses, License{
				Feature:    row.Text("./feature_name"),
				Installed:  row.Text("./lic_installed"),
				Count:      row.Text("./count"),
				Status:     row.Text("./status"),
				ExpiryDate: row.TextOr("./expiry_date", "-"),
				Comments:   row.Text("./comments"),
			})
		}
	case LicenseSchemaN5K:
		for _, row := range content.Rows("./TABLE_lic_usage/ROW_lic_usage") {
			usage.Licenses = append(usage.Licenses, License{
				Feature:    row.Text("./feature_name"),
				Installed:  row.Text("./install_status"),
				Count:      row.Text("./lic_count"),
				Status:     row.Text("./status"),
				ExpiryDate: row.TextOr("./expiry", "-"),
				Comments:   row.Text("./comments"),
			})
		}
	case LicenseSchemaSmart:
		for _, row := range content.Rows("./TABLE_show_smart_lic_usage/ROW_show_smart_lic_usage") {
			usage.Licenses = append(usage.Licenses, License{
				Feature: row.Text("./smart_feature_name"),
				Version: row.Text("./smart_version"),
				Count:   row.Text("./smart_count"),
				Status:  row.Text("./smart_status"),
			})
		}
	}
	return usage, nil
}

// fields 按表结构输出报告字段
func (l License) fields(schema LicenseSchema) *report.Fields {
	data := report.NewFields()
	data.SetText("Feature", l.Feature)
	if schema == LicenseSchemaSmart {
		data.SetText("Version", l.Version)
		data.SetText("Count", l.Count)
		data.SetText("Status", l.Status)
		return data
	}
	data.SetText("Installed", l.Installed)
	data.SetText("Count", l.Count)
	data.SetText("Status", l.Status)
	data.SetText("Expiry date", l.ExpiryDate)
	data.SetText("Comments", l.Comments)
	return data
}

func addLicenseSection(rep *report.Report, schema LicenseSchema) *report.Section {
	licenseInfo := rep.AddSection("Licenses", "license")
	if t := schema.LicenseType(); t != "" {
		licenseInfo.Set("License type", report.Formatter.AddMarker(t, report.MarkerInfo))
	}
	return licenseInfo
}

func processShowLicenseUsage(rep *report.Report, resp collect.CommandResponse) error {
	if !resp.Succeeded() {
		// 失败回显通常无法解析，尽力识别表结构
		schema := LicenseSchemaNone
		if usage, err := parseLicenseUsage(resp.Response); err == nil {
			schema = usage.Schema
		}
		data := report.NewFields()
		data.Set("Error", invalidCommand(resp.Command))
		addLicenseSection(rep, schema).Append("Licenses", data, "error")
		return nil
	}

	usage, err := parseLicenseUsage(resp.Response)
	if err != nil {
		return err
	}
	if usage.Schema == LicenseSchemaNone {
		logger.Info("No known license usage table in output")
		return nil
	}
	logger.Debugf("Processing license usage, type %s", usage.Schema.LicenseType())
	licenseInfo := addLicenseSection(rep, usage.Schema)
	for _, l := range usage.Licenses {
		licenseInfo.Append("Licenses", l.fields(usage.Schema), l.Feature)
	}
	return nil
}
