package cisco_nxos

import (
	"fmt"
	"strings"

	"github.com/sshcollectorpro/switchreport/addone/collect"
	"github.com/sshcollectorpro/switchreport/addone/report"
	"github.com/sshcollectorpro/switchreport/pkg/logger"
	"github.com/sshcollectorpro/switchreport/pkg/xmltree"
)

// Transceiver show interface transceiver details 中的一行
type Transceiver struct {
	Interface  string
	SFP        string
	Type       string
	PartNumber string
}

// RowKey 行键：接口名-去掉引号的 sfp 状态
func (t Transceiver) RowKey() string {
	return fmt.Sprintf("%s-%s", t.Interface, strings.Trim(t.SFP, `"`))
}

// parseTransceivers 按回显顺序返回全部收发器；出错时返回出错行之前的部分
func parseTransceivers(raw string) ([]Transceiver, error) {
	content, err := xmltree.Parse(raw, xmltree.ReadonlyRoot)
	if err != nil {
		return nil, err
	}
	rows := content.Rows("./TABLE_interface/ROW_interface")
	out := make([]Transceiver, 0, len(rows))
	for i, row := range rows {
		// sfp 参与行键，缺失视为无法解析
		sfp, ok := row.Value("./sfp")
		if !ok {
			return out, fmt.Errorf("ROW_interface %d (%s): sfp: %w", i+1, row.Text("./interface"), xmltree.ErrNoNode)
		}
		out = append(out, Transceiver{
			Interface:  row.Text("./interface"),
			SFP:        sfp,
			Type:       row.Text("./type"),
			PartNumber: row.Text("./partnum"),
		})
	}
	return out, nil
}

func processShowInventory(rep *report.Report, resp collect.CommandResponse) error {
	logger.Debugf("Processing show transceiver details")
	moduleInfo := rep.AddSection("Modules", "Modules")
	if !resp.Succeeded() {
		data := report.NewFields()
		data.Set("Error", invalidCommand(resp.Command))
		moduleInfo.Append("Modules", data, "error")
		return nil
	}
	transceivers, err := parseTransceivers(resp.Response)
	for _, t := range transceivers {
		data := report.NewFields()
		data.SetText("Transceiver", t.Interface)
		data.SetText("Status", t.SFP)
		data.SetText("Type", t.Type)
		data.SetText("Part Number", t.PartNumber)
		moduleInfo.Append("Modules", data, t.RowKey())
	}
	return err
}
