package cisco_nxos

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sshcollectorpro/switchreport/addone/collect"
	"github.com/sshcollectorpro/switchreport/addone/report"
	"github.com/sshcollectorpro/switchreport/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func fixture(t testing.TB, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(b)
}

func success(cmd, body string) collect.CommandResponse {
	return collect.CommandResponse{Command: cmd, Status: "success", Response: body}
}

// fakeSwitch 记录调用次数的平台查询与执行器
type fakeSwitch struct {
	platform    string
	platformErr error
	responses   []collect.CommandResponse
	execErr     error
	execCalls   int
	commands    []string
}

func (f *fakeSwitch) env() collect.Env {
	return collect.Env{
		Platforms: collect.PlatformFunc(func(ctx context.Context, serial string) (string, error) {
			return f.platform, f.platformErr
		}),
		Executor: collect.ExecutorFunc(func(ctx context.Context, serial string, commands ...string) ([]collect.CommandResponse, error) {
			f.execCalls++
			f.commands = commands
			return f.responses, f.execErr
		}),
	}
}

func generate(f *fakeSwitch, serial string) *report.Response {
	return (&Plugin{}).Generate(context.Background(), f.env(), serial)
}

func sectionNames(rep *report.Report) []string {
	out := []string{}
	for _, s := range rep.Sections {
		out = append(out, s.Name)
	}
	return out
}

func TestGenerateEndToEnd(t *testing.T) {
	sw := &fakeSwitch{
		platform: "N9K-C93180YC-EX",
		responses: []collect.CommandResponse{
			success(CmdShowVersion, fixture(t, "show_version.xml")),
			success(CmdShowInventory, fixture(t, "show_transceiver.xml")),
			success(CmdShowLicense, fixture(t, "show_license_all.xml")),
		},
	}
	resp := generate(sw, "SN123")

	require.True(t, resp.OK())
	require.NotNil(t, resp.Value)
	assert.Equal(t, 1, sw.execCalls)
	assert.Equal(t, []string{CmdShowVersion, CmdShowInventory, CmdShowLicense}, sw.commands)

	rep := resp.Value
	assert.Equal(t, "Switch inventory", rep.Title)
	assert.Equal(t, []string{"Device Name", "Chassis ID", "Model", "NXOS version", "UpTime"}, rep.Summary.Keys())
	chassis, _ := rep.Summary.Get("Chassis ID")
	assert.Equal(t, "SN123", chassis.Text)
	name, _ := rep.Summary.Get("Device Name")
	assert.Equal(t, "leaf-101", name.Text)
	model, _ := rep.Summary.Get("Model")
	assert.Equal(t, "Nexus9000 C93180YC-EX chassis", model.Text)
	ver, _ := rep.Summary.Get("NXOS version")
	assert.Equal(t, "9.3(8)", ver.Text)
	uptime, _ := rep.Summary.Get("UpTime")
	assert.Equal(t, "120 day(s), 4 hour(s), 33 minute(s), 7 second(s)", uptime.Text)

	assert.Equal(t, []string{"Modules", "Licenses"}, sectionNames(rep))
	modules := rep.Section("Modules")
	require.Len(t, modules.Rows, 3)
	assert.Equal(t, "Modules", modules.Rows[0].Label)

	licenses := rep.Section("Licenses")
	lt, ok := licenses.Header.Get("License type")
	require.True(t, ok)
	assert.Equal(t, report.Formatter.AddMarker("Traditional", report.MarkerInfo), lt)
	require.Len(t, licenses.Rows, 2)
	assert.Equal(t, "LAN_ENTERPRISE_SERVICES_PKG", licenses.Rows[0].Key)
	assert.Nil(t, rep.Section("Errors"))
}

func TestGenerateUnsupportedPlatform(t *testing.T) {
	sw := &fakeSwitch{platform: "C9300-48P"}
	resp := generate(sw, "FOC1234")

	require.True(t, resp.OK())
	assert.Equal(t, 0, sw.execCalls)
	assert.Equal(t, []string{"Error"}, resp.Value.Summary.Keys())
	v, _ := resp.Value.Summary.Get("Error")
	assert.Equal(t, report.MarkerWarning, v.Marker)
	assert.Equal(t, "Device [C9300-48P] of non-Nexus based platforms is not supported!", v.Text)
	assert.Empty(t, resp.Value.Sections)
}

func TestGenerateCustomPlatformPrefix(t *testing.T) {
	sw := &fakeSwitch{platform: "N5K-C5672UP"}
	env := sw.env()
	env.PlatformPrefix = "N9K"
	resp := (&Plugin{}).Generate(context.Background(), env, "SN5")

	require.True(t, resp.OK())
	assert.Equal(t, 0, sw.execCalls)
	assert.Equal(t, []string{"Error"}, resp.Value.Summary.Keys())
}

func TestGeneratePlatformLookupFailsFast(t *testing.T) {
	sw := &fakeSwitch{platformErr: errors.New("device not found")}
	resp := generate(sw, "SN404")

	assert.False(t, resp.OK())
	assert.Equal(t, report.RetFailure, resp.RetCode)
	assert.Nil(t, resp.Value)
	assert.Equal(t, []report.ErrorReport{{Category: "switch_inventory", Message: "Exception while processing"}}, resp.ErrorReports)
	assert.Equal(t, 0, sw.execCalls)
}

func TestGenerateExecutorError(t *testing.T) {
	sw := &fakeSwitch{platform: "N9K-C9336C-FX2", execErr: errors.New("unsupported protocol")}
	resp := generate(sw, "SN1")

	assert.Equal(t, report.RetFailure, resp.RetCode)
	require.Len(t, resp.ErrorReports, 1)
	assert.Equal(t, "switch_inventory", resp.ErrorReports[0].Category)
}

func TestGenerateMissingCollaborators(t *testing.T) {
	resp := (&Plugin{}).Generate(context.Background(), collect.Env{}, "SN1")
	assert.Equal(t, report.RetFailure, resp.RetCode)
}

func TestGenerateConnectivityError(t *testing.T) {
	sw := &fakeSwitch{
		platform: "N9K-C93180YC-EX",
		responses: []collect.CommandResponse{{
			Command:  CmdShowVersion + "\n" + CmdShowInventory + "\n" + CmdShowLicense,
			Status:   "fail",
			Response: "ssh: handshake failed: unable to authenticate",
		}},
	}
	resp := generate(sw, "SN123")

	require.True(t, resp.OK())
	rep := resp.Value
	assert.Equal(t, []string{"Error"}, sectionNames(rep))
	sec := rep.Section("Error")
	assert.Equal(t, "error", sec.ID)
	require.Len(t, sec.Rows, 1)
	assert.Equal(t, "Connectivity error", sec.Rows[0].Label)
	assert.Equal(t, []string{"Error Status", "Fix"}, sec.Rows[0].Fields.Keys())
	status, _ := sec.Rows[0].Fields.Get("Error Status")
	assert.Equal(t, report.MarkerWarning, status.Marker)
	fix, _ := sec.Rows[0].Fields.Get("Fix")
	assert.Equal(t, report.MarkerInfo, fix.Marker)

	summaryErr, ok := rep.Summary.Get("Error")
	require.True(t, ok)
	assert.Equal(t, "Delivery failed due to device connectivity or invalid credential issue.", summaryErr.Text)
}

func TestGenerateSingleSuccessfulResponseIsNotConnectivityError(t *testing.T) {
	sw := &fakeSwitch{
		platform:  "N9K-C93180YC-EX",
		responses: []collect.CommandResponse{success(CmdShowVersion, fixture(t, "show_version.xml"))},
	}
	resp := generate(sw, "SN123")

	require.True(t, resp.OK())
	assert.Empty(t, resp.Value.Sections)
	assert.Equal(t, 5, resp.Value.Summary.Len())
}

func TestGenerateIsolatesParserFailures(t *testing.T) {
	sw := &fakeSwitch{
		platform: "N9K-C93180YC-EX",
		responses: []collect.CommandResponse{
			success(CmdShowInventory, fixture(t, "show_transceiver.xml")),
			success(CmdShowLicense, "<__readonly__><TABLE_show_lic_usage><ROW_show_lic_usage></TABLE_show_lic_usage>"),
		},
	}
	resp := generate(sw, "SN123")

	require.True(t, resp.OK())
	rep := resp.Value
	assert.Equal(t, []string{"Modules", "Errors"}, sectionNames(rep))
	assert.Len(t, rep.Section("Modules").Rows, 3)

	errs := rep.Section("Errors")
	assert.Equal(t, "error2", errs.ID)
	require.Len(t, errs.Rows, 1)
	assert.Equal(t, "Processing errors", errs.Rows[0].Label)
	assert.Equal(t, "error", errs.Rows[0].Key)
	assert.Equal(t, []string{`Error "show license usage"`}, errs.Rows[0].Fields.Keys())
	v, _ := errs.Rows[0].Fields.Get(`Error "show license usage"`)
	assert.Equal(t, report.MarkerInfo, v.Marker)
	assert.Contains(t, v.Text, `output of "show license usage" command`)
}

func TestGenerateRecordsEveryFailedParser(t *testing.T) {
	sw := &fakeSwitch{
		platform: "N7K-C7010",
		responses: []collect.CommandResponse{
			success(CmdShowVersion, "% Invalid command at '^' marker."),
			success(CmdShowInventory, ""),
			success(CmdShowLicense, "not xml"),
		},
	}
	resp := generate(sw, "SN9")

	require.True(t, resp.OK())
	errs := resp.Value.Section("Errors")
	require.NotNil(t, errs)
	assert.Equal(t, []string{`Error "show version"`, `Error "show_inventory"`, `Error "show license usage"`}, errs.Rows[0].Fields.Keys())
	assert.Equal(t, 0, resp.Value.Summary.Len())
}

func TestGenerateRecordsTransceiverWithoutSFP(t *testing.T) {
	sw := &fakeSwitch{
		platform: "N9K-C93180YC-EX",
		responses: []collect.CommandResponse{
			success(CmdShowInventory, "<__readonly__><TABLE_interface><ROW_interface><interface>Eth1/1</interface></ROW_interface></TABLE_interface></__readonly__>"),
		},
	}
	resp := generate(sw, "SN123")

	require.True(t, resp.OK())
	assert.Equal(t, []string{"Modules", "Errors"}, sectionNames(resp.Value))
	assert.Empty(t, resp.Value.Section("Modules").Rows)
	assert.Equal(t, []string{`Error "show_inventory"`}, resp.Value.Section("Errors").Rows[0].Fields.Keys())
}

func TestGenerateIgnoresUnmatchedAndInvalidResponses(t *testing.T) {
	sw := &fakeSwitch{
		platform: "N9K-C93180YC-EX",
		responses: []collect.CommandResponse{
			success("terminal length 0", ""),
			{Command: CmdShowVersion, Response: fixture(t, "show_version.xml")},
			success("  "+CmdShowInventory+"  ", fixture(t, "show_transceiver.xml")),
		},
	}
	resp := generate(sw, "SN123")

	require.True(t, resp.OK())
	assert.Equal(t, []string{"Modules"}, sectionNames(resp.Value))
	assert.Equal(t, 0, resp.Value.Summary.Len(), "response without status is skipped")
}

func TestGenerateFailedCommandStatuses(t *testing.T) {
	sw := &fakeSwitch{
		platform: "N9K-C93180YC-EX",
		responses: []collect.CommandResponse{
			{Command: CmdShowVersion, Status: "fail", Response: ""},
			{Command: CmdShowInventory, Status: "fail", Response: ""},
			{Command: CmdShowLicense, Status: "fail", Response: ""},
		},
	}
	resp := generate(sw, "SN123")

	require.True(t, resp.OK())
	rep := resp.Value
	v, ok := rep.Summary.Get("Error")
	require.True(t, ok)
	assert.Equal(t, report.MarkerWarning, v.Marker)
	assert.Equal(t, "Command show version | xml is invalid, no output received. Please check command logs for further information.", v.Text)

	modules := rep.Section("Modules")
	require.Len(t, modules.Rows, 1)
	assert.Equal(t, "error", modules.Rows[0].Key)

	licenses := rep.Section("Licenses")
	require.NotNil(t, licenses)
	assert.Equal(t, 0, licenses.Header.Len())
	require.Len(t, licenses.Rows, 1)
	assert.Equal(t, "error", licenses.Rows[0].Key)
	assert.Nil(t, rep.Section("Errors"))
}

func TestPluginRegistered(t *testing.T) {
	p, ok := collect.Lookup(TemplateName)
	require.True(t, ok)
	assert.Equal(t, TemplateName, p.Name())
	assert.Len(t, p.Commands(), 3)
}
