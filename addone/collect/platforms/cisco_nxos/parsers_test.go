package cisco_nxos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sshcollectorpro/switchreport/addone/report"
	"github.com/sshcollectorpro/switchreport/pkg/xmltree"
)

func versionXML(body string) string {
	return `<?xml version="1.0" encoding="ISO-8859-1"?>
<nf:rpc-reply xmlns:nf="urn:ietf:params:xml:ns:netconf:base:1.0"><nf:data><show><version><__readonly__>` +
		body + `</__readonly__></version></show></nf:data></nf:rpc-reply>
]]>]]>`
}

func TestParseShowVersion(t *testing.T) {
	info, err := parseShowVersion(fixture(t, "show_version.xml"))
	require.NoError(t, err)
	assert.Equal(t, VersionInfo{
		HostName:  "leaf-101",
		Model:     "Nexus9000 C93180YC-EX chassis",
		OSVersion: "9.3(8)",
		Uptime:    "120 day(s), 4 hour(s), 33 minute(s), 7 second(s)",
	}, info)
}

func TestParseShowVersionOSVersion(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"ver_str only", `<kickstart_ver_str>7.0(3)I7(9)</kickstart_ver_str>`, "7.0(3)I7(9)"},
		{"ver only", `<kickstart_ver>6.0(2)N2(7)</kickstart_ver>`, "6.0(2)N2(7)"},
		{"ver_str wins", `<kickstart_ver>6.0(2)</kickstart_ver><kickstart_ver_str>9.3(10)</kickstart_ver_str>`, "9.3(10)"},
		{"neither", `<host_name>sw1</host_name>`, "N/A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := parseShowVersion(versionXML(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, info.OSVersion)
		})
	}
}

func TestParseShowVersionMissingUptimeParts(t *testing.T) {
	info, err := parseShowVersion(versionXML(`<host_name>sw1</host_name><kern_uptm_days>3</kern_uptm_days>`))
	require.NoError(t, err)
	assert.Equal(t, "3 day(s),  hour(s),  minute(s),  second(s)", info.Uptime)
	assert.Equal(t, "", info.Model)
}

func TestParseShowVersionNoReadonlyNode(t *testing.T) {
	_, err := parseShowVersion(`<nf:rpc-reply xmlns:nf="urn:x"><nf:data/></nf:rpc-reply>`)
	assert.Error(t, err)
}

func TestParseTransceivers(t *testing.T) {
	got, err := parseTransceivers(fixture(t, "show_transceiver.xml"))
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, Transceiver{Interface: "Ethernet1/1", SFP: "present", Type: "10Gbase-SR", PartNumber: "FTLX8574D3BCL-C2"}, got[0])
	assert.Equal(t, "Ethernet1/1-present", got[0].RowKey())
	assert.Equal(t, `"present"`, got[1].SFP)
	assert.Equal(t, "Ethernet1/2-present", got[1].RowKey())
	assert.Equal(t, Transceiver{Interface: "Ethernet1/3", SFP: "not present"}, got[2])
	assert.Equal(t, "Ethernet1/3-not present", got[2].RowKey())
}

func TestParseTransceiversEmptyTable(t *testing.T) {
	got, err := parseTransceivers(`<__readonly__></__readonly__>`)
	require.NoError(t, err)
	assert.Empty(t, got)
}

const missingSFPXML = `<__readonly__><TABLE_interface>
<ROW_interface><interface>Ethernet1/1</interface><sfp>present</sfp><type>10Gbase-SR</type></ROW_interface>
<ROW_interface><interface>Ethernet1/2</interface><type>10Gbase-LR</type></ROW_interface>
<ROW_interface><interface>Ethernet1/3</interface><sfp>present</sfp></ROW_interface>
</TABLE_interface></__readonly__>`

func TestParseTransceiversMissingSFP(t *testing.T) {
	got, err := parseTransceivers(missingSFPXML)
	require.ErrorIs(t, err, xmltree.ErrNoNode)
	assert.Contains(t, err.Error(), "Ethernet1/2")
	require.Len(t, got, 1)
	assert.Equal(t, "Ethernet1/1-present", got[0].RowKey())
}

func TestProcessShowInventoryMissingSFPStopsAtRow(t *testing.T) {
	rep := report.New(ReportTitle)
	err := processShowInventory(rep, success(CmdShowInventory, missingSFPXML))
	require.Error(t, err)

	modules := rep.Section("Modules")
	require.NotNil(t, modules)
	require.Len(t, modules.Rows, 1)
	assert.Equal(t, "Ethernet1/1-present", modules.Rows[0].Key)
}

func TestProcessShowInventoryRows(t *testing.T) {
	rep := report.New(ReportTitle)
	err := processShowInventory(rep, success(CmdShowInventory, fixture(t, "show_transceiver.xml")))
	require.NoError(t, err)

	modules := rep.Section("Modules")
	require.NotNil(t, modules)
	assert.Equal(t, "Modules", modules.ID)
	require.Len(t, modules.Rows, 3)
	row := modules.Rows[1]
	assert.Equal(t, "Ethernet1/2-present", row.Key)
	assert.Equal(t, []string{"Transceiver", "Status", "Type", "Part Number"}, row.Fields.Keys())
	status, _ := row.Fields.Get("Status")
	assert.Equal(t, `"present"`, status.Text)
}

func TestProcessShowInventoryParseFailureLeavesEmptySection(t *testing.T) {
	rep := report.New(ReportTitle)
	err := processShowInventory(rep, success(CmdShowInventory, "Invalid command"))
	require.Error(t, err)
	modules := rep.Section("Modules")
	require.NotNil(t, modules)
	assert.Empty(t, modules.Rows)
}

func TestParseLicenseUsageVariants(t *testing.T) {
	t.Run("all", func(t *testing.T) {
		usage, err := parseLicenseUsage(fixture(t, "show_license_all.xml"))
		require.NoError(t, err)
		assert.Equal(t, LicenseSchemaAll, usage.Schema)
		assert.Equal(t, "Traditional", usage.Schema.LicenseType())
		require.Len(t, usage.Licenses, 2)
		assert.Equal(t, License{
			Feature: "LAN_ENTERPRISE_SERVICES_PKG", Installed: "Yes", Count: "-",
			Status: "In use", ExpiryDate: "Never", Comments: "-",
		}, usage.Licenses[0])
		assert.Equal(t, "-", usage.Licenses[1].ExpiryDate)
	})

	t.Run("n5k", func(t *testing.T) {
		usage, err := parseLicenseUsage(fixture(t, "show_license_n5k.xml"))
		require.NoError(t, err)
		assert.Equal(t, LicenseSchemaN5K, usage.Schema)
		assert.Equal(t, "Traditional", usage.Schema.LicenseType())
		require.Len(t, usage.Licenses, 2)
		assert.Equal(t, License{
			Feature: "FC_FEATURES_PKG", Installed: "Installed", Count: "48",
			Status: "In use", ExpiryDate: "31 Dec 2026", Comments: "-",
		}, usage.Licenses[0])
		assert.Equal(t, "-", usage.Licenses[1].ExpiryDate)
		assert.Equal(t, "Grace 120D 0H", usage.Licenses[1].Comments)
	})

	t.Run("smart", func(t *testing.T) {
		usage, err := parseLicenseUsage(fixture(t, "show_license_smart.xml"))
		require.NoError(t, err)
		assert.Equal(t, LicenseSchemaSmart, usage.Schema)
		assert.Equal(t, "Smart", usage.Schema.LicenseType())
		require.Len(t, usage.Licenses, 1)
		assert.Equal(t, License{Feature: "N9K_LIC_ESSENTIALS", Version: "1.0", Count: "1", Status: "AUTHORIZED"}, usage.Licenses[0])
	})

	t.Run("none", func(t *testing.T) {
		usage, err := parseLicenseUsage(`<__readonly__><something_else/></__readonly__>`)
		require.NoError(t, err)
		assert.Equal(t, LicenseSchemaNone, usage.Schema)
		assert.Empty(t, usage.Licenses)
	})
}

func TestDetectLicenseSchemaPriority(t *testing.T) {
	usage, err := parseLicenseUsage(`<__readonly__>
<TABLE_show_smart_lic_usage><ROW_show_smart_lic_usage><smart_feature_name>S</smart_feature_name></ROW_show_smart_lic_usage></TABLE_show_smart_lic_usage>
<TABLE_lic_usage><ROW_lic_usage><feature_name>N</feature_name></ROW_lic_usage></TABLE_lic_usage>
</__readonly__>`)
	require.NoError(t, err)
	assert.Equal(t, LicenseSchemaN5K, usage.Schema)
	require.Len(t, usage.Licenses, 1)
	assert.Equal(t, "N", usage.Licenses[0].Feature)
}

func TestDetectLicenseSchemaAllTablesPresent(t *testing.T) {
	usage, err := parseLicenseUsage(`<__readonly__>
<TABLE_show_smart_lic_usage><ROW_show_smart_lic_usage><smart_feature_name>S</smart_feature_name><smart_count>9</smart_count></ROW_show_smart_lic_usage></TABLE_show_smart_lic_usage>
<TABLE_lic_usage><ROW_lic_usage><feature_name>N</feature_name><install_status>Unused</install_status><lic_count>7</lic_count></ROW_lic_usage></TABLE_lic_usage>
<TABLE_show_lic_usage><ROW_show_lic_usage><feature_name>LAN_ENTERPRISE_SERVICES_PKG</feature_name><lic_installed>Yes</lic_installed><count>1</count><status>In use</status></ROW_show_lic_usage></TABLE_show_lic_usage>
</__readonly__>`)
	require.NoError(t, err)
	assert.Equal(t, LicenseSchemaAll, usage.Schema)
	require.Len(t, usage.Licenses, 1)
	assert.Equal(t, License{
		Feature:    "LAN_ENTERPRISE_SERVICES_PKG",
		Installed:  "Yes",
		Count:      "1",
		Status:     "In use",
		ExpiryDate: "-",
	}, usage.Licenses[0])
}

func TestProcessShowLicenseUsageFieldNames(t *testing.T) {
	t.Run("n5k traditional", func(t *testing.T) {
		rep := report.New(ReportTitle)
		require.NoError(t, processShowLicenseUsage(rep, success(CmdShowLicense, fixture(t, "show_license_n5k.xml"))))
		sec := rep.Section("Licenses")
		require.NotNil(t, sec)
		assert.Equal(t, "license", sec.ID)
		lt, _ := sec.Header.Get("License type")
		assert.Equal(t, "Traditional", lt.Text)
		assert.Equal(t, report.MarkerInfo, lt.Marker)
		require.Len(t, sec.Rows, 2)
		assert.Equal(t, "Licenses", sec.Rows[0].Label)
		assert.Equal(t, "FC_FEATURES_PKG", sec.Rows[0].Key)
		assert.Equal(t, []string{"Feature", "Installed", "Count", "Status", "Expiry date", "Comments"}, sec.Rows[0].Fields.Keys())
	})

	t.Run("smart", func(t *testing.T) {
		rep := report.New(ReportTitle)
		require.NoError(t, processShowLicenseUsage(rep, success(CmdShowLicense, fixture(t, "show_license_smart.xml"))))
		sec := rep.Section("Licenses")
		require.NotNil(t, sec)
		lt, _ := sec.Header.Get("License type")
		assert.Equal(t, "Smart", lt.Text)
		assert.Equal(t, []string{"Feature", "Version", "Count", "Status"}, sec.Rows[0].Fields.Keys())
	})
}

func TestProcessShowLicenseUsageUnknownTable(t *testing.T) {
	rep := report.New(ReportTitle)
	require.NoError(t, processShowLicenseUsage(rep, success(CmdShowLicense, `<__readonly__><x/></__readonly__>`)))
	assert.Nil(t, rep.Section("Licenses"))
}

func TestProcessShowLicenseUsageFailedStatusKeepsSchema(t *testing.T) {
	rep := report.New(ReportTitle)
	resp := success(CmdShowLicense, fixture(t, "show_license_smart.xml"))
	resp.Status = "fail"
	require.NoError(t, processShowLicenseUsage(rep, resp))

	sec := rep.Section("Licenses")
	require.NotNil(t, sec)
	lt, ok := sec.Header.Get("License type")
	require.True(t, ok)
	assert.Equal(t, "Smart", lt.Text)
	require.Len(t, sec.Rows, 1)
	assert.Equal(t, "error", sec.Rows[0].Key)
	v, _ := sec.Rows[0].Fields.Get("Error")
	assert.Equal(t, report.MarkerWarning, v.Marker)
}
