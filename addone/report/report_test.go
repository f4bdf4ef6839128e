package report

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldsKeepInsertionOrder(t *testing.T) {
	f := NewFields()
	f.SetText("Device Name", "leaf-1")
	f.SetText("Chassis ID", "SN1")
	f.SetText("Model", "N9K-C93180YC-EX")
	f.SetText("Device Name", "leaf-2")

	assert.Equal(t, []string{"Device Name", "Chassis ID", "Model"}, f.Keys())
	v, ok := f.Get("Device Name")
	require.True(t, ok)
	assert.Equal(t, "leaf-2", v.Text)
}

func TestSectionAppendKeepsDuplicateKeys(t *testing.T) {
	r := New("Switch inventory")
	s := r.AddSection("Modules", "Modules")
	s.Append("Modules", nil, "Eth1/1-present")
	s.Append("Modules", nil, "Eth1/1-present")

	require.Len(t, s.Rows, 2)
	assert.Equal(t, "Eth1/1-present", s.Rows[1].Key)
	assert.NotNil(t, s.Rows[0].Fields)
	assert.Same(t, s, r.Section("Modules"))
	assert.Nil(t, r.Section("Licenses"))
}

func TestAddSummaryReturnsSameFields(t *testing.T) {
	r := New("Switch inventory")
	r.AddSummary().SetText("a", "1")
	r.AddSummary().SetText("b", "2")
	assert.Equal(t, []string{"a", "b"}, r.Summary.Keys())
}

func TestMarkerAndJSONRoundTrip(t *testing.T) {
	r := New("Switch inventory")
	r.AddSummary().Set("Error", Formatter.AddMarker("unsupported", MarkerWarning))
	lic := r.AddSection("Licenses", "license")
	lic.Set("License type", Formatter.AddMarker("Smart", MarkerInfo))

	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"marker":"WARNING"`)

	var back Report
	require.NoError(t, json.Unmarshal(b, &back))
	v, ok := back.Sections[0].Header.Get("License type")
	require.True(t, ok)
	assert.Equal(t, MarkerInfo, v.Marker)
	assert.Equal(t, "Smart", v.String())
}

func TestResponseRetCode(t *testing.T) {
	resp := NewResponse()
	assert.True(t, resp.OK())
	resp.SetFailureRetCode()
	resp.AddErrorReport("switch_inventory", "Exception while processing")
	assert.False(t, resp.OK())
	assert.Equal(t, []ErrorReport{{Category: "switch_inventory", Message: "Exception while processing"}}, resp.ErrorReports)
}
