package xmltree

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `<?xml version="1.0" encoding="ISO-8859-1"?>
<nf:rpc-reply xmlns:nf="urn:ietf:params:xml:ns:netconf:base:1.0">
 <nf:data>
  <show>
   <interface>
    <__readonly__>
     <TABLE_interface>
      <ROW_interface>
       <interface>Ethernet1/1</interface>
       <sfp>present</sfp>
      </ROW_interface>
      <ROW_interface>
       <interface>Ethernet1/2</interface>
       <sfp>not present</sfp>
      </ROW_interface>
     </TABLE_interface>
    </__readonly__>
   </interface>
  </show>
 </nf:data>
</nf:rpc-reply>
]]>]]>`

func TestParseFindsReadonlyRoot(t *testing.T) {
	root, err := Parse(sample, ReadonlyRoot)
	require.NoError(t, err)

	assert.True(t, root.HasTag("TABLE_interface"))
	assert.False(t, root.HasTag("TABLE_lic_usage"))

	rows := root.Rows("./TABLE_interface/ROW_interface")
	require.Len(t, rows, 2)
	assert.Equal(t, "Ethernet1/1", rows[0].Text("./interface"))
	assert.Equal(t, "not present", rows[1].Text("./sfp"))
}

func TestValueMissing(t *testing.T) {
	root, err := Parse(sample, ReadonlyRoot)
	require.NoError(t, err)

	_, ok := root.Value("./host_name")
	assert.False(t, ok)
	assert.Equal(t, "", root.Text("./host_name"))
	assert.Equal(t, "-", root.TextOr("./host_name", "-"))
}

func TestParseWithoutReadonly(t *testing.T) {
	_, err := Parse("% Invalid command at '^' marker.", ReadonlyRoot)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoNode))

	_, err = Parse("   ", ReadonlyRoot)
	assert.True(t, errors.Is(err, ErrNoNode))
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse("<__readonly__><a></b></__readonly__>", ReadonlyRoot)
	assert.Error(t, err)
}

func TestNilNodeIsSafe(t *testing.T) {
	var n *Node
	assert.False(t, n.HasTag("x"))
	assert.Nil(t, n.Rows("./x"))
	assert.Equal(t, "", n.Text("./x"))
}
