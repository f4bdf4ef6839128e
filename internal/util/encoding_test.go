package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeclaredEncoding(t *testing.T) {
	assert.Equal(t, "ISO-8859-1", DeclaredEncoding([]byte(`<?xml version="1.0" encoding="ISO-8859-1"?><a/>`)))
	assert.Equal(t, "utf-8", DeclaredEncoding([]byte("  <?xml version='1.0' encoding='utf-8'?>")))
	assert.Equal(t, "", DeclaredEncoding([]byte("<a/>")))
}

func TestDecodeOutputLatin1(t *testing.T) {
	raw := append([]byte(`<?xml version="1.0" encoding="ISO-8859-1"?>`+"\r\n<c>"), 0xE9, '<', '/', 'c', '>')
	assert.Equal(t, "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\n<c>é</c>", DecodeOutput(raw))
}

func TestDecodeOutputKeepsUTF8(t *testing.T) {
	assert.Equal(t, "leaf-101\nok", DecodeOutput([]byte("leaf-101\r\nok")))
	assert.Equal(t, "a\nb", NormalizeNewlines("a\rb"))
	assert.Equal(t, "", DecodeOutput(nil))
}
