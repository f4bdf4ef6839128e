package util

import (
	"bytes"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

var xmlEncodingAttr = regexp.MustCompile(`^\s*<\?xml[^>]*encoding=["']([A-Za-z0-9._-]+)["']`)

// DeclaredEncoding 返回 XML 声明中的 encoding 属性，不存在时为空
func DeclaredEncoding(b []byte) string {
	head := b
	if len(head) > 256 {
		head = head[:256]
	}
	if m := xmlEncodingAttr.FindSubmatch(head); m != nil {
		return string(m[1])
	}
	return ""
}

// DecodeOutput 把设备回显转为 UTF-8 并统一换行为 \n
// 已是合法 UTF-8 时原样保留；否则依次尝试 XML 声明的编码、Windows-1252、ISO-8859-1
func DecodeOutput(b []byte) string {
	return NormalizeNewlines(EnsureUTF8Bytes(b))
}

// EnsureUTF8Bytes 非 UTF-8 字节按常见编码解码
func EnsureUTF8Bytes(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	if utf8.Valid(b) {
		return string(b)
	}
	encs := make([]encoding.Encoding, 0, 3)
	if label := DeclaredEncoding(b); label != "" {
		if enc, err := htmlindex.Get(label); err == nil {
			encs = append(encs, enc)
		}
	}
	encs = append(encs, charmap.Windows1252, charmap.ISO8859_1)
	for _, enc := range encs {
		if s, ok := tryDecode(enc, b); ok {
			return s
		}
	}
	return strings.ToValidUTF8(string(b), "�")
}

// NormalizeNewlines CRLF 与孤立 CR 统一为 LF
func NormalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func tryDecode(enc encoding.Encoding, b []byte) (string, bool) {
	reader := transform.NewReader(bytes.NewReader(b), enc.NewDecoder())
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return "", false
	}
	if utf8.Valid(decoded) {
		return string(decoded), true
	}
	return "", false
}
