// Package xmltree 提供对设备 "| xml" 回显的轻量查询封装。
//
// NX-OS 的 XML 回显把命令结果放在 __readonly__ 节点下，
// Parse 以该节点为根返回子树，后续查询均使用相对路径（如 ./TABLE_interface/ROW_interface）。
package xmltree

import (
	"errors"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
)

// ReadonlyRoot NX-OS 回显中承载数据的根节点
const ReadonlyRoot = "__readonly__"

// ErrNoNode 指定的根节点不存在
var ErrNoNode = errors.New("xml node not found")

// Node XML 子树
type Node struct {
	n *xmlquery.Node
}

// Parse 解析文本并定位到 root 节点；root 为空时返回整个文档
func Parse(text, root string) (*Node, error) {
	// NETCONF 分帧符
	text = strings.TrimSuffix(strings.TrimSpace(text), "]]>]]>")
	// 回显已统一转为 UTF-8，去掉声明避免按 encoding 属性二次解码
	if strings.HasPrefix(text, "<?xml") {
		if i := strings.Index(text, "?>"); i >= 0 {
			text = strings.TrimSpace(text[i+2:])
		}
	}
	if text == "" {
		return nil, fmt.Errorf("empty xml output: %w", ErrNoNode)
	}
	doc, err := xmlquery.Parse(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("failed to parse xml: %w", err)
	}
	if root == "" {
		return &Node{n: doc}, nil
	}
	n, err := xmlquery.Query(doc, "//"+root)
	if err != nil {
		return nil, fmt.Errorf("invalid root %q: %w", root, err)
	}
	if n == nil {
		return nil, fmt.Errorf("%s: %w", root, ErrNoNode)
	}
	return &Node{n: n}, nil
}

// HasTag 子树中是否存在指定标签
func (t *Node) HasTag(tag string) bool {
	if t == nil || t.n == nil {
		return false
	}
	n, err := xmlquery.Query(t.n, ".//"+tag)
	return err == nil && n != nil
}

// Rows 返回 path 匹配的全部节点，顺序与文档一致
func (t *Node) Rows(path string) []*Node {
	if t == nil || t.n == nil {
		return nil
	}
	nodes, err := xmlquery.QueryAll(t.n, path)
	if err != nil {
		return nil
	}
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &Node{n: n})
	}
	return out
}

// Value 返回 path 第一个匹配节点的文本；不存在时 ok 为 false
func (t *Node) Value(path string) (string, bool) {
	if t == nil || t.n == nil {
		return "", false
	}
	n, err := xmlquery.Query(t.n, path)
	if err != nil || n == nil {
		return "", false
	}
	return n.InnerText(), true
}

// Text 同 Value，不存在时返回空串
func (t *Node) Text(path string) string {
	v, _ := t.Value(path)
	return v
}

// TextOr 同 Value，不存在时返回 fallback
func (t *Node) TextOr(path, fallback string) string {
	if v, ok := t.Value(path); ok {
		return v
	}
	return fallback
}
