// Package render 将报告渲染为终端文本或 JSON。
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/sshcollectorpro/switchreport/addone/report"
)

// 渲染格式
const (
	FormatText = "text"
	FormatJSON = "json"
)

var (
	colorCyan    = lipgloss.Color("#8BE9FD")
	colorYellow  = lipgloss.Color("#F1FA8C")
	colorGreen   = lipgloss.Color("#50FA7B")
	colorRed     = lipgloss.Color("#FF5555")
	colorGray    = lipgloss.Color("#6272A4")
	colorMagenta = lipgloss.Color("#FF79C6")
)

// styles 与输出目标绑定，非终端输出时自动降级为纯文本
type styles struct {
	title   lipgloss.Style
	section lipgloss.Style
	row     lipgloss.Style
	label   lipgloss.Style
	warn    lipgloss.Style
	info    lipgloss.Style
	ok      lipgloss.Style
	crit    lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(colorCyan).Border(lipgloss.NormalBorder(), false, false, true, false).BorderForeground(colorGray),
		section: r.NewStyle().Bold(true).Foreground(colorMagenta),
		row:     r.NewStyle().Bold(true),
		label:   r.NewStyle().Foreground(colorGray),
		warn:    r.NewStyle().Foreground(colorYellow).Bold(true),
		info:    r.NewStyle().Foreground(colorCyan),
		ok:      r.NewStyle().Foreground(colorGreen),
		crit:    r.NewStyle().Foreground(colorRed).Bold(true),
	}
}

// JSON 缩进格式的报告 JSON
func JSON(resp *report.Response) ([]byte, error) {
	if resp == nil {
		return nil, fmt.Errorf("render: nil response")
	}
	return json.MarshalIndent(resp, "", "  ")
}

// Text 渲染为可读文本，w 为终端时带颜色
func Text(w io.Writer, resp *report.Response) error {
	if resp == nil {
		return fmt.Errorf("render: nil response")
	}
	_, err := io.WriteString(w, textString(newStyles(w), resp))
	return err
}

// TextString 不带颜色的文本渲染结果，用于归档
func TextString(resp *report.Response) string {
	var sb strings.Builder
	if resp == nil {
		return ""
	}
	sb.WriteString(textString(newStyles(&sb), resp))
	return sb.String()
}

func textString(st styles, resp *report.Response) string {
	var b strings.Builder

	status := st.ok.Render(string(resp.RetCode))
	if !resp.OK() {
		status = st.crit.Render(string(resp.RetCode))
	}

	if rep := resp.Value; rep != nil {
		b.WriteString(st.title.Render(rep.Title))
		b.WriteString("\n")
		fmt.Fprintf(&b, "%s %s\n", st.label.Render("Result:"), status)
		if rep.Summary.Len() > 0 {
			b.WriteString("\n")
			b.WriteString(st.section.Render("Summary"))
			b.WriteString("\n")
			writeFields(&b, st, rep.Summary, "  ")
		}
		for _, sec := range rep.Sections {
			b.WriteString("\n")
			b.WriteString(st.section.Render(sec.Name))
			b.WriteString("\n")
			writeFields(&b, st, sec.Header, "  ")
			for _, row := range sec.Rows {
				fmt.Fprintf(&b, "  %s %s\n", st.row.Render(row.Label), st.label.Render("("+row.Key+")"))
				writeFields(&b, st, row.Fields, "    ")
			}
		}
	} else {
		fmt.Fprintf(&b, "%s %s\n", st.label.Render("Result:"), status)
	}

	if len(resp.ErrorReports) > 0 {
		b.WriteString("\n")
		b.WriteString(st.section.Render("Error reports"))
		b.WriteString("\n")
		for _, e := range resp.ErrorReports {
			fmt.Fprintf(&b, "  %s %s\n", st.label.Render(e.Category+":"), st.crit.Render(e.Message))
		}
	}
	return b.String()
}

// writeFields 每行一个字段，按最长 key 对齐
func writeFields(b *strings.Builder, st styles, f *report.Fields, indent string) {
	items := f.Items()
	width := 0
	for _, it := range items {
		if w := lipgloss.Width(it.Key); w > width {
			width = w
		}
	}
	for _, it := range items {
		pad := strings.Repeat(" ", width-lipgloss.Width(it.Key))
		fmt.Fprintf(b, "%s%s%s  %s\n", indent, st.label.Render(it.Key+":"), pad, value(st, it.Value))
	}
}

// Table 列表输出（设备清单、运行记录）
func Table(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...)
	return t.Render()
}

func value(st styles, v report.Value) string {
	switch v.Marker {
	case report.MarkerWarning:
		return st.warn.Render("[" + string(v.Marker) + "] " + v.Text)
	case report.MarkerInfo:
		return st.info.Render("[" + string(v.Marker) + "] " + v.Text)
	default:
		return v.Text
	}
}
