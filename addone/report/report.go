package report

import (
	"encoding/json"
)

// Marker 展示用的严重级别标记
type Marker string

const (
	MarkerNone    Marker = ""
	MarkerInfo    Marker = "INFO"
	MarkerWarning Marker = "WARNING"
)

// Value 报告字段值，可附带严重级别标记
type Value struct {
	Text   string `json:"text"`
	Marker Marker `json:"marker,omitempty"`
}

// Text 构造不带标记的字段值
func Text(s string) Value { return Value{Text: s} }

// String 返回纯文本
func (v Value) String() string { return v.Text }

// Formatter 对齐报告框架的标记辅助函数
var Formatter = formatter{}

type formatter struct{}

// AddMarker 为文本附加严重级别标记
func (formatter) AddMarker(text string, marker Marker) Value {
	return Value{Text: text, Marker: marker}
}

// Field 有序字段
type Field struct {
	Key   string `json:"key"`
	Value Value  `json:"value"`
}

// Fields 保持插入顺序的字段集合
// 同名 key 再次 Set 时原位覆盖，不改变顺序
type Fields struct {
	items []Field
	index map[string]int
}

// NewFields 创建空字段集合
func NewFields() *Fields {
	return &Fields{index: map[string]int{}}
}

// Set 设置字段
func (f *Fields) Set(key string, value Value) {
	if f.index == nil {
		f.index = map[string]int{}
	}
	if i, ok := f.index[key]; ok {
		f.items[i].Value = value
		return
	}
	f.index[key] = len(f.items)
	f.items = append(f.items, Field{Key: key, Value: value})
}

// SetText 设置不带标记的字段
func (f *Fields) SetText(key, text string) {
	f.Set(key, Text(text))
}

// Get 读取字段
func (f *Fields) Get(key string) (Value, bool) {
	if f == nil || f.index == nil {
		return Value{}, false
	}
	i, ok := f.index[key]
	if !ok {
		return Value{}, false
	}
	return f.items[i].Value, true
}

// Keys 按插入顺序返回 key
func (f *Fields) Keys() []string {
	if f == nil {
		return nil
	}
	keys := make([]string, 0, len(f.items))
	for _, it := range f.items {
		keys = append(keys, it.Key)
	}
	return keys
}

// Items 按插入顺序返回字段副本
func (f *Fields) Items() []Field {
	if f == nil {
		return nil
	}
	return append([]Field(nil), f.items...)
}

// Len 字段数量
func (f *Fields) Len() int {
	if f == nil {
		return 0
	}
	return len(f.items)
}

func (f *Fields) MarshalJSON() ([]byte, error) {
	if f == nil || len(f.items) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(f.items)
}

func (f *Fields) UnmarshalJSON(b []byte) error {
	var items []Field
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	f.items = nil
	f.index = map[string]int{}
	for _, it := range items {
		f.Set(it.Key, it.Value)
	}
	return nil
}

// Row 章节中的一行
type Row struct {
	Label  string  `json:"label"`
	Key    string  `json:"key"`
	Fields *Fields `json:"fields"`
}

// Section 报告章节：头部字段 + 只追加的行记录
type Section struct {
	Name   string  `json:"name"`
	ID     string  `json:"id"`
	Header *Fields `json:"header"`
	Rows   []Row   `json:"rows"`
}

// Set 设置章节头部字段
func (s *Section) Set(key string, value Value) {
	s.Header.Set(key, value)
}

// Append 追加一行，相同 rowKey 的行同样保留
func (s *Section) Append(label string, fields *Fields, rowKey string) {
	if fields == nil {
		fields = NewFields()
	}
	s.Rows = append(s.Rows, Row{Label: label, Key: rowKey, Fields: fields})
}

// Report 报告累加器
type Report struct {
	Title    string     `json:"title"`
	Summary  *Fields    `json:"summary"`
	Sections []*Section `json:"sections"`
}

// New 创建报告
func New(title string) *Report {
	return &Report{Title: title, Summary: NewFields()}
}

// AddSummary 返回报告摘要（多次调用返回同一摘要）
func (r *Report) AddSummary() *Fields {
	if r.Summary == nil {
		r.Summary = NewFields()
	}
	return r.Summary
}

// AddSection 追加一个新章节
func (r *Report) AddSection(name, id string) *Section {
	s := &Section{Name: name, ID: id, Header: NewFields()}
	r.Sections = append(r.Sections, s)
	return s
}

// Section 按名称查找第一个章节
func (r *Report) Section(name string) *Section {
	for _, s := range r.Sections {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// SectionsNamed 按名称返回全部章节
func (r *Report) SectionsNamed(name string) []*Section {
	out := make([]*Section, 0, 1)
	for _, s := range r.Sections {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}
