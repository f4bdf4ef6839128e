package report

// RetCode 报告生成结果码
type RetCode string

const (
	RetSuccess RetCode = "success"
	RetFailure RetCode = "failure"
)

// ErrorReport 失败时的错误条目，Category 为报告模板分类
type ErrorReport struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// Response 报告插件的返回对象
type Response struct {
	RetCode      RetCode       `json:"ret_code"`
	Value        *Report       `json:"value,omitempty"`
	ErrorReports []ErrorReport `json:"error_reports,omitempty"`
}

// NewResponse 创建默认成功的返回对象
func NewResponse() *Response {
	return &Response{RetCode: RetSuccess}
}

func (r *Response) SetSuccessRetCode() { r.RetCode = RetSuccess }

func (r *Response) SetFailureRetCode() { r.RetCode = RetFailure }

func (r *Response) SetValue(rep *Report) { r.Value = rep }

// AddErrorReport 追加错误条目
func (r *Response) AddErrorReport(category, message string) {
	r.ErrorReports = append(r.ErrorReports, ErrorReport{Category: category, Message: message})
}

// OK 是否成功
func (r *Response) OK() bool { return r != nil && r.RetCode == RetSuccess }
