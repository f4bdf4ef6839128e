package interact

import "strings"

// InteractDefaults 交互层的默认运行参数
type InteractDefaults struct {
	Timeout int // 秒
	Retries int // 连接重试次数
	// PromptSuffixes 终端提示符后缀（telnet 按行读取时用于切分回显）
	PromptSuffixes []string
	// LoginPrompts 用户名与密码提示
	UsernamePrompt string
	PasswordPrompt string
	// ExitCommands 结束会话时依次发送
	ExitCommands []string
}

// CommandTransformInput 输入命令与元数据
type CommandTransformInput struct {
	Commands []string
	Metadata map[string]interface{}
}

// CommandTransformOutput 输出转换后的命令
// Setup 为会话准备命令（如关闭分页），其回显不返回给调用方
type CommandTransformOutput struct {
	Setup    []string
	Commands []string
}

// All 按执行顺序返回全部命令
func (o CommandTransformOutput) All() []string {
	out := make([]string, 0, len(o.Setup)+len(o.Commands))
	out = append(out, o.Setup...)
	return append(out, o.Commands...)
}

// InteractPlugin 交互插件接口
type InteractPlugin interface {
	// Name 插件名称（如：default、cisco_nxos）
	Name() string
	Defaults() InteractDefaults
	// TransformCommands 根据平台特性补充会话准备命令
	TransformCommands(in CommandTransformInput) CommandTransformOutput
}

// DefaultPlugin 系统默认交互插件
type DefaultPlugin struct{}

func (p *DefaultPlugin) Name() string { return "default" }

func (p *DefaultPlugin) Defaults() InteractDefaults {
	return InteractDefaults{
		Timeout:        30,
		Retries:        1,
		PromptSuffixes: []string{"#", ">"},
		UsernamePrompt: "login:",
		PasswordPrompt: "Password:",
		ExitCommands:   []string{"exit"},
	}
}

func (p *DefaultPlugin) TransformCommands(in CommandTransformInput) CommandTransformOutput {
	return CommandTransformOutput{Commands: append([]string{}, in.Commands...)}
}

// PlatformKey 由设备型号推导交互插件名，如 N9K-C93180YC-EX -> cisco_nxos
func PlatformKey(model string) string {
	m := strings.ToUpper(strings.TrimSpace(model))
	switch {
	case m == "":
		return "default"
	case strings.HasPrefix(m, "N") && strings.Contains(m, "K"):
		return "cisco_nxos"
	default:
		return "default"
	}
}
