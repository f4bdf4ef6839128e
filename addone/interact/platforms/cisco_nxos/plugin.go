package cisco_nxos

import (
	"strings"

	"github.com/sshcollectorpro/switchreport/addone/interact"
)

const terminalLength = "terminal length 0"

// Plugin NX-OS 交互插件
type Plugin struct{}

func (p *Plugin) Name() string { return "cisco_nxos" }

func (p *Plugin) Defaults() interact.InteractDefaults {
	// xml 回显较大，超时放宽
	return interact.InteractDefaults{
		Timeout:        60,
		Retries:        2,
		PromptSuffixes: []string{"#"},
		UsernamePrompt: "login:",
		PasswordPrompt: "Password:",
		ExitCommands:   []string{"exit"},
	}
}

// TransformCommands 关闭分页，可通过 metadata["paging"]=true 保留分页
func (p *Plugin) TransformCommands(in interact.CommandTransformInput) interact.CommandTransformOutput {
	out := interact.CommandTransformOutput{Commands: append([]string{}, in.Commands...)}
	if v, ok := in.Metadata["paging"].(bool); ok && v {
		return out
	}
	for _, c := range in.Commands {
		if strings.EqualFold(strings.TrimSpace(c), terminalLength) {
			return out
		}
	}
	out.Setup = []string{terminalLength}
	return out
}

func init() {
	interact.Register("cisco_nxos", &Plugin{})
}
