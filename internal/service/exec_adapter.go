package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sshcollectorpro/switchreport/addone/collect"
	"github.com/sshcollectorpro/switchreport/addone/interact"
	"github.com/sshcollectorpro/switchreport/internal/config"
	"github.com/sshcollectorpro/switchreport/internal/model"
	"github.com/sshcollectorpro/switchreport/internal/util"
	"github.com/sshcollectorpro/switchreport/pkg/logger"
	"github.com/sshcollectorpro/switchreport/pkg/ssh"
	"github.com/sshcollectorpro/switchreport/pkg/telnet"
)

// ErrUnsupportedProtocol 设备登记了未知的采集协议
var ErrUnsupportedProtocol = errors.New("unsupported protocol")

// DeviceSource 按序列号查询设备连接信息
type DeviceSource interface {
	Get(ctx context.Context, serial string) (*model.Device, error)
}

// ExecAdapter 按设备协议批量执行命令，实现 collect.Executor
// 连接或登录失败时返回单条 fail 结果而非 error
type ExecAdapter struct {
	devices DeviceSource
	pool    *ssh.Pool
	cfg     config.Provider
}

// NewExecAdapter 创建执行适配器
func NewExecAdapter(devices DeviceSource, pool *ssh.Pool, cfg config.Provider) *ExecAdapter {
	return &ExecAdapter{devices: devices, pool: pool, cfg: cfg}
}

// Execute 对设备执行一批命令，结果顺序与命令一致
func (a *ExecAdapter) Execute(ctx context.Context, serial string, commands ...string) ([]collect.CommandResponse, error) {
	dev, err := a.devices.Get(ctx, serial)
	if err != nil {
		return nil, err
	}

	plugin := interact.ForModel(dev.Platform)
	defaults := plugin.Defaults()
	transformed := plugin.TransformCommands(interact.CommandTransformInput{Commands: commands})

	execCtx, cancel := context.WithTimeout(ctx, a.batchTimeout(defaults))
	defer cancel()

	log := logger.WithDevice(serial).WithFields(logrus.Fields{"ip": dev.IP, "protocol": dev.Protocol})
	switch strings.ToLower(strings.TrimSpace(dev.Protocol)) {
	case "", model.ProtocolSSH:
		return a.executeSSH(execCtx, log, dev, defaults, transformed.Commands), nil
	case model.ProtocolTelnet:
		return a.executeTelnet(execCtx, log, dev, defaults, transformed), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProtocol, dev.Protocol)
	}
}

// current 当前配置快照，未配置时为 nil
func (a *ExecAdapter) current() *config.Config {
	if a.cfg == nil {
		return nil
	}
	return a.cfg.Current()
}

func (a *ExecAdapter) batchTimeout(defaults interact.InteractDefaults) time.Duration {
	if cfg := a.current(); cfg != nil && cfg.SSH.Timeout > 0 {
		return cfg.SSH.Timeout
	}
	if defaults.Timeout > 0 {
		return time.Duration(defaults.Timeout) * time.Second
	}
	return 60 * time.Second
}

// connectionFailed 连接层失败时的单条结果
func connectionFailed(commands []string, err error) []collect.CommandResponse {
	return []collect.CommandResponse{{
		Command:  strings.Join(commands, "\n"),
		Status:   collect.StatusFail,
		Response: err.Error(),
	}}
}

// executeSSH 单次登录，每条命令独立的 exec 会话，无需关闭分页
func (a *ExecAdapter) executeSSH(ctx context.Context, log *logrus.Entry, dev *model.Device, defaults interact.InteractDefaults, commands []string) []collect.CommandResponse {
	info := &ssh.ConnectionInfo{
		Host:     dev.IP,
		Port:     dev.ConnectPort(),
		Username: dev.Username,
		Password: dev.Password,
		KeyFile:  dev.KeyFile,
	}

	var (
		client *ssh.Client
		err    error
	)
	attempts := defaults.Retries + 1
	for i := 0; i < attempts; i++ {
		client, err = a.pool.GetConnection(ctx, info)
		if err == nil || ctx.Err() != nil {
			break
		}
		log.WithError(err).Warnf("SSH connect attempt %d/%d failed", i+1, attempts)
	}
	if err != nil {
		log.WithError(err).Error("SSH connection failed")
		return connectionFailed(commands, err)
	}
	defer a.pool.ReleaseConnection(info)

	results, _ := client.ExecuteCommands(ctx, commands)
	out := make([]collect.CommandResponse, 0, len(commands))
	for i, command := range commands {
		if i >= len(results) {
			// 超时后未执行的命令
			out = append(out, collect.CommandResponse{Command: command, Status: collect.StatusFail, Response: "command not executed: " + ctx.Err().Error()})
			continue
		}
		out = append(out, toCommandResponse(results[i]))
	}
	return out
}

func toCommandResponse(r *ssh.CommandResult) collect.CommandResponse {
	resp := collect.CommandResponse{
		Command:  r.Command,
		Status:   collect.StatusSuccess,
		Response: util.DecodeOutput([]byte(r.Output)),
	}
	if !r.OK() {
		resp.Status = collect.StatusFail
		if strings.TrimSpace(resp.Response) == "" {
			resp.Response = r.Error
		}
	}
	return resp
}

// rejected telnet 没有退出码，按 CLI 的错误回显判断命令是否被拒绝
func rejected(output string) bool {
	s := strings.TrimSpace(output)
	return strings.HasPrefix(s, "% Invalid") || strings.HasPrefix(s, "% Incomplete") || strings.HasPrefix(s, "% Ambiguous")
}

// executeTelnet 单个终端会话串行执行，准备命令的回显不返回
func (a *ExecAdapter) executeTelnet(ctx context.Context, log *logrus.Entry, dev *model.Device, defaults interact.InteractDefaults, cmds interact.CommandTransformOutput) []collect.CommandResponse {
	cfg := a.current()
	timeout := time.Duration(defaults.Timeout) * time.Second
	if cfg != nil && cfg.Telnet.Timeout > 0 {
		timeout = cfg.Telnet.Timeout
	}
	port := dev.Port
	if port <= 0 && cfg != nil {
		port = cfg.Telnet.Port
	}

	client, err := telnet.Dial(ctx, dev.IP, port, telnet.Config{
		Timeout:        timeout,
		UsernamePrompt: defaults.UsernamePrompt,
		PasswordPrompt: defaults.PasswordPrompt,
		PromptSuffixes: defaults.PromptSuffixes,
		ExitCommands:   defaults.ExitCommands,
	})
	if err != nil {
		log.WithError(err).Error("Telnet connection failed")
		return connectionFailed(cmds.Commands, err)
	}
	defer client.Close()
	if err := client.Login(dev.Username, dev.Password); err != nil {
		log.WithError(err).Error("Telnet login failed")
		return connectionFailed(cmds.Commands, err)
	}

	for _, setup := range cmds.Setup {
		if _, err := client.Run(setup); err != nil {
			log.WithError(err).Warnf("Setup command %q failed", setup)
		}
	}
	out := make([]collect.CommandResponse, 0, len(cmds.Commands))
	for _, command := range cmds.Commands {
		if ctx.Err() != nil {
			out = append(out, collect.CommandResponse{Command: command, Status: collect.StatusFail, Response: "command not executed: " + ctx.Err().Error()})
			continue
		}
		text, err := client.Run(command)
		resp := collect.CommandResponse{Command: command, Status: collect.StatusSuccess, Response: util.DecodeOutput([]byte(text))}
		if err == nil && rejected(resp.Response) {
			resp.Status = collect.StatusFail
		}
		if err != nil {
			resp.Status = collect.StatusFail
			if strings.TrimSpace(resp.Response) == "" {
				resp.Response = err.Error()
			}
		}
		out = append(out, resp)
	}
	return out
}
