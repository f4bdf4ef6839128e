package collect

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// 命令执行状态（包含 success 或 fail 子串）
const (
	StatusSuccess = "success"
	StatusFail    = "fail"
)

// ErrInvalidResponse 命令回显缺少必需字段
var ErrInvalidResponse = errors.New("invalid command response")

// CommandResponse 单条命令的执行结果
type CommandResponse struct {
	Command  string `json:"command"`
	Status   string `json:"status"`
	Response string `json:"response"`
}

// Validate 在边界处校验必需字段
func (r CommandResponse) Validate() error {
	if strings.TrimSpace(r.Command) == "" {
		return fmt.Errorf("%w: command is empty", ErrInvalidResponse)
	}
	if strings.TrimSpace(r.Status) == "" {
		return fmt.Errorf("%w: status is empty for %q", ErrInvalidResponse, r.Command)
	}
	return nil
}

// Succeeded 状态是否包含 success
func (r CommandResponse) Succeeded() bool {
	return strings.Contains(r.Status, StatusSuccess)
}

// Failed 状态是否包含 fail
func (r CommandResponse) Failed() bool {
	return strings.Contains(r.Status, StatusFail)
}

// PlatformLookup 平台查询（如 N9K-C93180YC-EX）
type PlatformLookup interface {
	Platform(ctx context.Context, serial string) (string, error)
}

// Executor 批量执行 CLI 命令；连接失败时返回单条 fail 结果而非 error
type Executor interface {
	Execute(ctx context.Context, serial string, commands ...string) ([]CommandResponse, error)
}

// Env 报告插件运行所需的外部能力
type Env struct {
	Platforms PlatformLookup
	Executor  Executor
	// PlatformPrefix 支持的平台前缀，为空时由插件使用默认值
	PlatformPrefix string
}

// PlatformFunc 函数适配 PlatformLookup
type PlatformFunc func(ctx context.Context, serial string) (string, error)

func (f PlatformFunc) Platform(ctx context.Context, serial string) (string, error) {
	return f(ctx, serial)
}

// ExecutorFunc 函数适配 Executor
type ExecutorFunc func(ctx context.Context, serial string, commands ...string) ([]CommandResponse, error)

func (f ExecutorFunc) Execute(ctx context.Context, serial string, commands ...string) ([]CommandResponse, error) {
	return f(ctx, serial, commands...)
}
