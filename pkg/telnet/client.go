// Package telnet 通过 telnet 登录设备并按提示符切分命令回显，
// 用于尚未开启 SSH 的老旧 Nexus 设备。
package telnet

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/ziutek/telnet"
)

// ErrAuthFailed 用户名或密码被设备拒绝
var ErrAuthFailed = errors.New("telnet authentication failed")

var loginFailures = []string{"Login incorrect", "Authentication failed", "% Bad passwords"}

// Config telnet 会话参数
type Config struct {
	Timeout        time.Duration
	UsernamePrompt string
	PasswordPrompt string
	PromptSuffixes []string
	ExitCommands   []string
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Timeout <= 0 {
		out.Timeout = 30 * time.Second
	}
	if out.UsernamePrompt == "" {
		out.UsernamePrompt = "login:"
	}
	if out.PasswordPrompt == "" {
		out.PasswordPrompt = "Password:"
	}
	if len(out.PromptSuffixes) == 0 {
		out.PromptSuffixes = []string{"#", ">"}
	}
	return out
}

// Client telnet 客户端，单连接串行执行
type Client struct {
	conn   *telnet.Conn
	cfg    Config
	prompt string
}

// Dial 建立 telnet 连接
func Dial(ctx context.Context, host string, port int, cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if port <= 0 {
		port = 23
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	timeout := cfg.Timeout
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d < timeout {
			timeout = d
		}
	}
	conn, err := telnet.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	conn.SetUnixWriteMode(true)
	return &Client{conn: conn, cfg: cfg}, nil
}

// Login 完成用户名密码交互并记录设备提示符（如 leaf-101#）
func (c *Client) Login(username, password string) error {
	if _, err := c.readUntil(c.cfg.UsernamePrompt); err != nil {
		return fmt.Errorf("waiting for username prompt: %w", err)
	}
	if err := c.send(username); err != nil {
		return err
	}
	if _, err := c.readUntil(c.cfg.PasswordPrompt); err != nil {
		return fmt.Errorf("waiting for password prompt: %w", err)
	}
	if err := c.send(password); err != nil {
		return err
	}

	delims := append(append([]string{}, loginFailures...), c.cfg.UsernamePrompt)
	delims = append(delims, c.cfg.PromptSuffixes...)
	data, idx, err := c.readUntilIndex(delims...)
	if err != nil {
		return fmt.Errorf("waiting for prompt: %w", err)
	}
	if idx <= len(loginFailures) {
		return ErrAuthFailed
	}
	c.prompt = lastLine(normalize(string(data)))
	return nil
}

// Prompt 登录后识别的提示符
func (c *Client) Prompt() string { return c.prompt }

// Run 执行单条命令，返回去掉命令回显与提示符后的输出
func (c *Client) Run(command string) (string, error) {
	if c.prompt == "" {
		return "", errors.New("telnet session not logged in")
	}
	if err := c.send(command); err != nil {
		return "", err
	}
	data, err := c.readUntil(c.prompt)
	if err != nil {
		return normalize(string(data)), fmt.Errorf("reading output of %q: %w", command, err)
	}
	return stripEcho(normalize(string(data)), command, c.prompt), nil
}

// Close 发送退出命令后关闭连接
func (c *Client) Close() error {
	for _, ec := range c.cfg.ExitCommands {
		_ = c.send(ec)
	}
	return c.conn.Close()
}

func (c *Client) send(line string) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.Timeout))
	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("telnet write: %w", err)
	}
	return nil
}

func (c *Client) readUntil(delim string) ([]byte, error) {
	data, _, err := c.readUntilIndex(delim)
	return data, err
}

func (c *Client) readUntilIndex(delims ...string) ([]byte, int, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.Timeout))
	return c.conn.ReadUntilIndex(delims...)
}

func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "")
}

func lastLine(s string) string {
	s = strings.TrimRight(s, " \n")
	if i := strings.LastIndex(s, "\n"); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}

// stripEcho 去掉首行命令回显与末尾提示符
func stripEcho(out, command, prompt string) string {
	out = strings.TrimSuffix(strings.TrimRight(out, " "), prompt)
	if i := strings.Index(out, "\n"); i >= 0 && strings.Contains(out[:i], strings.TrimSpace(command)) {
		out = out[i+1:]
	} else if strings.TrimSpace(out) == strings.TrimSpace(command) {
		out = ""
	}
	return strings.TrimRight(out, "\n")
}
