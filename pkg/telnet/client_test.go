package telnet

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDevice 最小 telnet 设备：登录后按命令返回固定输出
func fakeDevice(t *testing.T, password string, outputs map[string]string) (string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serve(conn, password, outputs)
		}
	}()
	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

func serve(conn net.Conn, password string, outputs map[string]string) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	readLine := func() (string, bool) {
		line, err := r.ReadString('\n')
		if err != nil {
			return "", false
		}
		return strings.TrimRight(line, "\r\n"), true
	}

	conn.Write([]byte("\r\nUser Access Verification\r\nlogin: "))
	if _, ok := readLine(); !ok {
		return
	}
	conn.Write([]byte("Password: "))
	pass, ok := readLine()
	if !ok {
		return
	}
	if pass != password {
		conn.Write([]byte("\r\nLogin incorrect\r\nlogin: "))
		return
	}
	conn.Write([]byte("\r\nleaf-101# "))
	for {
		cmd, ok := readLine()
		if !ok || cmd == "exit" {
			return
		}
		out, found := outputs[cmd]
		if !found {
			out = "% Invalid command at '^' marker."
		}
		conn.Write([]byte(cmd + "\r\n" + out + "\r\nleaf-101# "))
	}
}

func TestLoginAndRun(t *testing.T) {
	host, port := fakeDevice(t, "secret", map[string]string{
		"terminal length 0":  "",
		"show version | xml": "<__readonly__>\r\n<host_name>leaf-101</host_name>\r\n</__readonly__>",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, host, port, Config{Timeout: 2 * time.Second, PromptSuffixes: []string{"#"}, ExitCommands: []string{"exit"}})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Login("admin", "secret"))
	assert.Equal(t, "leaf-101#", c.Prompt())

	out, err := c.Run("terminal length 0")
	require.NoError(t, err)
	assert.Equal(t, "", strings.TrimSpace(out))

	out, err = c.Run("show version | xml")
	require.NoError(t, err)
	assert.Equal(t, "<__readonly__>\n<host_name>leaf-101</host_name>\n</__readonly__>", strings.TrimSpace(out))
}

func TestLoginRejected(t *testing.T) {
	host, port := fakeDevice(t, "secret", nil)

	c, err := Dial(context.Background(), host, port, Config{Timeout: 2 * time.Second})
	require.NoError(t, err)
	defer c.Close()

	err = c.Login("admin", "wrong")
	assert.True(t, errors.Is(err, ErrAuthFailed))
}

func TestRunRequiresLogin(t *testing.T) {
	host, port := fakeDevice(t, "secret", nil)
	c, err := Dial(context.Background(), host, port, Config{Timeout: time.Second})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Run("show clock")
	assert.Error(t, err)
}

func TestDialRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	_, err = Dial(context.Background(), "127.0.0.1", port, Config{Timeout: time.Second})
	assert.Error(t, err)
}

func TestStripEcho(t *testing.T) {
	assert.Equal(t, "line1\nline2", stripEcho(" show clock\nline1\nline2\nsw1#", "show clock", "sw1#"))
	assert.Equal(t, "", stripEcho("show clock\nsw1# ", "show clock", "sw1#"))
	assert.Equal(t, "sw1#", lastLine("\nbanner\nsw1#\n"))
}
