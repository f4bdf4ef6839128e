// Package simulate 提供一个 SSH exec 模拟设备，按登录用户名返回预置的命令回显，
// 用于在没有真实 Nexus 设备时联调报告生成。
package simulate

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"golang.org/x/crypto/ssh"

	"github.com/sshcollectorpro/switchreport/pkg/logger"
)

// InvalidCommandOutput 未预置命令时的回显
const InvalidCommandOutput = "% Invalid command at '^' marker.\n"

// Config simulate.yaml 配置结构
type Config struct {
	Listen      string         `mapstructure:"listen"`
	Password    string         `mapstructure:"password"`
	HostKeyFile string         `mapstructure:"host_key_file"`
	OutputDir   string         `mapstructure:"output_dir"`
	MaxConn     int            `mapstructure:"max_conn"`
	Devices     []DeviceConfig `mapstructure:"devices"`
}

// DeviceConfig 以登录用户名区分的模拟设备
type DeviceConfig struct {
	Username string         `mapstructure:"username"`
	Hostname string         `mapstructure:"hostname"`
	Outputs  []OutputConfig `mapstructure:"outputs"`
}

// OutputConfig 单条命令的回显，Text 优先于 File
type OutputConfig struct {
	Command    string `mapstructure:"command"`
	Text       string `mapstructure:"text"`
	File       string `mapstructure:"file"`
	ExitStatus uint32 `mapstructure:"exit_status"`
}

// LoadConfig 读取模拟器配置
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	v.SetDefault("listen", "127.0.0.1:2222")
	v.SetDefault("password", "nexus")
	v.SetDefault("host_key_file", filepath.Join("simulate", "_hostkey_rsa.pem"))
	v.SetDefault("output_dir", filepath.Join("simulate", "outputs"))
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read simulate config: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal simulate config: %w", err)
	}
	return &cfg, nil
}

// Server SSH 模拟服务
type Server struct {
	cfg      *Config
	devices  map[string]*DeviceConfig
	listener net.Listener
	hostKey  ssh.Signer
	active   int
	conns    map[net.Conn]struct{}
	mu       sync.Mutex
	wg       sync.WaitGroup
	log      *logrus.Entry
}

// Start 启动模拟服务，Listen 端口为 0 时由系统分配
func Start(cfg *Config) (*Server, error) {
	signer, err := loadOrCreateHostKey(cfg.HostKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to init host key: %w", err)
	}
	listen := cfg.Listen
	if listen == "" {
		listen = "127.0.0.1:0"
	}
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		devices:  make(map[string]*DeviceConfig, len(cfg.Devices)),
		conns:    make(map[net.Conn]struct{}),
		listener: ln,
		hostKey:  signer,
		log:      logger.WithField("component", "simulate"),
	}
	for i := range cfg.Devices {
		s.devices[cfg.Devices[i].Username] = &cfg.Devices[i]
	}

	s.wg.Add(1)
	go s.acceptLoop()
	s.log.WithField("addr", ln.Addr().String()).Info("Simulate: SSH server started")
	return s, nil
}

// Addr 监听地址
func (s *Server) Addr() *net.TCPAddr {
	return s.listener.Addr().(*net.TCPAddr)
}

// Stop 关闭监听与现有连接，并等待处理协程结束
func (s *Server) Stop() {
	_ = s.listener.Close()
	s.mu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	s.log.Info("Simulate: SSH server stopped")
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.WithError(err).Warn("Simulate: accept failed")
			return
		}
		s.mu.Lock()
		if s.cfg.MaxConn > 0 && s.active >= s.cfg.MaxConn {
			s.mu.Unlock()
			_ = conn.Close()
			s.log.Warn("Simulate: reject connection, max_conn exceeded")
			continue
		}
		s.active++
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			s.handleConn(c)
			s.mu.Lock()
			s.active--
			delete(s.conns, c)
			s.mu.Unlock()
		}(conn)
	}
}

func (s *Server) checkPassword(user, password string) error {
	if _, ok := s.devices[user]; !ok {
		return fmt.Errorf("unknown user %q", user)
	}
	if password != s.cfg.Password {
		return errors.New("access denied")
	}
	return nil
}

func (s *Server) handleConn(nc net.Conn) {
	srvCfg := &ssh.ServerConfig{
		PasswordCallback: func(meta ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			return nil, s.checkPassword(meta.User(), string(password))
		},
		KeyboardInteractiveCallback: func(meta ssh.ConnMetadata, challenge ssh.KeyboardInteractiveChallenge) (*ssh.Permissions, error) {
			answers, err := challenge(meta.User(), "", []string{"Password:"}, []bool{false})
			if err != nil {
				return nil, err
			}
			if len(answers) != 1 {
				return nil, errors.New("access denied")
			}
			return nil, s.checkPassword(meta.User(), answers[0])
		},
	}
	srvCfg.AddHostKey(s.hostKey)

	conn, chans, reqs, err := ssh.NewServerConn(nc, srvCfg)
	if err != nil {
		s.log.WithError(err).Debug("Simulate: SSH handshake failed")
		_ = nc.Close()
		return
	}
	defer conn.Close()
	go ssh.DiscardRequests(reqs)

	device := s.devices[conn.User()]
	for ch := range chans {
		if ch.ChannelType() != "session" {
			_ = ch.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, err := ch.Accept()
		if err != nil {
			s.log.WithError(err).Warn("Simulate: channel accept failed")
			continue
		}
		go s.handleSession(channel, requests, device)
	}
}

func (s *Server) handleSession(channel ssh.Channel, requests <-chan *ssh.Request, device *DeviceConfig) {
	defer channel.Close()
	for req := range requests {
		if req.Type != "exec" {
			// 只支持 exec，不提供交互式 shell
			_ = req.Reply(false, nil)
			continue
		}
		var payload struct{ Command string }
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
			_ = req.Reply(false, nil)
			return
		}
		_ = req.Reply(true, nil)

		out, status := s.output(device, strings.TrimSpace(payload.Command))
		s.log.WithFields(logrus.Fields{"device": device.Username, "cmd": payload.Command, "status": status}).Debug("Simulate: exec")
		_, _ = channel.Write([]byte(out))
		_, _ = channel.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{status}))
		return
	}
}

// output 查找预置回显：配置内联文本，其次 output_dir/<username>/<命令>.txt
func (s *Server) output(device *DeviceConfig, command string) (string, uint32) {
	for _, o := range device.Outputs {
		if strings.TrimSpace(o.Command) != command {
			continue
		}
		if o.Text != "" {
			return o.Text, o.ExitStatus
		}
		if o.File != "" {
			if bs, err := os.ReadFile(s.resolve(o.File)); err == nil {
				return string(bs), o.ExitStatus
			}
		}
	}
	if s.cfg.OutputDir != "" {
		p := filepath.Join(s.cfg.OutputDir, device.Username, CommandFileName(command))
		if bs, err := os.ReadFile(p); err == nil {
			return string(bs), 0
		}
	}
	return InvalidCommandOutput, 16
}

func (s *Server) resolve(file string) string {
	if filepath.IsAbs(file) || s.cfg.OutputDir == "" {
		return file
	}
	return filepath.Join(s.cfg.OutputDir, file)
}

// CommandFileName 命令对应的回显文件名，如 show version | xml -> show_version___xml.txt
func CommandFileName(command string) string {
	r := strings.NewReplacer("|", "_", " ", "_", "/", "_")
	return r.Replace(strings.TrimSpace(command)) + ".txt"
}

// loadOrCreateHostKey 加载或生成持久化的 RSA host key；path 为空时仅在内存中生成
func loadOrCreateHostKey(path string) (ssh.Signer, error) {
	if path != "" {
		if bs, err := os.ReadFile(path); err == nil {
			if signer, err := ssh.ParsePrivateKey(bs); err == nil {
				return signer, nil
			}
			logger.Warn("Simulate: host key parse failed, regenerating")
		}
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate host key: %w", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to ensure host key dir: %w", err)
		}
		if err := os.WriteFile(path, pemBytes, 0o600); err != nil {
			return nil, fmt.Errorf("failed to write host key: %w", err)
		}
	}
	return ssh.ParsePrivateKey(pemBytes)
}
