package ssh

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Pool SSH连接池，按 host:port@user 复用连接
type Pool struct {
	config      *Config
	connections map[string]*pooledConnection
	mutex       sync.Mutex
	maxIdle     int
	maxActive   int
	idleTimeout time.Duration
	stop        chan struct{}
	closeOnce   sync.Once
}

// pooledConnection 池化的连接
type pooledConnection struct {
	client   *Client
	lastUsed time.Time
	inUse    bool
	created  time.Time
}

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdle         int           `yaml:"max_idle"`
	MaxActive       int           `yaml:"max_active"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	SSHConfig       *Config       `yaml:"ssh"`
}

// PoolStats 连接池统计
type PoolStats struct {
	Total     int `json:"total_connections"`
	Active    int `json:"active_connections"`
	Idle      int `json:"idle_connections"`
	MaxIdle   int `json:"max_idle"`
	MaxActive int `json:"max_active"`
}

// NewPool 创建SSH连接池
func NewPool(config *PoolConfig) *Pool {
	pool := &Pool{
		config:      config.SSHConfig,
		connections: make(map[string]*pooledConnection),
		maxIdle:     config.MaxIdle,
		maxActive:   config.MaxActive,
		idleTimeout: config.IdleTimeout,
		stop:        make(chan struct{}),
	}
	if pool.maxActive <= 0 {
		pool.maxActive = 16
	}
	if pool.maxIdle <= 0 {
		pool.maxIdle = 4
	}
	if pool.idleTimeout <= 0 {
		pool.idleTimeout = 5 * time.Minute
	}
	interval := config.CleanupInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	go pool.cleanup(interval)
	return pool
}

// GetConnection 获取SSH连接，用完需调用 ReleaseConnection
func (p *Pool) GetConnection(ctx context.Context, info *ConnectionInfo) (*Client, error) {
	key := connectionKey(info)

	p.mutex.Lock()
	if conn, exists := p.connections[key]; exists {
		if !conn.inUse && conn.client.IsConnected() {
			conn.inUse = true
			conn.lastUsed = time.Now()
			p.mutex.Unlock()
			return conn.client, nil
		}
		if !conn.inUse {
			conn.client.Close()
			delete(p.connections, key)
		} else {
			p.mutex.Unlock()
			return nil, fmt.Errorf("connection %s is busy", key)
		}
	}
	if active := p.activeCount(); active >= p.maxActive {
		p.mutex.Unlock()
		return nil, fmt.Errorf("connection pool is full, active connections: %d", active)
	}
	// 先占位，拨号在锁外进行
	placeholder := &pooledConnection{inUse: true, created: time.Now()}
	p.connections[key] = placeholder
	p.mutex.Unlock()

	client := NewClient(p.config)
	if err := client.Connect(ctx, info); err != nil {
		p.mutex.Lock()
		delete(p.connections, key)
		p.mutex.Unlock()
		return nil, fmt.Errorf("failed to create SSH connection: %w", err)
	}

	p.mutex.Lock()
	placeholder.client = client
	placeholder.lastUsed = time.Now()
	p.mutex.Unlock()
	return client, nil
}

// ReleaseConnection 释放SSH连接
func (p *Pool) ReleaseConnection(info *ConnectionInfo) {
	key := connectionKey(info)

	p.mutex.Lock()
	defer p.mutex.Unlock()
	if conn, exists := p.connections[key]; exists {
		conn.inUse = false
		conn.lastUsed = time.Now()
	}
}

// Close 关闭连接池
func (p *Pool) Close() error {
	p.closeOnce.Do(func() { close(p.stop) })

	p.mutex.Lock()
	defer p.mutex.Unlock()
	var lastErr error
	for key, conn := range p.connections {
		if conn.client != nil {
			if err := conn.client.Close(); err != nil {
				lastErr = err
			}
		}
		delete(p.connections, key)
	}
	return lastErr
}

// Stats 连接池统计信息
func (p *Pool) Stats() PoolStats {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	active := p.activeCount()
	return PoolStats{
		Total:     len(p.connections),
		Active:    active,
		Idle:      len(p.connections) - active,
		MaxIdle:   p.maxIdle,
		MaxActive: p.maxActive,
	}
}

func connectionKey(info *ConnectionInfo) string {
	return fmt.Sprintf("%s@%s", info.Address(), info.Username)
}

func (p *Pool) activeCount() int {
	count := 0
	for _, conn := range p.connections {
		if conn.inUse {
			count++
		}
	}
	return count
}

func (p *Pool) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.cleanupExpiredConnections()
		}
	}
}

// cleanupExpiredConnections 清理空闲超时、已断开以及超出 maxIdle 的连接
func (p *Pool) cleanupExpiredConnections() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	now := time.Now()
	for key, conn := range p.connections {
		if conn.inUse {
			continue
		}
		if now.Sub(conn.lastUsed) > p.idleTimeout || !conn.client.IsConnected() {
			conn.client.Close()
			delete(p.connections, key)
		}
	}

	excess := len(p.connections) - p.activeCount() - p.maxIdle
	for key, conn := range p.connections {
		if excess <= 0 {
			break
		}
		if !conn.inUse {
			conn.client.Close()
			delete(p.connections, key)
			excess--
		}
	}
}
