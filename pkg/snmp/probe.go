// Package snmp 通过 SNMP v2c 读取设备型号，作为清单中缺少 platform 时的兜底来源。
package snmp

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
)

const (
	// OIDEntPhysicalModelName ENTITY-MIB::entPhysicalModelName 列
	OIDEntPhysicalModelName = ".1.3.6.1.2.1.47.1.1.1.1.13"
	// OIDSysDescr SNMPv2-MIB::sysDescr.0
	OIDSysDescr = ".1.3.6.1.2.1.1.1.0"
)

// ErrNoModel 设备未返回可识别的型号
var ErrNoModel = errors.New("no model reported by snmp agent")

var (
	modelPattern  = regexp.MustCompile(`\b(N[0-9]{1,2}K-[A-Z0-9-]+)\b`)
	familyPattern = regexp.MustCompile(`(?i)\bn([0-9]{1,2})000\b`)
)

// Config SNMP 访问参数
type Config struct {
	Community string
	Port      uint16
	Timeout   time.Duration
	Retries   int
}

// Prober 型号探测
type Prober struct {
	cfg Config
}

// NewProber 创建探测器
func NewProber(cfg Config) *Prober {
	if cfg.Port == 0 {
		cfg.Port = 161
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.Community == "" {
		cfg.Community = "public"
	}
	return &Prober{cfg: cfg}
}

// Model 优先读取 entPhysicalModelName，其次从 sysDescr 推断；community 为空时使用默认值
func (p *Prober) Model(ctx context.Context, target, community string) (string, error) {
	if community == "" {
		community = p.cfg.Community
	}
	client := &gosnmp.GoSNMP{
		Target:    target,
		Port:      p.cfg.Port,
		Community: community,
		Version:   gosnmp.Version2c,
		Timeout:   p.cfg.Timeout,
		Retries:   p.cfg.Retries,
		Context:   ctx,
		Transport: "udp",
	}
	if err := client.Connect(); err != nil {
		return "", fmt.Errorf("snmp connect %s: %w", target, err)
	}
	defer client.Conn.Close()

	if pdus, err := client.BulkWalkAll(OIDEntPhysicalModelName); err == nil {
		if model := firstModelName(pdus); model != "" {
			return model, nil
		}
	}

	result, err := client.Get([]string{OIDSysDescr})
	if err != nil {
		return "", fmt.Errorf("snmp get sysDescr from %s: %w", target, err)
	}
	for _, v := range result.Variables {
		if v.Type != gosnmp.OctetString {
			continue
		}
		if model := ModelFromSysDescr(octets(v.Value)); model != "" {
			return model, nil
		}
	}
	return "", ErrNoModel
}

// firstModelName 返回第一个非空且形如 Nexus 型号的 entPhysicalModelName
func firstModelName(pdus []gosnmp.SnmpPDU) string {
	var fallback string
	for _, pdu := range pdus {
		if pdu.Type != gosnmp.OctetString {
			continue
		}
		name := strings.TrimSpace(octets(pdu.Value))
		if name == "" {
			continue
		}
		if modelPattern.MatchString(name) {
			return name
		}
		if fallback == "" {
			fallback = name
		}
	}
	return fallback
}

// ModelFromSysDescr 从 sysDescr 中提取型号，只能识别系列时返回如 N9K
func ModelFromSysDescr(descr string) string {
	if m := modelPattern.FindStringSubmatch(descr); m != nil {
		return m[1]
	}
	if m := familyPattern.FindStringSubmatch(descr); m != nil {
		return "N" + m[1] + "K"
	}
	return ""
}

func octets(v interface{}) string {
	switch b := v.(type) {
	case []byte:
		return string(b)
	case string:
		return b
	default:
		return ""
	}
}
