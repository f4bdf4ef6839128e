package model

import (
	"time"
)

// 采集协议
const (
	ProtocolSSH    = "ssh"
	ProtocolTelnet = "telnet"
)

// Device 设备清单条目，以序列号标识
type Device struct {
	SerialNumber  string     `json:"serial_number" yaml:"serial_number" gorm:"primaryKey;type:varchar(64)"`
	Hostname      string     `json:"hostname" yaml:"hostname" gorm:"type:varchar(128)"`
	IP            string     `json:"ip" yaml:"ip" gorm:"type:varchar(64);not null;index"`
	Port          int        `json:"port" yaml:"port" gorm:"not null;default:22"`
	Protocol      string     `json:"protocol" yaml:"protocol" gorm:"type:varchar(16);not null;default:'ssh'"`
	Username      string     `json:"username" yaml:"username" gorm:"type:varchar(64)"`
	Password      string     `json:"password,omitempty" yaml:"password" gorm:"type:varchar(256)"`
	KeyFile       string     `json:"key_file,omitempty" yaml:"key_file" gorm:"type:varchar(256)"`
	Platform      string     `json:"platform" yaml:"platform" gorm:"type:varchar(64)"`
	SNMPCommunity string     `json:"snmp_community,omitempty" yaml:"snmp_community" gorm:"type:varchar(128)"`
	LastReportAt  *time.Time `json:"last_report_at,omitempty" yaml:"-"`
	CreatedAt     time.Time  `json:"created_at" yaml:"-" gorm:"autoCreateTime"`
	UpdatedAt     time.Time  `json:"updated_at" yaml:"-" gorm:"autoUpdateTime"`
}

// TableName 表名
func (Device) TableName() string {
	return "devices"
}

// Redacted 返回去掉凭据的副本，用于接口输出
func (d Device) Redacted() Device {
	d.Password = ""
	d.SNMPCommunity = ""
	return d
}

// ConnectPort 未配置端口时按协议取默认值
func (d *Device) ConnectPort() int {
	if d.Port > 0 && d.Port <= 65535 {
		return d.Port
	}
	if d.Protocol == ProtocolTelnet {
		return 23
	}
	return 22
}
