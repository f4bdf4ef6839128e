package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sshcollectorpro/switchreport/internal/database"
	"github.com/sshcollectorpro/switchreport/internal/model"
	"github.com/sshcollectorpro/switchreport/pkg/logger"
)

var (
	// ErrDeviceNotFound 清单中没有该序列号
	ErrDeviceNotFound = errors.New("device not found")
	// ErrInvalidDevice 设备字段不完整或取值非法
	ErrInvalidDevice = errors.New("invalid device")
	// ErrPlatformUnknown 清单未登记平台且无法探测
	ErrPlatformUnknown = errors.New("device platform unknown")
)

// ModelProber 通过带外方式探测设备型号（SNMP）
type ModelProber interface {
	Model(ctx context.Context, target, community string) (string, error)
}

// InventoryService 设备清单，按序列号解析连接信息与平台
type InventoryService struct {
	db     *gorm.DB
	prober ModelProber
}

// NewInventoryService 创建清单服务；prober 为 nil 时不做 SNMP 兜底
func NewInventoryService(db *gorm.DB, prober ModelProber) *InventoryService {
	return &InventoryService{db: db, prober: prober}
}

// normalizeDevice 校验并补齐默认值
func normalizeDevice(dev *model.Device) error {
	dev.SerialNumber = strings.TrimSpace(dev.SerialNumber)
	dev.IP = strings.TrimSpace(dev.IP)
	dev.Platform = strings.TrimSpace(dev.Platform)
	if dev.SerialNumber == "" {
		return fmt.Errorf("%w: serial_number is required", ErrInvalidDevice)
	}
	if dev.IP == "" {
		return fmt.Errorf("%w: ip is required for %s", ErrInvalidDevice, dev.SerialNumber)
	}
	dev.Protocol = strings.ToLower(strings.TrimSpace(dev.Protocol))
	if dev.Protocol == "" {
		dev.Protocol = model.ProtocolSSH
	}
	if dev.Protocol != model.ProtocolSSH && dev.Protocol != model.ProtocolTelnet {
		return fmt.Errorf("%w: unsupported protocol %q", ErrInvalidDevice, dev.Protocol)
	}
	if dev.Port < 0 || dev.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidDevice, dev.Port)
	}
	dev.Port = dev.ConnectPort()
	return nil
}

// Upsert 新增或按序列号更新设备
func (s *InventoryService) Upsert(ctx context.Context, dev *model.Device) error {
	if err := normalizeDevice(dev); err != nil {
		return err
	}
	return database.WithRetry(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "serial_number"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"hostname", "ip", "port", "protocol", "username", "password",
				"key_file", "platform", "snmp_community", "updated_at",
			}),
		}).Create(dev).Error
	}, 3, 0)
}

// Get 按序列号查询设备
func (s *InventoryService) Get(ctx context.Context, serial string) (*model.Device, error) {
	var dev model.Device
	err := s.db.WithContext(ctx).First(&dev, "serial_number = ?", strings.TrimSpace(serial)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, serial)
	}
	if err != nil {
		return nil, err
	}
	return &dev, nil
}

// List 按序列号排序返回全部设备
func (s *InventoryService) List(ctx context.Context) ([]model.Device, error) {
	var devices []model.Device
	if err := s.db.WithContext(ctx).Order("serial_number").Find(&devices).Error; err != nil {
		return nil, err
	}
	return devices, nil
}

// Delete 删除设备
func (s *InventoryService) Delete(ctx context.Context, serial string) error {
	res := s.db.WithContext(ctx).Delete(&model.Device{}, "serial_number = ?", strings.TrimSpace(serial))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, serial)
	}
	return nil
}

// Platform 返回设备型号（如 N9K-C93180YC-EX）；未登记时经 SNMP 探测并回写
func (s *InventoryService) Platform(ctx context.Context, serial string) (string, error) {
	dev, err := s.Get(ctx, serial)
	if err != nil {
		return "", err
	}
	if dev.Platform != "" {
		return dev.Platform, nil
	}
	if s.prober == nil {
		return "", fmt.Errorf("%w: %s", ErrPlatformUnknown, serial)
	}

	platform, err := s.prober.Model(ctx, dev.IP, dev.SNMPCommunity)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrPlatformUnknown, serial, err)
	}
	logger.WithDevice(serial).Infof("Platform discovered via SNMP: %s", platform)
	if err := s.db.WithContext(ctx).Model(&model.Device{}).
		Where("serial_number = ?", dev.SerialNumber).
		Update("platform", platform).Error; err != nil {
		logger.WithDevice(serial).WithError(err).Warn("Failed to persist discovered platform")
	}
	return platform, nil
}

// MarkReported 记录最近一次报告时间
func (s *InventoryService) MarkReported(ctx context.Context, serial string, at time.Time) error {
	return s.db.WithContext(ctx).Model(&model.Device{}).
		Where("serial_number = ?", serial).
		Update("last_report_at", at).Error
}

// deviceSeed 设备清单 YAML 文件结构
type deviceSeed struct {
	Devices []model.Device `yaml:"devices"`
}

// LoadDeviceSeed 从 YAML 导入设备，返回导入数量；单条非法时整体失败
func (s *InventoryService) LoadDeviceSeed(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read device seed: %w", err)
	}
	var seed deviceSeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return 0, fmt.Errorf("failed to parse device seed %s: %w", path, err)
	}
	for i := range seed.Devices {
		// 凭据允许写成 ${ENV_VAR}
		seed.Devices[i].Password = expandSecret(seed.Devices[i].Password)
		seed.Devices[i].SNMPCommunity = expandSecret(seed.Devices[i].SNMPCommunity)
		if err := normalizeDevice(&seed.Devices[i]); err != nil {
			return 0, fmt.Errorf("device #%d: %w", i+1, err)
		}
	}
	for i := range seed.Devices {
		if err := s.Upsert(ctx, &seed.Devices[i]); err != nil {
			return i, fmt.Errorf("failed to import %s: %w", seed.Devices[i].SerialNumber, err)
		}
	}
	return len(seed.Devices), nil
}

// expandSecret 整个值为 ${VAR} 时替换为环境变量，其余原样保留
func expandSecret(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	return s
}
