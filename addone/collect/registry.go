package collect

import (
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = map[string]ReportPlugin{}
)

// Register 注册报告模板插件
func Register(name string, plugin ReportPlugin) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = plugin
}

// Get 获取指定模板的插件，不存在时返回默认插件
func Get(name string) ReportPlugin {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if p, ok := registry[name]; ok {
		return p
	}
	return &DefaultPlugin{Requested: name}
}

// Lookup 获取指定模板的插件，不回退
func Lookup(name string) (ReportPlugin, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	p, ok := registry[name]
	return p, ok
}

// Names 已注册模板名称（有序）
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
