package harvest

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/socmint-lab/fbharvest/internal/core"
)

// 单个详情标签页的平均内存开销估计
const tabMemoryUsage = 100 * 1024 * 1024

// ResourceMonitor 系统资源监控器
// 详情抓取按批并发开标签页,批大小上限由可用内存和CPU负载实时决定,
// 避免在低配主机上把浏览器撑爆
type ResourceMonitor struct {
	cfg         core.ResourceConfig
	totalMemory uint64

	mu           sync.RWMutex
	lastMemStats runtime.MemStats
	lastCPUUsage float64

	cacheMu       sync.RWMutex
	cachedMaxTabs int
	lastCacheTime time.Time

	cancel context.CancelFunc
}

// NewResourceMonitor 创建监控器并读取系统总内存
func NewResourceMonitor(cfg core.ResourceConfig) *ResourceMonitor {
	var totalMem uint64
	if vmStat, err := mem.VirtualMemory(); err != nil {
		log.Warn().Err(err).Msg("获取系统内存失败,按4GB估算")
		totalMem = 4 * 1024 * 1024 * 1024
	} else {
		totalMem = vmStat.Total
		log.Info().Msgf("系统总内存: %.2f GB", float64(totalMem)/(1024*1024*1024))
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return &ResourceMonitor{
		cfg:          cfg,
		totalMemory:  totalMem,
		lastMemStats: memStats,
	}
}

// Start 启动后台采样goroutine,幂等
func (rm *ResourceMonitor) Start(interval time.Duration) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	rm.cancel = cancel

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rm.sample()
			}
		}
	}()
}

// Stop 停止后台采样
func (rm *ResourceMonitor) Stop() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.cancel != nil {
		rm.cancel()
		rm.cancel = nil
	}
}

// sample 采样一次内存与CPU
func (rm *ResourceMonitor) sample() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	// 100ms采样间隔,perCPU=false取全核平均
	cpuUsage := 0.0
	if percentages, err := cpu.Percent(100*time.Millisecond, false); err != nil {
		log.Warn().Err(err).Msg("获取CPU使用率失败")
	} else if len(percentages) > 0 {
		cpuUsage = percentages[0]
	}

	rm.mu.Lock()
	rm.lastMemStats = memStats
	rm.lastCPUUsage = cpuUsage
	rm.mu.Unlock()
}

// availableMemory 可用内存(已扣除安全保留)
func (rm *ResourceMonitor) availableMemory() int64 {
	rm.mu.RLock()
	alloc := rm.lastMemStats.Alloc
	rm.mu.RUnlock()
	reserve := int64(rm.cfg.SafetyReserveMemory) * 1024 * 1024
	return int64(rm.totalMemory) - int64(alloc) - reserve
}

// CalculateMaxTabs 当前允许并发的详情标签页上限
// 结果缓存1秒,详情分派每个条目都会查询一次
func (rm *ResourceMonitor) CalculateMaxTabs() int {
	rm.cacheMu.RLock()
	if time.Since(rm.lastCacheTime) < time.Second && rm.cachedMaxTabs > 0 {
		cached := rm.cachedMaxTabs
		rm.cacheMu.RUnlock()
		return cached
	}
	rm.cacheMu.RUnlock()

	threshold := int64(rm.cfg.SafetyThreshold) * 1024 * 1024
	available := rm.availableMemory()

	byMemory := 1
	if available > threshold {
		byMemory = int((available - threshold) / tabMemoryUsage)
		if byMemory < 1 {
			byMemory = 1
		}
	}

	result := byMemory
	if n := runtime.NumCPU(); n < result {
		result = n
	}
	if rm.cfg.MaxTabsLimit > 0 && rm.cfg.MaxTabsLimit < result {
		result = rm.cfg.MaxTabsLimit
	}
	if result < 1 {
		result = 1
	}

	rm.cacheMu.Lock()
	rm.cachedMaxTabs = result
	rm.lastCacheTime = time.Now()
	rm.cacheMu.Unlock()

	return result
}

// CheckAvailability 检查当前资源是否允许再开一个详情标签页
func (rm *ResourceMonitor) CheckAvailability() (bool, string) {
	threshold := int64(rm.cfg.SafetyThreshold) * 1024 * 1024
	available := rm.availableMemory()
	if available < threshold {
		availableMB := available / (1024 * 1024)
		log.Warn().Msgf("可用内存不足(当前%dMB),标签页创建受限", availableMB)
		return false, fmt.Sprintf("内存不足(当前%dMB)", availableMB)
	}

	// 阈值>=200视为禁用CPU检查
	if rm.cfg.CPULoadThreshold < 200 {
		rm.mu.RLock()
		cpuUsage := rm.lastCPUUsage
		rm.mu.RUnlock()
		if cpuUsage > float64(rm.cfg.CPULoadThreshold) {
			return false, fmt.Sprintf("CPU负载过高(当前%.1f%%)", cpuUsage)
		}
	}

	return true, ""
}
