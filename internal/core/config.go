package core

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/socmint-lab/fbharvest/internal/models"
	"github.com/spf13/viper"
)

// Config 应用程序配置
type Config struct {
	Harvest  HarvestConfig  `mapstructure:"harvest"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Output   OutputConfig   `mapstructure:"output"`
	Resource ResourceConfig `mapstructure:"resource"`
}

// HarvestConfig 采集配置
type HarvestConfig struct {
	BatchSize       int    `mapstructure:"batch_size"`        // 批大小
	MaxScrollRounds int    `mapstructure:"max_scroll_rounds"` // 单次分页最大滚动轮数
	StallRetries    int    `mapstructure:"stall_retries"`     // 空轮重试上限
	MaxRetries      int    `mapstructure:"max_retries"`       // 导航重试次数
	NavTimeout      int    `mapstructure:"nav_timeout"`       // 导航超时(秒)
	CaptchaMaxWait  int    `mapstructure:"captcha_max_wait"`  // CAPTCHA等待上限(秒)
	ScrollSettle    int    `mapstructure:"scroll_settle"`     // 滚动后等待时间(秒)
	ScrollPerMinute int    `mapstructure:"scroll_per_minute"` // 滚动/导航限速(次/分钟)
	Headless        bool   `mapstructure:"headless"`          // 无头模式
	CookieFile      string `mapstructure:"cookie_file"`       // Cookie文件路径
	UserAgent       string `mapstructure:"user_agent"`        // 浏览器User-Agent
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// ResourceConfig 资源限制配置(约束并发详情标签页数量)
type ResourceConfig struct {
	SafetyReserveMemory int `mapstructure:"safety_reserve_memory"` // 安全保留内存(MB)
	SafetyThreshold     int `mapstructure:"safety_threshold"`      // 安全阈值(MB)
	CPULoadThreshold    int `mapstructure:"cpu_load_threshold"`    // CPU负载阈值(%)
	MaxTabsLimit        int `mapstructure:"max_tabs_limit"`        // 绝对最大标签页数
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		v.AddConfigPath("./configs")
		v.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".fbharvest"))
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// 配置文件不存在时使用默认值
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 采集配置默认值
	v.SetDefault("harvest.batch_size", 10)
	v.SetDefault("harvest.max_scroll_rounds", 50)
	v.SetDefault("harvest.stall_retries", 3)
	v.SetDefault("harvest.max_retries", 2)
	v.SetDefault("harvest.nav_timeout", 30)
	v.SetDefault("harvest.captcha_max_wait", 30)
	v.SetDefault("harvest.scroll_settle", 3)
	v.SetDefault("harvest.scroll_per_minute", 30)
	v.SetDefault("harvest.headless", true)
	v.SetDefault("harvest.cookie_file", "cookie.json")
	v.SetDefault("harvest.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	// 日志配置默认值
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	// 输出配置默认值
	v.SetDefault("output.base_dir", "output")

	// 资源限制默认值
	v.SetDefault("resource.safety_reserve_memory", 1024)
	v.SetDefault("resource.safety_threshold", 500)
	v.SetDefault("resource.cpu_load_threshold", 80)
	v.SetDefault("resource.max_tabs_limit", 16)
}

// BuildRunConfig 将配置文件与命令行参数合并为运行配置
// 命令行参数优先于配置文件
func (c *Config) BuildRunConfig(
	feedURL string,
	kind models.ContentKind,
	cookieFile string,
	batchSize int,
	headless bool,
	resume bool,
) models.RunConfig {
	rc := models.RunConfig{
		FeedRootURL:     feedURL,
		Kind:            kind,
		CookieFile:      c.Harvest.CookieFile,
		BatchSize:       c.Harvest.BatchSize,
		MaxScrollRounds: c.Harvest.MaxScrollRounds,
		StallRetries:    c.Harvest.StallRetries,
		MaxRetries:      c.Harvest.MaxRetries,
		NavTimeout:      c.Harvest.NavTimeout,
		CaptchaMaxWait:  c.Harvest.CaptchaMaxWait,
		Headless:        headless,
		Resume:          resume,
	}
	if cookieFile != "" {
		rc.CookieFile = cookieFile
	}
	if batchSize > 0 {
		rc.BatchSize = batchSize
	}
	return rc
}
