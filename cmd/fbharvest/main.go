package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/socmint-lab/fbharvest/internal/core"
	"github.com/socmint-lab/fbharvest/internal/harvest"
	"github.com/socmint-lab/fbharvest/internal/models"
	"github.com/socmint-lab/fbharvest/internal/utils"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	verbose    bool
	logLevel   string

	// 采集参数
	feedURL    string
	kindStr    string
	cookieFile string
	cutoffStr  string
	batchSize  int
	headless   bool
	resume     bool
	outputDir  string
)

var rootCmd = &cobra.Command{
	Use:   "fbharvest",
	Short: "社媒信息流增量采集工具",
	Long: `FBHarvest - 浏览器驱动的社媒信息流增量采集工具 (Go版本)

以登录cookie驱动真实浏览器访问公开信息流,支持:
  • 信息流分页收割(截止时间+去重账本增量采集)
  • 批量并发详情提取(帖子/视频/Reel/直播/评论/表态名单)
  • 多级提取回退链(内嵌JSON → DOM选择器 → 文档化默认值)
  • 人机校验检测与降级续采
  • 泰语时间与计数解析
  • 断点续采(--resume)

使用示例:
  # 采集页面帖子,只要最近7天
  fbharvest -u https://example.com/somepage -k post --cutoff 7d

  # 采集短视频主页,批大小20,从检查点恢复
  fbharvest -u https://example.com/@someone -k video -b 20 --resume

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}

		logConfig := utils.LogConfig{
			Level:      config.Logging.Level,
			LogDir:     config.Logging.LogDir,
			MaxSize:    config.Logging.Rotation.MaxSize,
			MaxBackups: config.Logging.Rotation.MaxBackups,
			MaxAge:     config.Logging.Rotation.MaxAge,
			Compress:   config.Logging.Rotation.Compress,
		}

		// 命令行参数覆盖配置文件
		if logLevel != "" {
			logConfig.Level = logLevel
		}

		if err := utils.InitLogger(logConfig); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}

		if verbose {
			utils.Info("详细模式已启用")
		}

		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Ctrl+C后在批间优雅退出,已完成的批与检查点不丢
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		appConfig, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}

		if feedURL == "" {
			return cmd.Help()
		}

		if err := ValidateFlags(feedURL, kindStr, batchSize, cutoffStr); err != nil {
			return err
		}

		cutoff, err := utils.ParseCutoff(cutoffStr)
		if err != nil {
			return fmt.Errorf("无效的截止时间: %w", err)
		}

		if outputDir != "" {
			appConfig.Output.BaseDir = outputDir
		}

		runCfg := appConfig.BuildRunConfig(feedURL, models.ContentKind(kindStr), cookieFile, batchSize, headless, resume)
		runCfg.Cutoff = cutoff
		if err := runCfg.Validate(); err != nil {
			return err
		}

		harvester, err := harvest.NewHarvester(runCfg, appConfig)
		if err != nil {
			return fmt.Errorf("创建采集器失败: %w", err)
		}
		defer harvester.Close()

		if err := harvester.Run(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				utils.Warn("采集被中断,已产出部分结果与检查点")
				return nil
			}
			return fmt.Errorf("采集失败: %w", err)
		}

		// 显示统计结果
		stats := harvester.Stats()
		fmt.Println("\n==================================================")
		fmt.Println("📊 采集统计")
		fmt.Println("==================================================")
		fmt.Printf("✅ 发现条目数: %d\n", stats.Discovered)
		fmt.Printf("✅ 详情成功数: %d\n", stats.Detailed)
		fmt.Printf("⚠️  部分回退数: %d\n", stats.Partial)
		fmt.Printf("❌ 整条默认数: %d\n", stats.Defaulted)
		fmt.Printf("📦 批次数: %d, 滚动轮数: %d\n", stats.Batches, stats.ScrollRounds)
		fmt.Printf("⏱️  总耗时: %.2f秒\n", stats.Duration)
		fmt.Println("==================================================")

		utils.Info("✨ 采集任务完成!")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("FBHarvest %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
		fmt.Println("Go实现版本 - 浏览器驱动的信息流增量采集工具")
	},
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")

	// 采集参数
	rootCmd.Flags().StringVarP(&feedURL, "url", "u", "", "信息流入口URL (必需)")
	rootCmd.Flags().StringVarP(&kindStr, "kind", "k", "post", "内容类型 (post|video|reel|live|comment|reaction-list)")
	rootCmd.Flags().StringVar(&cookieFile, "cookie", "", "Cookie文件路径 (默认: cookie.json)")
	rootCmd.Flags().StringVar(&cutoffStr, "cutoff", "", "截止时间 (2006-01-02 | '2006-01-02 15:04' | 7d)")
	rootCmd.Flags().IntVarP(&batchSize, "batch-size", "b", 0, "详情提取批大小 (1-50, 默认: 10)")
	rootCmd.Flags().BoolVar(&headless, "headless", true, "无头浏览器模式")
	rootCmd.Flags().BoolVar(&resume, "resume", false, "从检查点恢复已见条目")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "输出目录 (默认: output)")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
