package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iWorld-y/pubmed_feed/pkg/config"
	"github.com/iWorld-y/pubmed_feed/pkg/logger"
)

var (
	// configPath --config
	configPath string
	// cfg 在 PersistentPreRunE 中加载
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "pubmed_feed",
	Short: "PubMed 文献聚合与文案生成工具",
	Long: `pubmed_feed 按研究兴趣检索最近发表的 PubMed 文献，
为新文章生成小红书、公众号的长短文案，并按日期归档为报告。

示例:
  pubmed_feed run                      使用配置中的全部兴趣主题
  pubmed_feed run -i "糖尿病治疗" -d 14   指定主题，检索最近 14 天
  pubmed_feed run --dry-run            只检索和去重，不生成文案
  pubmed_feed preview 39012345         预览指定 PMID 的文章
  pubmed_feed serve                    启动 HTTP 接口和定时任务`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.LoadConfig(config.ResolvePath(configPath))
		if err != nil {
			return fmt.Errorf("无法加载配置文件: %w", err)
		}
		if err := logger.InitLogger(c.Log.Level, c.Log.File); err != nil {
			return fmt.Errorf("无法初始化日志: %w", err)
		}
		cfg = c
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		fmt.Sprintf("配置文件路径 (默认读取 $%s 或 %s)", config.EnvConfigPath, config.DefaultPath))

	rootCmd.AddCommand(runCmd, generateCmd, previewCmd, historyCmd, statsCmd, reportsCmd, serveCmd, configCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "[错误] %v\n", err)
		os.Exit(1)
	}
}
