package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iWorld-y/pubmed_feed/pkg/engine"
	dm "github.com/iWorld-y/pubmed_feed/pkg/model"
	"github.com/iWorld-y/pubmed_feed/pkg/report"
)

var (
	runInterests []string
	runQuery     string
	runDays      int
	runMax       int
	runDryRun    bool

	genSelection []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "检索新文献、生成文案并输出报告",
	Long: `执行一次完整流程：兴趣 -> 检索式 -> PubMed 检索 -> 去重 -> 生成四种文案 -> 入库 -> 报告。
未指定 -i 时使用配置文件中的全部兴趣主题。`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, cleanup, err := newComponents(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		out := cmd.OutOrStdout()
		days, maxResults := runDays, runMax
		if days == 0 {
			days = cfg.PubMed.SearchDays
		}
		if maxResults == 0 {
			maxResults = cfg.PubMed.MaxResults
		}
		fmt.Fprintln(out, "[开始搜索]")
		fmt.Fprintf(out, "  日期范围: 最近 %d 天\n", days)
		fmt.Fprintf(out, "  最大结果: %d 篇\n", maxResults)
		if runDryRun {
			fmt.Fprintln(out, "  [模拟模式] 不保存文章，不生成文案")
		}

		res, err := app.engine.Run(cmd.Context(), engine.RunOptions{
			Interests:  runInterests,
			Query:      runQuery,
			Days:       runDays,
			MaxResults: runMax,
			DryRun:     runDryRun,
		})
		if res != nil {
			printRunResult(out, res)
		}
		return err
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate PMID...",
	Short: "为指定 PMID 生成文案并组装报告",
	Long: `拉取指定文章，生成四种文案后入库并写出报告。
--select 形如 wechat_long=0 或 xiaohongshu_short=1,2，下标对应 PMID 的顺序；
不指定时每篇文章的四种文案全部写出。`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sel, err := parseSelection(genSelection)
		if err != nil {
			return err
		}

		app, cleanup, err := newComponents(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		r, err := app.engine.Generate(cmd.Context(), args, sel)
		if err != nil {
			return err
		}
		printReport(cmd.OutOrStdout(), r)
		return nil
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview PMID",
	Short: "预览单篇文章及其文案（不入库）",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, cleanup, err := newComponents(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		a, content, err := app.engine.Preview(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		authors := a.Authors
		if len(authors) > 5 {
			authors = authors[:5]
		}
		fmt.Fprintf(out, "[预览文章] PMID: %s\n\n", a.PMID)
		fmt.Fprintf(out, "标题: %s\n", a.Title)
		fmt.Fprintf(out, "作者: %s\n", strings.Join(authors, ", "))
		fmt.Fprintf(out, "期刊: %s\n", a.Journal)
		fmt.Fprintf(out, "日期: %s\n", a.PubDate)
		fmt.Fprintf(out, "链接: %s\n", a.URL())
		fmt.Fprintf(out, "\n摘要:\n%s\n", a.Abstract)
		for _, v := range dm.Variants {
			fmt.Fprintf(out, "\n===== %s =====\n%s\n", v, content[v])
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringArrayVarP(&runInterests, "interest", "i", nil, "指定兴趣主题，可重复（覆盖配置文件）")
	runCmd.Flags().StringVarP(&runQuery, "query", "q", "", "直接使用 PubMed 检索式，跳过翻译")
	runCmd.Flags().IntVarP(&runDays, "days", "d", 0, "检索最近 N 天的文章（覆盖配置文件）")
	runCmd.Flags().IntVarP(&runMax, "max", "m", 0, "最多获取的文章数量（覆盖配置文件）")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "模拟运行：只检索和去重，记录检索历史")

	generateCmd.Flags().StringArrayVarP(&genSelection, "select", "s", nil, "挑选方式 <variant>=<下标,...>，可重复")
}

// parseSelection 解析 wechat_long=0 形式的挑选参数，空输入返回 nil 表示全部写出
func parseSelection(specs []string) (report.Selection, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	sel := report.Selection{}
	for _, spec := range specs {
		key, list, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("invalid selection %q, want <variant>=<index,...>", spec)
		}
		v, ok := dm.ParseVariant(strings.TrimSpace(key))
		if !ok {
			return nil, fmt.Errorf("unknown variant %q", key)
		}
		for _, s := range strings.Split(list, ",") {
			idx, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil {
				return nil, fmt.Errorf("invalid index %q in %q", s, spec)
			}
			sel[v] = append(sel[v], idx)
		}
	}
	return sel, nil
}

func printRunResult(out io.Writer, res *engine.RunResult) {
	fmt.Fprintf(out, "\n检索式: %s\n", res.Query)
	fmt.Fprintf(out, "找到 %d 篇，新文章 %d 篇\n", res.TotalFound, res.NewArticles)

	if res.DryRun {
		for i, sa := range res.Articles {
			fmt.Fprintf(out, "  %2d. [%.0f] %s\n      %s  %s\n", i+1, sa.Score, sa.Article.Title, sa.Article.Journal, sa.Article.URL())
		}
		return
	}
	if res.Report == nil {
		fmt.Fprintln(out, "[结果] 没有新文章需要生成报告")
		return
	}
	printReport(out, res.Report)
	if res.SummaryPath != "" {
		fmt.Fprintf(out, "  摘要文件: %s\n", res.SummaryPath)
	}
}

func printReport(out io.Writer, r *dm.Report) {
	fmt.Fprintln(out, "\n[报告]")
	fmt.Fprintf(out, "  报告 ID: %s\n", r.ID)
	fmt.Fprintf(out, "  文章数: %d\n", r.ArticleCount)
	fmt.Fprintf(out, "  文件数: %d\n", len(r.FilePaths))

	keys := make([]string, 0, len(r.FilePaths))
	for k := range r.FilePaths {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "    %s -> %s\n", k, r.FilePaths[k])
	}
}
