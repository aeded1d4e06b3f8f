package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	dm "github.com/iWorld-y/pubmed_feed/pkg/model"
	"github.com/iWorld-y/pubmed_feed/pkg/report"
	"github.com/iWorld-y/pubmed_feed/pkg/storage"
)

var (
	listLimit  int
	exportPath string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "显示检索历史",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *storage.Store) error {
			list, err := store.ListSearchHistory(cmd.Context(), listLimit)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "暂无检索历史")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\t时间\t找到\t新增\t兴趣\t检索式")
			for _, h := range list {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\t%s\n",
					h.ID, h.CreatedAt.Local().Format(time.DateTime), h.TotalFound, h.NewArticles,
					h.NaturalLanguage, truncate(h.Query, 80))
			}
			return tw.Flush()
		})
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "删除一条检索历史",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid history id %q", args[0])
		}
		return withStore(func(store *storage.Store) error {
			ok, err := store.DeleteSearchHistory(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("记录不存在: %d", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已删除 %d\n", id)
			return nil
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "显示入库统计",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *storage.Store) error {
			st, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "文章总数: %d\n报告总数: %d\n检索次数: %d\n", st.TotalArticles, st.TotalReports, st.TotalSearches)
			if len(st.ArticlesByDate) > 0 {
				fmt.Fprintln(out, "\n按抓取日期:")
				for _, dc := range st.ArticlesByDate {
					fmt.Fprintf(out, "  %s  %d\n", dc.Date, dc.Count)
				}
			}
			return nil
		})
	},
}

var reportsCmd = &cobra.Command{
	Use:   "reports [ID...]",
	Short: "列出报告；指定 ID 时显示文件清单，配合 --export 打包为 zip",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *storage.Store) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				list, err := store.ListReports(cmd.Context(), listLimit)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\t日期\t文章数\t文件数")
				for _, r := range list {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", r.ID, r.Date, r.ArticleCount, len(r.FilePaths))
				}
				return tw.Flush()
			}

			var found []*dm.Report
			for _, id := range args {
				r, err := store.GetReport(cmd.Context(), id)
				if err != nil {
					return err
				}
				found = append(found, r)
				if exportPath == "" {
					printReport(out, r)
				}
			}
			if exportPath == "" {
				return nil
			}

			f, err := os.Create(exportPath)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := report.NewAssembler(cfg.Reports.Dir, store, nil).Export(f, found...); err != nil {
				return err
			}
			fmt.Fprintf(out, "已导出 %d 份报告到 %s\n", len(found), exportPath)
			return nil
		})
	},
}

func init() {
	historyCmd.Flags().IntVarP(&listLimit, "limit", "n", 50, "最多显示条数")
	reportsCmd.Flags().IntVarP(&listLimit, "limit", "n", 50, "最多显示条数")
	reportsCmd.Flags().StringVarP(&exportPath, "export", "o", "", "把指定报告打包为 zip 文件")
	historyCmd.AddCommand(historyDeleteCmd)
}

// withStore 只需要数据库的命令不初始化大模型
func withStore(fn func(store *storage.Store) error) error {
	store, err := storage.Open(cfg.DB, nil)
	if err != nil {
		return fmt.Errorf("无法连接数据库: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
