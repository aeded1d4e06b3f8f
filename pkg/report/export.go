package report

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	dm "github.com/iWorld-y/pubmed_feed/pkg/model"
)

// WriteSummary 在报告目录下写出 summary_<id>.txt，列出本次的文章，返回文件路径
func (a *Assembler) WriteSummary(r *dm.Report, items []Item) (string, error) {
	var sb strings.Builder
	sb.WriteString("PubMed 搜索报告\n")
	fmt.Fprintf(&sb, "报告ID: %s\n", r.ID)
	fmt.Fprintf(&sb, "生成时间: %s\n", r.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "文章数量: %d\n", r.ArticleCount)
	sb.WriteString("\n文章列表:\n")

	included := make(map[string]bool, len(r.ArticleIDs))
	for _, id := range r.ArticleIDs {
		included[id] = true
	}
	for _, item := range items {
		art := item.Article
		if !included[art.PMID] {
			continue
		}
		fmt.Fprintf(&sb, "\n- %s\n", art.Title)
		fmt.Fprintf(&sb, "  PMID: %s\n", art.PMID)
		fmt.Fprintf(&sb, "  期刊: %s\n", art.Journal)
		fmt.Fprintf(&sb, "  链接: %s\n", art.URL())
	}

	dir := filepath.Join(a.dir, r.Date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create report dir: %v", dm.ErrPersistence, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("summary_%s.txt", r.ID))
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return "", fmt.Errorf("%w: write summary: %v", dm.ErrPersistence, err)
	}
	return path, nil
}

// Export 把报告文件打包为 zip，条目名为 <date>/<id 前 8 位>/<key>.md，同一天的多份报告互不覆盖；
// 磁盘上已不存在的文件跳过
func (a *Assembler) Export(w io.Writer, reports ...*dm.Report) error {
	zw := zip.NewWriter(w)

	for _, r := range reports {
		keys := make([]string, 0, len(r.FilePaths))
		for k := range r.FilePaths {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, key := range keys {
			if err := addFile(zw, r.FilePaths[key], entryName(r, key)); err != nil {
				if errors.Is(err, os.ErrNotExist) {
					a.log.Warnf("报告文件已不存在，跳过: %s", r.FilePaths[key])
					continue
				}
				zw.Close()
				return err
			}
		}
	}
	return zw.Close()
}

func entryName(r *dm.Report, key string) string {
	return r.Date + "/" + shortID(r.ID) + "/" + key + ".md"
}

func addFile(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	dst, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, f)
	return err
}
