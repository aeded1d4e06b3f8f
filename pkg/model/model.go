package model

import (
	"fmt"
	"time"
)

// PubMedArticleURL PubMed 文章详情页地址模板
const PubMedArticleURL = "https://pubmed.ncbi.nlm.nih.gov/%s/"

// Article PubMed 文章元数据
type Article struct {
	PMID         string    `json:"pmid"`
	Title        string    `json:"title"`
	Abstract     string    `json:"abstract"`
	Authors      []string  `json:"authors"`
	Journal      string    `json:"journal"`
	PubDate      string    `json:"pub_date"`
	DOI          string    `json:"doi,omitempty"`
	Keywords     []string  `json:"keywords"`
	MeshTerms    []string  `json:"mesh_terms"`
	QualityScore float64   `json:"quality_score"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// URL 返回文章在 PubMed 上的链接
func (a *Article) URL() string {
	return fmt.Sprintf(PubMedArticleURL, a.PMID)
}

// Valid PMID 和标题缺一不可
func (a *Article) Valid() bool {
	return a.PMID != "" && a.Title != ""
}

// SearchHistoryEntry 一次检索的记录
type SearchHistoryEntry struct {
	ID              int64     `json:"id"`
	Query           string    `json:"query"`
	NaturalLanguage string    `json:"natural_language,omitempty"`
	TotalFound      int       `json:"total_found"`
	NewArticles     int       `json:"new_articles"`
	CreatedAt       time.Time `json:"created_at"`
}

// Report 一次流水线运行产出的文案报告
type Report struct {
	ID           string            `json:"id"`
	Date         string            `json:"date"` // YYYY-MM-DD
	ArticleIDs   []string          `json:"article_ids"`
	FilePaths    map[string]string `json:"file_paths"` // 文件键 -> 文件路径
	CreatedAt    time.Time         `json:"created_at"`
	ArticleCount int               `json:"article_count"`
}

// DateCount 按抓取日期聚合的文章数，Date 为本地时区的 YYYY-MM-DD
type DateCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Stats 存储统计
type Stats struct {
	TotalArticles  int         `json:"total_articles"`
	TotalReports   int         `json:"total_reports"`
	TotalSearches  int         `json:"total_searches"`
	ArticlesByDate []DateCount `json:"articles_by_date"`
}
