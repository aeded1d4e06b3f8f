package pubmed

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/iWorld-y/pubmed_feed/pkg/logger"
	dm "github.com/iWorld-y/pubmed_feed/pkg/model"
)

// maxAuthors 只保留前 10 位作者
const maxAuthors = 10

// markup 含内联标记的节点（<i>、<sup> 等），保留原始内容后再展平
type markup struct {
	Inner string `xml:",innerxml"`
}

type author struct {
	LastName string `xml:"LastName"`
	ForeName string `xml:"ForeName"`
}

type pubDate struct {
	Year        string `xml:"Year"`
	Month       string `xml:"Month"`
	Day         string `xml:"Day"`
	MedlineDate string `xml:"MedlineDate"`
}

type articleID struct {
	IDType string `xml:"IdType,attr"`
	Value  string `xml:",chardata"`
}

// pubmedArticle efetch XML 中的单个 PubmedArticle 节点
type pubmedArticle struct {
	PMID    string `xml:"MedlineCitation>PMID"`
	Article struct {
		Journal struct {
			Title   string  `xml:"Title"`
			PubDate pubDate `xml:"JournalIssue>PubDate"`
		} `xml:"Journal"`
		Title    markup   `xml:"ArticleTitle"`
		Abstract []markup `xml:"Abstract>AbstractText"`
		Authors  []author `xml:"AuthorList>Author"`
	} `xml:"MedlineCitation>Article"`
	Keywords   []markup    `xml:"MedlineCitation>KeywordList>Keyword"`
	MeshTerms  []string    `xml:"MedlineCitation>MeshHeadingList>MeshHeading>DescriptorName"`
	ArticleIDs []articleID `xml:"PubmedData>ArticleIdList>ArticleId"`
}

// ParseArticles 流式解析 efetch 返回的 XML。
// 缺少 PMID 或标题的记录被丢弃；单个节点解析失败时跳过该节点，XML 本身损坏时中止并返回 model.ErrParse。
func ParseArticles(r io.Reader, fetchedAt time.Time, log *logrus.Entry) ([]dm.Article, error) {
	if log == nil {
		log = logger.Component(nil, "pubmed")
	}

	dec := xml.NewDecoder(r)
	dec.Entity = xml.HTMLEntity

	var articles []dm.Article
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return articles, fmt.Errorf("%w: efetch xml: %v", dm.ErrParse, err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "PubmedArticle" {
			continue
		}

		var node pubmedArticle
		if err := dec.DecodeElement(&node, &start); err != nil {
			var syntaxErr *xml.SyntaxError
			if errors.As(err, &syntaxErr) {
				return articles, fmt.Errorf("%w: efetch xml: %v", dm.ErrParse, err)
			}
			log.Warnf("跳过无法解析的文章节点: %v", err)
			continue
		}

		art, ok := node.toArticle(fetchedAt)
		if !ok {
			log.Debugf("丢弃缺少 PMID 或标题的记录: pmid=%q", node.PMID)
			continue
		}
		articles = append(articles, art)
	}
	return articles, nil
}

func (n *pubmedArticle) toArticle(fetchedAt time.Time) (dm.Article, bool) {
	art := dm.Article{
		PMID:      strings.TrimSpace(n.PMID),
		Title:     flatten(n.Article.Title.Inner),
		Journal:   collapse(n.Article.Journal.Title),
		PubDate:   n.Article.Journal.PubDate.String(),
		Authors:   authorNames(n.Article.Authors),
		Keywords:  []string{},
		MeshTerms: []string{},
		FetchedAt: fetchedAt,
	}
	if !art.Valid() {
		return dm.Article{}, false
	}

	var parts []string
	for _, seg := range n.Article.Abstract {
		if text := flatten(seg.Inner); text != "" {
			parts = append(parts, text)
		}
	}
	art.Abstract = strings.Join(parts, " ")

	for _, id := range n.ArticleIDs {
		if strings.EqualFold(id.IDType, "doi") {
			art.DOI = strings.TrimSpace(id.Value)
			break
		}
	}
	for _, kw := range n.Keywords {
		if text := flatten(kw.Inner); text != "" {
			art.Keywords = append(art.Keywords, text)
		}
	}
	for _, term := range n.MeshTerms {
		if term = collapse(term); term != "" {
			art.MeshTerms = append(art.MeshTerms, term)
		}
	}
	return art, true
}

// authorNames 在前 10 个作者节点中取有姓氏的，格式为 "名 姓" 或仅姓
func authorNames(list []author) []string {
	if len(list) > maxAuthors {
		list = list[:maxAuthors]
	}
	names := make([]string, 0, len(list))
	for _, a := range list {
		last := strings.TrimSpace(a.LastName)
		if last == "" {
			continue
		}
		if first := strings.TrimSpace(a.ForeName); first != "" {
			names = append(names, first+" "+last)
		} else {
			names = append(names, last)
		}
	}
	return names
}

// String 由 Year/Month/Day 拼接，缺失部分省略；都没有时使用 MedlineDate
func (d pubDate) String() string {
	var parts []string
	for _, p := range []string{d.Year, d.Month, d.Day} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return collapse(d.MedlineDate)
	}
	return strings.Join(parts, " ")
}

// flatten 把含内联标记的 XML 片段转成纯文本
func flatten(inner string) string {
	if !strings.ContainsAny(inner, "<&") {
		return collapse(inner)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(inner))
	if err != nil {
		return collapse(inner)
	}
	return collapse(doc.Text())
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
