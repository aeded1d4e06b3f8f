package content

import (
	"fmt"
	"strings"

	dm "github.com/iWorld-y/pubmed_feed/pkg/model"
)

const noAbstract = "无摘要"

func xiaohongshuLongPrompt(a *dm.Article) string {
	return fmt.Sprintf(`请为一篇医学AI论文生成小红书文案（技术猎奇角度，200-300字）。

要求：
1. 开头用吸睛标题，带emoji
2. 强调技术突破和创新点
3. 提及关键数字和性能指标
4. 指出技术局限或需要注意的问题
5. 结尾引导互动或查看原文
6. 添加3-5个相关话题标签
7. 口语化，适合技术爱好者阅读

论文信息：
标题：%s
期刊：%s
摘要：%s
关键词：%s

生成格式：
[标题]

[正文内容]

[标签]`, a.Title, a.Journal, abstractOr(a, 1000), joinOr(a.Keywords, 5, "N/A"))
}

func xiaohongshuShortPrompt(a *dm.Article) string {
	return fmt.Sprintf(`请为一篇医学AI论文生成小红书短文案（快讯式，80-120字）。

要求：
1. 一句话概括核心发现
2. 列出2-3个关键数字
3. 添加2-3个emoji
4. 附原文链接提示
5. 极其简洁，适合快速阅读

论文信息：
标题：%s
期刊：%s
关键信息：%s

生成格式：
[一句话总结]

[关键数据]

[链接提示 + 标签]`, a.Title, a.Journal, abstractOr(a, 500))
}

func wechatLongPrompt(a *dm.Article) string {
	abstract := a.Abstract
	if abstract == "" {
		abstract = noAbstract
	}
	doi := a.DOI
	if doi == "" {
		doi = "N/A"
	}
	return fmt.Sprintf(`请为一篇医学AI论文生成公众号深度解读文章（专业严谨角度，800-1200字）。

要求：
1. 标题：专业且吸引人，体现研究价值
2. 研究背景：为什么做这个研究（100-150字）
3. 研究方法：技术方案简述（150-200字）
4. 核心结果：保留完整统计学指标，并提供通俗解读（200-250字）
   - 例如：AUC 0.89 (95%%CI: 0.86-0.92) 意味着...
5. 临床意义：对医生实践的价值（150-200字）
6. 技术亮点：对AI开发者的启示（150-200字）
7. 局限与展望：研究局限性和未来方向（100-150字）
8. 原文链接和引用格式

论文信息：
标题：%s
作者：%s
期刊：%s
发表日期：%s
摘要：%s
关键词：%s
MeSH词：%s
PMID：%s
DOI：%s

注意：
- 保留所有统计学指标（p值、置信区间、效应量等）
- 每个统计指标后都加上一句话通俗解释
- 语言严肃专业，面向医生和AI研究者
- 结构清晰，使用小标题

生成格式：
标题：[文章标题]

【研究背景】
[内容]

【研究方法】
[内容]

【核心结果】
[内容，包含统计指标和解读]

【临床意义】
[内容]

【技术亮点】
[内容]

【局限与展望】
[内容]

---
原文链接：%s
本文选自 PubMed 数据库，由 AI 辅助整理生成。`,
		a.Title, joinOr(a.Authors, 5, "N/A"), a.Journal, a.PubDate, abstract,
		joinOr(a.Keywords, 0, "N/A"), joinOr(a.MeshTerms, 10, "N/A"), a.PMID, doi, a.URL())
}

func wechatShortPrompt(a *dm.Article) string {
	return fmt.Sprintf(`请为一篇医学AI论文生成公众号简报（300-500字）。

要求：
1. 标题：简洁明了
2. 研究背景：简述（50字）
3. 核心数据：保留关键统计指标+解读（100-150字）
4. 实践价值：对临床工作的启示（100-150字）
5. 原文链接

论文信息：
标题：%s
期刊：%s
摘要：%s
PMID：%s

注意：保留核心统计指标，并解释其含义。

生成格式：
标题：[文章标题]

【研究简介】
[内容]

【核心发现】
[内容]

【实践价值】
[内容]

---
原文链接：%s`, a.Title, a.Journal, abstractOr(a, 1500), a.PMID, a.URL())
}

// abstractOr 截取摘要前 n 个字符，无摘要时返回占位文本
func abstractOr(a *dm.Article, n int) string {
	if a.Abstract == "" {
		return noAbstract
	}
	return truncate(a.Abstract, n)
}

// joinOr 取前 n 项用逗号连接，n 为 0 表示全部
func joinOr(items []string, n int, empty string) string {
	if len(items) == 0 {
		return empty
	}
	if n > 0 && len(items) > n {
		items = items[:n]
	}
	return strings.Join(items, ", ")
}

// truncate 按字符而非字节截断
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
