package content

import (
	"fmt"

	dm "github.com/iWorld-y/pubmed_feed/pkg/model"
)

// 兜底模板只使用文章字段，同一篇文章的输出逐字节一致

func xiaohongshuLongFallback(a *dm.Article) string {
	tag := "医学前沿"
	if len(a.Keywords) > 0 {
		tag = a.Keywords[0]
	}
	return fmt.Sprintf(`🔥 %s...

今天发现一篇超有意思的研究！%s刚发的，关于医学AI的新进展～

💡 核心看点：
%s

⚠️ 但要注意：
这类研究还在早期阶段，离临床实际应用还有距离，大家理性看待～

📖 想深入了解的可以读原文：
%s

#医学AI #人工智能 #前沿科技 #%s`, truncate(a.Title, 50), a.Journal, snippet(a, 120), a.URL(), tag)
}

func xiaohongshuShortFallback(a *dm.Article) string {
	return fmt.Sprintf(`📢 %s...

期刊：%s

🔬 %s

原文→ %s

#LLM #医疗AI`, truncate(a.Title, 40), a.Journal, snippet(a, 60), a.URL())
}

func wechatLongFallback(a *dm.Article) string {
	return fmt.Sprintf(`标题：%s

【研究背景】
本文探讨了医学人工智能领域的最新应用进展。

【研究摘要】
%s

【核心结果】
具体统计指标需要查看原文。

【临床意义】
这类技术有望辅助临床决策，但需谨慎评估其可靠性和安全性。

【局限与展望】
研究存在一定局限性，需要更大规模的临床验证。

---
作者：%s
期刊：%s
发表日期：%s
原文链接：%s
PMID：%s`, a.Title, snippet(a, 500), joinOr(a.Authors, 3, "N/A"), a.Journal, a.PubDate, a.URL(), a.PMID)
}

func wechatShortFallback(a *dm.Article) string {
	return fmt.Sprintf(`标题：%s

【研究简介】
%s发表的最新研究。

【核心发现】
%s

【实践价值】
为医疗AI的发展提供了新的思路和参考。

---
原文链接：%s`, a.Title, a.Journal, snippet(a, 200), a.URL())
}

// snippet 摘要片段，超长时加省略号
func snippet(a *dm.Article, n int) string {
	if a.Abstract == "" {
		return "暂无摘要，详见原文。"
	}
	s := truncate(a.Abstract, n)
	if s != a.Abstract {
		s += "..."
	}
	return s
}
