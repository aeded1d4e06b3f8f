package pubmed

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dm "github.com/iWorld-y/pubmed_feed/pkg/model"
)

const fullRecord = `<?xml version="1.0" ?>
<PubmedArticleSet>
<PubmedArticle>
  <MedlineCitation Status="MEDLINE" Owner="NLM">
    <PMID Version="1">39012345</PMID>
    <Article PubModel="Print-Electronic">
      <Journal>
        <Title>Nature   Medicine</Title>
        <JournalIssue CitedMedium="Internet">
          <PubDate><Year>2025</Year><Month>Mar</Month><Day>04</Day></PubDate>
        </JournalIssue>
      </Journal>
      <ArticleTitle>Deep learning for <i>BRCA1</i> variant &amp; risk calling</ArticleTitle>
      <Abstract>
        <AbstractText Label="BACKGROUND">Early detection matters.</AbstractText>
        <AbstractText Label="RESULTS">AUC was 0.94 (95% CI 0.91-0.96), p&lt;0.001 with CO<sub>2</sub>.</AbstractText>
      </Abstract>
      <AuthorList CompleteYN="Y">
        <Author><LastName>Zhang</LastName><ForeName>Wei</ForeName></Author>
        <Author><LastName>Smith</LastName></Author>
        <Author><CollectiveName>Oncology Consortium</CollectiveName></Author>
        <Author><LastName>A3</LastName><ForeName>F</ForeName></Author>
        <Author><LastName>A4</LastName><ForeName>F</ForeName></Author>
        <Author><LastName>A5</LastName><ForeName>F</ForeName></Author>
        <Author><LastName>A6</LastName><ForeName>F</ForeName></Author>
        <Author><LastName>A7</LastName><ForeName>F</ForeName></Author>
        <Author><LastName>A8</LastName><ForeName>F</ForeName></Author>
        <Author><LastName>A9</LastName><ForeName>F</ForeName></Author>
        <Author><LastName>A10</LastName><ForeName>F</ForeName></Author>
        <Author><LastName>A11</LastName><ForeName>F</ForeName></Author>
      </AuthorList>
    </Article>
    <MeshHeadingList>
      <MeshHeading><DescriptorName UI="D001943">Breast Neoplasms</DescriptorName></MeshHeading>
      <MeshHeading><DescriptorName UI="D000077321">Deep Learning</DescriptorName><QualifierName>methods</QualifierName></MeshHeading>
    </MeshHeadingList>
    <KeywordList Owner="NOTNLM">
      <Keyword>artificial intelligence</Keyword>
      <Keyword><i>BRCA1</i></Keyword>
    </KeywordList>
  </MedlineCitation>
  <PubmedData>
    <ArticleIdList>
      <ArticleId IdType="pubmed">39012345</ArticleId>
      <ArticleId IdType="doi">10.1038/s41591-025-0001-x</ArticleId>
      <ArticleId IdType="doi">10.9999/second</ArticleId>
    </ArticleIdList>
  </PubmedData>
</PubmedArticle>
</PubmedArticleSet>`

func TestParseArticlesExtractsFields(t *testing.T) {
	fetched := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	articles, err := ParseArticles(strings.NewReader(fullRecord), fetched, nil)
	require.NoError(t, err)
	require.Len(t, articles, 1)

	a := articles[0]
	assert.Equal(t, "39012345", a.PMID)
	assert.Equal(t, "Deep learning for BRCA1 variant & risk calling", a.Title)
	assert.Equal(t, "Early detection matters. AUC was 0.94 (95% CI 0.91-0.96), p<0.001 with CO2.", a.Abstract)
	assert.Equal(t, "Nature Medicine", a.Journal)
	assert.Equal(t, "2025 Mar 04", a.PubDate)
	assert.Equal(t, "10.1038/s41591-025-0001-x", a.DOI)
	assert.Equal(t, []string{"artificial intelligence", "BRCA1"}, a.Keywords)
	assert.Equal(t, []string{"Breast Neoplasms", "Deep Learning"}, a.MeshTerms)
	assert.Equal(t, fetched, a.FetchedAt)

	// 前 10 个节点中有一个没有姓氏
	assert.Equal(t, []string{"Wei Zhang", "Smith", "F A3", "F A4", "F A5", "F A6", "F A7", "F A8", "F A9"}, a.Authors)
	assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/39012345/", a.URL())
}

func TestParseArticlesDropsIncompleteRecords(t *testing.T) {
	doc := `<PubmedArticleSet>
<PubmedArticle><MedlineCitation><PMID>1</PMID><Article><ArticleTitle>Kept</ArticleTitle></Article></MedlineCitation></PubmedArticle>
<PubmedArticle><MedlineCitation><PMID>2</PMID><Article><ArticleTitle>   </ArticleTitle></Article></MedlineCitation></PubmedArticle>
<PubmedArticle><MedlineCitation><Article><ArticleTitle>No id</ArticleTitle></Article></MedlineCitation></PubmedArticle>
<PubmedArticle><MedlineCitation><PMID>4</PMID><Article></Article></MedlineCitation></PubmedArticle>
<PubmedArticle><MedlineCitation><PMID>5</PMID><Article><ArticleTitle>Also kept</ArticleTitle></Article></MedlineCitation></PubmedArticle>
</PubmedArticleSet>`

	articles, err := ParseArticles(strings.NewReader(doc), time.Now(), nil)
	require.NoError(t, err)

	var ids []string
	for _, a := range articles {
		assert.True(t, a.Valid())
		ids = append(ids, a.PMID)
	}
	assert.Equal(t, []string{"1", "5"}, ids)
}

func TestParseArticlesMedlineDateAndEmptyLists(t *testing.T) {
	doc := `<PubmedArticleSet><PubmedArticle><MedlineCitation><PMID>7</PMID><Article>
<Journal><Title>J</Title><JournalIssue><PubDate><MedlineDate>2024 Nov-Dec</MedlineDate></PubDate></JournalIssue></Journal>
<ArticleTitle>T</ArticleTitle></Article></MedlineCitation></PubmedArticle></PubmedArticleSet>`

	articles, err := ParseArticles(strings.NewReader(doc), time.Now(), nil)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "2024 Nov-Dec", articles[0].PubDate)
	assert.Empty(t, articles[0].Abstract)
	assert.Empty(t, articles[0].DOI)
	assert.NotNil(t, articles[0].Keywords)
	assert.NotNil(t, articles[0].MeshTerms)
}

func TestPubDateOmitsMissingParts(t *testing.T) {
	d := pubDate{Year: "2025", Day: "9"}
	assert.Equal(t, "2025 9", d.String())
}

func TestParseArticlesMalformedXML(t *testing.T) {
	doc := `<PubmedArticleSet>
<PubmedArticle><MedlineCitation><PMID>1</PMID><Article><ArticleTitle>Good</ArticleTitle></Article></MedlineCitation></PubmedArticle>
<PubmedArticle><MedlineCitation><PMID>2</PMID><Article><ArticleTitle>Broken</Article></MedlineCitation></PubmedArticle>`

	articles, err := ParseArticles(strings.NewReader(doc), time.Now(), nil)
	assert.ErrorIs(t, err, dm.ErrParse)
	require.Len(t, articles, 1)
	assert.Equal(t, "1", articles[0].PMID)
}
