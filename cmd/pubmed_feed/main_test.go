package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/pubmed_feed/pkg/config"
	dm "github.com/iWorld-y/pubmed_feed/pkg/model"
	"github.com/iWorld-y/pubmed_feed/pkg/report"
)

func TestParseSelection(t *testing.T) {
	sel, err := parseSelection([]string{"wechat_long=0", "xiaohongshu_short= 1, 2"})
	require.NoError(t, err)
	assert.Equal(t, report.Selection{
		dm.WechatLong:       {0},
		dm.XiaohongshuShort: {1, 2},
	}, sel)

	sel, err = parseSelection(nil)
	require.NoError(t, err)
	assert.Nil(t, sel)

	for _, bad := range []string{"wechat_long", "tweet=0", "wechat_short=a"} {
		_, err := parseSelection([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestMaskedConfig(t *testing.T) {
	c := config.Default()
	c.LLM.APIKey = "sk-1234567890abcdef"
	c.DB.Password = "pw"
	c.Interests = []string{"sepsis"}

	m := masked(*c)
	assert.Equal(t, "sk-1******cdef", m.LLM.APIKey)
	assert.Equal(t, "******", m.DB.Password)
	assert.Empty(t, m.PubMed.APIKey)

	m.Interests[0] = "changed"
	assert.Equal(t, "sepsis", c.Interests[0])
	assert.Equal(t, "sk-1234567890abcdef", c.LLM.APIKey)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "脓毒...", truncate("脓毒症预警", 2))
}
