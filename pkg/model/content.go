package model

// Variant 文案类型：两个平台 × 长短两种篇幅
type Variant string

const (
	XiaohongshuLong  Variant = "xiaohongshu_long"
	XiaohongshuShort Variant = "xiaohongshu_short"
	WechatLong       Variant = "wechat_long"
	WechatShort      Variant = "wechat_short"
)

// Variants 固定的生成顺序
var Variants = []Variant{XiaohongshuLong, XiaohongshuShort, WechatLong, WechatShort}

// ParseVariant 校验文案类型名
func ParseVariant(s string) (Variant, bool) {
	for _, v := range Variants {
		if string(v) == s {
			return v, true
		}
	}
	return "", false
}

// GeneratedContent 单篇文章的四种文案，不直接落库
type GeneratedContent map[Variant]string
