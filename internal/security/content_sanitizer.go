// Package security はユーザー投稿コンテンツのサニタイズを提供する。
//
// 記事本文は許可リストベースのHTMLポリシーで、タイトル・コメント・お問い合わせなどの
// プレーンテキストは全タグ除去のポリシーで処理する。どちらもbluemondayを使う。
package security

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizer はユーザー入力のサニタイズ機能のインターフェース。
// 保存前にサービス層から呼ばれる。
type ContentSanitizer interface {
	// SanitizeHTML は記事本文のHTMLをサニタイズする。
	// 許可タグ（p, br, a, ul, ol, li, blockquote, pre, code, strong, em, h2, h3, img）のみを通過させる。
	SanitizeHTML(rawHTML string) string
	// SanitizeText は全てのタグを除去し、前後の空白を取り除いたテキストを返す。
	SanitizeText(raw string) string
}

// imgのsrcはhttpsの絶対URLのみ
var httpsSrc = regexp.MustCompile(`^https://[^\s"'<>]+$`)

type contentSanitizer struct {
	html *bluemonday.Policy
	text *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerを生成する。
//   - 記事本文: 上記の許可タグのみ。script, iframe, styleおよびon*属性は除去
//   - aタグ: 絶対URLのみ。target="_blank" と rel="noopener noreferrer" を自動付与
//   - テキスト: bluemonday.StrictPolicy（全タグ除去）
func NewContentSanitizer() ContentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em", "h2", "h3",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AllowURLSchemes("https", "http", "mailto")
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("alt").OnElements("img")
	p.AllowAttrs("src").Matching(httpsSrc).OnElements("img")

	return &contentSanitizer{
		html: p,
		text: bluemonday.StrictPolicy(),
	}
}

// SanitizeHTML は記事本文のHTMLをサニタイズする。
func (s *contentSanitizer) SanitizeHTML(rawHTML string) string {
	return strings.TrimSpace(s.html.Sanitize(rawHTML))
}

// SanitizeText は全てのタグを除去する。
// StrictPolicyは特殊文字をエスケープするため、&や<はエンティティとして返る。
func (s *contentSanitizer) SanitizeText(raw string) string {
	return strings.TrimSpace(s.text.Sanitize(raw))
}
