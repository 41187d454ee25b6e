// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はユーザーが入力した表示用テキスト（氏名、動画タイトル・説明、ファイル名）から
// マークアップを除去し、プレーンテキストとして保存・返却できる形に正規化する。
// bluemondayのStrictPolicyで全タグを除去した後にエンティティを戻す。
package security

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は表示用テキストのサニタイズ機能のインターフェースを定義する。
type TextSanitizer interface {
	// SanitizeText はタグと制御文字を除去し、前後の空白を取り除いたテキストを返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeText(raw string) string
	// SanitizeFileName はSanitizeTextに加えてパス区切り文字を置換したファイル名を返す。
	// 結果が空になる場合は"file"を返す。
	SanitizeFileName(raw string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeText はタグを除去したプレーンテキストを返す。
func (s *textSanitizer) SanitizeText(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := html.UnescapeString(s.policy.Sanitize(raw))
	stripped = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, stripped)
	return strings.TrimSpace(stripped)
}

// SanitizeFileName はダウンロード時のContent-Dispositionに使えるファイル名を返す。
func (s *textSanitizer) SanitizeFileName(raw string) string {
	name := s.SanitizeText(raw)
	name = strings.NewReplacer("/", "_", "\\", "_", "\"", "'").Replace(name)
	name = strings.Trim(name, ". ")
	if name == "" {
		return "file"
	}
	return name
}

var _ TextSanitizer = (*textSanitizer)(nil)
