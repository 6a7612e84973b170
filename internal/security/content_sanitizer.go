// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はユーザー入力のテキストをサニタイズし、
// XSS攻撃などのセキュリティリスクから他のユーザーを保護する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// メッセージ本文はプレーンテキストのみ、管理者のお知らせは
// 最小限の整形タグのみを通過させる。
package security

import "github.com/microcosm-cc/bluemonday"

// ContentSanitizerService はユーザー入力サニタイズのインターフェースを定義する。
// メッセージ送信時とお知らせ作成時の保存前に使用される。
type ContentSanitizerService interface {
	// SanitizeMessage はメッセージ本文をサニタイズする。
	// すべてのHTMLタグを除去し、プレーンテキストのみを残す。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeMessage(raw string) string

	// SanitizeAnnouncement はお知らせ本文をサニタイズする。
	// 許可タグ（p, br, a, ul, ol, li, strong, em）のみを通過させ、
	// script, iframe, styleタグおよびon*イベント属性を除去する。
	// aタグにはtarget="_blank"とrel="noopener noreferrer"が自動付与される。
	SanitizeAnnouncement(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	messagePolicy      *bluemonday.Policy
	announcementPolicy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// 初期化時にbluemondayのポリシーを構築する。
//   - メッセージ: StrictPolicy（全タグ除去）
//   - お知らせ: p, br, a, ul, ol, li, strong, em のみ許可
func NewContentSanitizer() *contentSanitizer {
	announcement := bluemonday.NewPolicy()
	announcement.AllowElements("p", "br", "ul", "ol", "li", "strong", "em")
	announcement.AllowAttrs("href").OnElements("a")
	announcement.AllowRelativeURLs(false)
	announcement.AllowURLSchemes("http", "https")
	announcement.RequireNoFollowOnLinks(false)
	announcement.AddTargetBlankToFullyQualifiedLinks(true)

	return &contentSanitizer{
		messagePolicy:      bluemonday.StrictPolicy(),
		announcementPolicy: announcement,
	}
}

// SanitizeMessage はメッセージ本文からすべてのHTMLタグを除去する。
func (s *contentSanitizer) SanitizeMessage(raw string) string {
	return s.messagePolicy.Sanitize(raw)
}

// SanitizeAnnouncement はお知らせ本文を許可リストベースでサニタイズする。
func (s *contentSanitizer) SanitizeAnnouncement(raw string) string {
	return s.announcementPolicy.Sanitize(raw)
}
