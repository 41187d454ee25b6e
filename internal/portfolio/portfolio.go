// Package portfolio はポートフォリオビューアに表示する埋め込みURLと紹介情報を提供する。
package portfolio

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultURL は埋め込み表示する既定のポートフォリオURL。
const DefaultURL = "https://gorleprasanth.github.io/portfolio/"

// Stat はポートフォリオに表示する実績の1項目。
type Stat struct {
	Number string `json:"number"`
	Label  string `json:"label"`
}

// View はポートフォリオページの表示内容。
type View struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle"`
	Description string `json:"description"`
	Stats       []Stat `json:"stats"`
}

// Provider はポートフォリオの表示内容を返す。
type Provider struct {
	view View
}

// NewProvider は埋め込みURLを検証してProviderを生成する。
// 空の場合はDefaultURLを使用する。http/https以外のURLはエラーとする。
func NewProvider(rawURL string) (*Provider, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		rawURL = DefaultURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse portfolio URL: %w", err)
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return nil, fmt.Errorf("portfolio URL must be an absolute http(s) URL: %s", rawURL)
	}

	return &Provider{view: View{
		URL:         u.String(),
		Title:       "Portfolio",
		Subtitle:    "Explore our creator's amazing work and projects",
		Description: "This portfolio showcases exceptional design, development, and creativity. Explore the projects, case studies, and achievements that demonstrate professional excellence.",
		Stats: []Stat{
			{Number: "50+", Label: "Projects Completed"},
			{Number: "30+", Label: "Happy Clients"},
			{Number: "5+", Label: "Years Experience"},
		},
	}}, nil
}

// View は表示内容のコピーを返す。
func (p *Provider) View() View {
	v := p.view
	v.Stats = make([]Stat, len(p.view.Stats))
	copy(v.Stats, p.view.Stats)
	return v
}

// FrameOrigin はContent-Security-Policyのframe-srcに指定するオリジンを返す。
func (p *Provider) FrameOrigin() string {
	u, err := url.Parse(p.view.URL)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
