package videos

import (
	"regexp"
	"strings"
)

var (
	youtubeURLPattern = regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([^&\n?#]+)`)
	youtubeIDPattern  = regexp.MustCompile(`^([a-zA-Z0-9_-]{11})$`)
)

// ExtractYouTubeID はYouTubeのURLまたは動画IDから動画IDを抽出する。
// 対応形式: youtube.com/watch?v=ID、youtu.be/ID、youtube.com/embed/ID、11文字のID。
// 抽出できない場合は空文字列を返す。
func ExtractYouTubeID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if m := youtubeURLPattern.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	if m := youtubeIDPattern.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}
