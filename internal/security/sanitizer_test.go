package security

import "testing"

// TestSanitizeText は表示用テキストからマークアップが除去されることを検証する。
func TestSanitizeText(t *testing.T) {
	sanitizer := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "空文字列はそのまま", input: "", want: ""},
		{name: "プレーンテキストは変更しない", input: "Getting Started Guide", want: "Getting Started Guide"},
		{name: "scriptタグは中身ごと除去", input: `Hello<script>alert(1)</script>`, want: "Hello"},
		{name: "装飾タグは除去して本文を残す", input: "<b>Bold</b> title", want: "Bold title"},
		{name: "エンティティは元の文字に戻す", input: "Tom & Jerry", want: "Tom & Jerry"},
		{name: "前後の空白を除去", input: "  padded  ", want: "padded"},
		{name: "改行は空白に置換", input: "line1\nline2", want: "line1 line2"},
		{name: "日本語テキスト", input: "<p>動画の説明</p>", want: "動画の説明"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizer.SanitizeText(tt.input); got != tt.want {
				t.Errorf("SanitizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestSanitizeText_Idempotent は同一入力に対して同一出力を返すことを検証する。
func TestSanitizeText_Idempotent(t *testing.T) {
	sanitizer := NewTextSanitizer()
	input := `<img src=x onerror=alert(1)>Title & more`

	first := sanitizer.SanitizeText(input)
	second := sanitizer.SanitizeText(first)
	if first != second {
		t.Errorf("not idempotent: %q then %q", first, second)
	}
}

// TestSanitizeFileName はファイル名からパス区切りが除去されることを検証する。
func TestSanitizeFileName(t *testing.T) {
	sanitizer := NewTextSanitizer()

	tests := []struct {
		input string
		want  string
	}{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "_.._etc_passwd"},
		{`C:\Users\me\notes.txt`, "C:_Users_me_notes.txt"},
		{`say "hi".txt`, "say 'hi'.txt"},
		{"<script></script>", "file"},
		{"   ", "file"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := sanitizer.SanitizeFileName(tt.input); got != tt.want {
				t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
