package security_test

import (
	"testing"

	"github.com/hitoshi/fileteluss/internal/security"
)

// TestNewTextSanitizer_Interface はパッケージ外からインターフェースとして利用できることを検証する。
func TestNewTextSanitizer_Interface(t *testing.T) {
	var sanitizer security.TextSanitizer = security.NewTextSanitizer()

	if got := sanitizer.SanitizeText("<i>clip</i>"); got != "clip" {
		t.Errorf("SanitizeText() = %q, want %q", got, "clip")
	}
	if got := sanitizer.SanitizeFileName("../etc/passwd"); got == "../etc/passwd" {
		t.Errorf("SanitizeFileName() = %q, path separators should be replaced", got)
	}
}
