package validation

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	verrors "github.com/FocuswithJustin/versecorpus/core/errors"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"relative", "acoli/acakki.txt", false},
		{"absolute", "/srv/corpora/acoli.json.xz", false},
		{"parent dirs are fine on the command line", "../acoli.txt", false},
		{"unicode", "baibul/Nwoyo Cik.txt", false},
		{"empty", "", true},
		{"null byte", "acoli\x00.txt", true},
		{"newline", "acoli\n.txt", true},
		{"too long", strings.Repeat("a", MaxPathLength+1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath("input", tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidatePath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, verrors.ErrInvalidInput) {
				t.Errorf("error %v does not wrap ErrInvalidInput", err)
			}
		})
	}
}

func TestValidateFilename(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		wantErr  bool
	}{
		{"plain", "acakki.txt", false},
		{"spaces", "Nwoyo Cik.txt", false},
		{"compressed", "acoli.json.xz", false},
		{"empty", "", true},
		{"dot", ".", true},
		{"dot dot", "..", true},
		{"slash", "../etc/passwd", true},
		{"backslash", `..\windows`, true},
		{"null byte", "a\x00b", true},
		{"tab", "a\tb", true},
		{"leading hyphen", "-rf", true},
		{"too long", strings.Repeat("a", MaxFilenameLength+1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateFilename("filename", tt.filename); (err != nil) != tt.wantErr {
				t.Errorf("ValidateFilename(%q) error = %v, wantErr %v", tt.filename, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acakki", "Acakki"},
		{"Acoli/Baibul", "Acoli_Baibul"},
		{`Acoli\Baibul`, "Acoli_Baibul"},
		{"  Nwoyo Cik  ", "Nwoyo Cik"},
		{"--Nia", "Nia"},
		{"Lu\x00ka", "Luka"},
		{"", "untitled"},
		{".", "untitled"},
		{"..", "untitled"},
		{"---", "untitled"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in, "untitled"); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeFilenameCutsAtRuneBoundary(t *testing.T) {
	long := strings.Repeat("é", MaxFilenameLength)
	got := SanitizeFilename(long, "untitled")
	if len(got) > MaxFilenameLength {
		t.Errorf("len = %d, want at most %d", len(got), MaxFilenameLength)
	}
	if !strings.HasPrefix(long, got) || !utf8.ValidString(got) {
		t.Errorf("cut produced invalid UTF-8: %q", got)
	}
}
