package ref

import (
	"errors"
	"testing"

	verrors "github.com/FocuswithJustin/versecorpus/core/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  Ref
	}{
		{"Acakki", Ref{Book: "Acakki"}},
		{"Acakki 19", Ref{Book: "Acakki", Chapter: 19}},
		{"Acakki 19:2", Ref{Book: "Acakki", Chapter: 19, Verse: 2}},
		{"Nwoyo Cik 1:1", Ref{Book: "Nwoyo Cik", Chapter: 1, Verse: 1}},
		{"Song of Solomon 2:1-3", Ref{Book: "Song of Solomon", Chapter: 2, Verse: 1, VerseEnd: 3}},
		{"1 Kings 2.3", Ref{Book: "1 Kings", Chapter: 2, Verse: 3}},
		{"  Génesis   1 : 1 ", Ref{Book: "Génesis", Chapter: 1, Verse: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, input := range []string{"", "   ", "19:2", "Acakki 3:5-2", "Acakki ::"} {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			if err == nil {
				t.Fatalf("Parse(%q) should fail", input)
			}
			if !errors.Is(err, verrors.ErrInvalidInput) {
				t.Errorf("error %v should be ErrInvalidInput", err)
			}
		})
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		ref  Ref
		want string
	}{
		{Ref{Book: "Acakki"}, "Acakki"},
		{Ref{Book: "Acakki", Chapter: 19}, "Acakki 19"},
		{Ref{Book: "Acakki", Chapter: 19, Verse: 2}, "Acakki 19:2"},
		{Ref{Book: "1 Kings", Chapter: 2, Verse: 3, VerseEnd: 5}, "1 Kings 2:3-5"},
	}
	for _, tt := range tests {
		if got := tt.ref.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
		back, err := Parse(tt.want)
		if err != nil || back != tt.ref {
			t.Errorf("Parse(String()) = %+v, %v; want %+v", back, err, tt.ref)
		}
	}
}

func TestContains(t *testing.T) {
	r := MustParse("Acakki 19:2-4")
	tests := []struct {
		chapter, verse int
		want           bool
	}{
		{19, 1, false},
		{19, 2, true},
		{19, 4, true},
		{19, 5, false},
		{18, 3, false},
	}
	for _, tt := range tests {
		if got := r.Contains(tt.chapter, tt.verse); got != tt.want {
			t.Errorf("Contains(%d, %d) = %v, want %v", tt.chapter, tt.verse, got, tt.want)
		}
	}
	if !MustParse("Acakki").Contains(50, 26) {
		t.Error("whole-book reference should contain every verse")
	}
	if !MustParse("Acakki 19").Contains(19, 38) {
		t.Error("whole-chapter reference should contain every verse of the chapter")
	}
}
