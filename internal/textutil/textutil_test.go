package textutil

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Daft   Punk ", "daft punk"},
		{"ONE\tMORE\nTIME", "one more time"},
		{"Straße", "strasse"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPairKeyIgnoresCaseAndSpacing(t *testing.T) {
	a := PairKey("Daft Punk", "One More Time")
	b := PairKey(" daft  PUNK", "one more time ")
	if a != b {
		t.Fatalf("expected equal keys, got %q and %q", a, b)
	}
	if PairKey("Daft Punk", "Aerodynamic") == a {
		t.Fatal("different titles must not share a key")
	}
	artist, title, ok := SplitPairKey(a)
	if !ok || artist != "daft punk" || title != "one more time" {
		t.Fatalf("SplitPairKey() = %q %q %v", artist, title, ok)
	}
}

func TestPairKeyKeepsHalvesApart(t *testing.T) {
	if PairKey("a b", "c") == PairKey("a", "b c") {
		t.Fatal("key halves must not bleed into each other")
	}
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Live @ Club: Part 1/2", "Live @ Club- Part 1-2"},
		{"what?", "what"},
		{"  ", ""},
		{"set\t<b2b>|mix\x00", "setb2bmix"},
	}
	for _, tt := range tests {
		if got := SanitizeFileName(tt.in); got != tt.want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
