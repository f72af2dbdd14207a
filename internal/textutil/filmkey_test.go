package textutil

import "testing"

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Heat", "heat"},
		{"punctuation", "Crouching Tiger, Hidden Dragon", "crouching tiger hidden dragon"},
		{"apostrophe", "Schindler’s List", "schindlers list"},
		{"fullwidth", "ＡＫＩＲＡ", "akira"},
		{"sharp s folds", "Der Untergang: Straße", "der untergang strasse"},
		{"empty", "  --  ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeTitle(tt.in); got != tt.want {
				t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFilmKeyPrefersSlug(t *testing.T) {
	if got := FilmKey("/film/the-thing/", "The Thing", 1982); got != "the-thing" {
		t.Fatalf("FilmKey with slug = %q", got)
	}
	if got := FilmKey("", "The Thing", 1982); got != "the thing|1982" {
		t.Fatalf("FilmKey without slug = %q", got)
	}
	if got := FilmKey("", "The Thing", 0); got != "the thing|" {
		t.Fatalf("FilmKey without year = %q", got)
	}
	if got := FilmKey("", "", 1982); got != "" {
		t.Fatalf("expected empty key for missing identity, got %q", got)
	}
}

func TestSplitTitleYear(t *testing.T) {
	tests := []struct {
		in        string
		wantTitle string
		wantYear  int
	}{
		{"Alien (1979)", "Alien", 1979},
		{"Blade Runner 2049 (2017)", "Blade Runner 2049", 2017},
		{"(500) Days of Summer (2009)", "(500) Days of Summer", 2009},
		{"Untitled", "Untitled", 0},
	}
	for _, tt := range tests {
		title, year := SplitTitleYear(tt.in)
		if title != tt.wantTitle || year != tt.wantYear {
			t.Errorf("SplitTitleYear(%q) = (%q, %d), want (%q, %d)", tt.in, title, year, tt.wantTitle, tt.wantYear)
		}
	}
}

func TestTitleCase(t *testing.T) {
	if got := TitleCase("film_buff-99"); got != "Film Buff 99" {
		t.Fatalf("TitleCase = %q", got)
	}
}
