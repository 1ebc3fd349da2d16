package ui

import "testing"

func TestGetTheme(t *testing.T) {
	if got := GetTheme("dracula").Name; got != "Dracula" {
		t.Fatalf("GetTheme(dracula) = %q, want Dracula", got)
	}
	if got := GetTheme("missing").Name; got != "Nightfox" {
		t.Fatalf("GetTheme(missing) = %q, want Nightfox fallback", got)
	}
}

func TestNextTheme(t *testing.T) {
	names := ThemeNames()
	for i, name := range names {
		want := names[(i+1)%len(names)]
		if got := NextTheme(name); got != want {
			t.Fatalf("NextTheme(%q) = %q, want %q", name, got, want)
		}
	}
	if got := NextTheme("unknown"); got != names[0] {
		t.Fatalf("NextTheme(unknown) = %q, want %q", got, names[0])
	}
}

func TestThemeColor(t *testing.T) {
	for _, name := range ThemeNames() {
		th := GetTheme(name)
		for _, c := range []string{"green", "yellow", "red", "blue", "white"} {
			if th.Color(c) == "" {
				t.Errorf("%s: palette has no %q", name, c)
			}
		}
		if got := th.Color(" Red "); got != th.Palette["red"] {
			t.Errorf("%s: Color is not case-insensitive", name)
		}
		if got := th.Color("#abcdef"); got != "#abcdef" {
			t.Errorf("%s: hex color = %q", name, got)
		}
		if got := th.Color("chartreuse"); got != "" {
			t.Errorf("%s: unknown color = %q, want empty", name, got)
		}
	}
}
