package tokenizer

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty string", "", ""},
		{"padded and spaced", "  Hello   World  ", "hello world"},
		{"tabs and newlines", "Dup\tONE\n\nnow", "dup one now"},
		{"already normalized", "hello world", "hello world"},
		{"only whitespace", " \t\n ", ""},
		{"unicode", "  ÇA   Va ", "ça va"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input)
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if again := Normalize(got); again != got {
				t.Errorf("Normalize is not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestCharacterShingles(t *testing.T) {
	tests := []struct {
		name  string
		input string
		k     int
		want  []string
	}{
		{"empty", "", 4, []string{}},
		{"shorter than k", "abc", 4, []string{"abc"}},
		{"exactly k", "abcd", 4, []string{"abcd"}},
		{"sliding window", "dup one", 4, []string{"dup ", "up o", "p on", " one"}},
		{"repeats deduplicated", "aaaaaa", 4, []string{"aaaa"}},
		{"multibyte runes", "héllo", 4, []string{"héll", "éllo"}},
		{"zero k", "abc", 0, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CharacterShingles(tt.input, tt.k)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("CharacterShingles(%q, %d) = %q, want %q", tt.input, tt.k, got, tt.want)
			}
		})
	}
}

func TestWordShingles(t *testing.T) {
	got := WordShingles("the quick brown the quick", 2)
	want := []string{"the quick", "quick brown", "brown the"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("WordShingles = %q, want %q", got, want)
	}

	if got := WordShingles("solo", 3); !reflect.DeepEqual(got, []string{"solo"}) {
		t.Errorf("WordShingles short input = %q", got)
	}
}

func TestParseScheme(t *testing.T) {
	shingler, err := ParseScheme("c4")
	if err != nil {
		t.Fatalf("ParseScheme(c4) failed: %v", err)
	}
	if got := shingler("abcde"); !reflect.DeepEqual(got, []string{"abcd", "bcde"}) {
		t.Errorf("c4 shingler = %q", got)
	}

	shingler, err = ParseScheme("w2")
	if err != nil {
		t.Fatalf("ParseScheme(w2) failed: %v", err)
	}
	if got := shingler("a b c"); !reflect.DeepEqual(got, []string{"a b", "b c"}) {
		t.Errorf("w2 shingler = %q", got)
	}

	for _, bad := range []string{"", "x4", "c0", "c", "4c"} {
		if _, err := ParseScheme(bad); err == nil {
			t.Errorf("ParseScheme(%q) expected error", bad)
		}
	}
}
