package utils

import (
	"testing"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if Truncate("hello world", 5) != "hello..." {
		t.Errorf("got %s", Truncate("hello world", 5))
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
}

func TestAlphaTokens(t *testing.T) {
	got := AlphaTokens("Interveinal chlorosis on V4 corn, low N?", 4)
	want := []string{"interveinal", "chlorosis", "corn"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAlphaRatio(t *testing.T) {
	if AlphaRatio("") != 0 {
		t.Error("empty string ratio should be 0")
	}
	if AlphaRatio("abcd") != 1 {
		t.Error("all letters ratio should be 1")
	}
	if r := AlphaRatio("ab12"); r != 0.5 {
		t.Errorf("got %v, want 0.5", r)
	}
}
