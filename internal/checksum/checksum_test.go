package checksum

import "testing"

func TestSum_Known(t *testing.T) {
	got := Sum([]byte("abc"))
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("Sum = %q, want %q", got, want)
	}
}

func TestKey_SeparatesParts(t *testing.T) {
	if Key("ab", "c") == Key("a", "bc") {
		t.Error("keys of differently split parts must differ")
	}
	if Key("x", "y") != Key("x", "y") {
		t.Error("key must be deterministic")
	}
}
