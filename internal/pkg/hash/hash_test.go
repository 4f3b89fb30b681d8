package hash

import (
	"strings"
	"testing"
)

func TestSHA256(t *testing.T) {
	tests := []struct {
		input []byte
		want  string
	}{
		{
			[]byte("hello"),
			"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		},
		{
			[]byte(""),
			"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			got := SHA256(tt.input)
			if got != tt.want {
				t.Errorf("SHA256(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestSHA256Short(t *testing.T) {
	hash := SHA256([]byte("hello"))

	tests := []struct {
		n    int
		want string
	}{
		{8, hash[:8]},
		{32, hash[:32]},
		{64, hash},  // full hash
		{100, hash}, // exceeds length, returns full
	}

	for _, tt := range tests {
		got := SHA256Short([]byte("hello"), tt.n)
		if got != tt.want {
			t.Errorf("SHA256Short(hello, %d) = %s, want %s", tt.n, got, tt.want)
		}
	}
}

func TestFragmentKey(t *testing.T) {
	id1 := FragmentKey("oasis", "mirtk-ireg", "0001", "07", "dsc")
	id2 := FragmentKey("oasis", "mirtk-ireg", "0001", "07", "dsc")

	if id1 != id2 {
		t.Errorf("FragmentKey not deterministic: %s != %s", id1, id2)
	}

	// Part boundaries are significant
	id3 := FragmentKey("oasis", "mirtk-ireg", "00010", "7", "dsc")
	if id1 == id3 {
		t.Errorf("FragmentKey collision across boundaries: %s", id1)
	}

	// Absent cfgid differs from any present one
	id4 := FragmentKey("oasis", "mirtk-ireg", "", "07", "dsc")
	if id1 == id4 {
		t.Errorf("FragmentKey collision for absent part: %s", id1)
	}

	if len(id1) != 32 {
		t.Errorf("FragmentKey length = %d, want 32", len(id1))
	}

	for _, c := range id1 {
		if !strings.ContainsRune("0123456789abcdef", c) {
			t.Errorf("FragmentKey contains non-hex character: %c", c)
		}
	}
}

func BenchmarkFragmentKey(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		FragmentKey("oasis", "mirtk-ireg-2.0.0", "0012", "OAS1_0001", "dsc")
	}
}
