package xfsname

import "testing"

func TestHashEmptyName(t *testing.T) {
	if got := Hash(nil); got != 0 {
		t.Errorf("Hash(nil) = %#x, want 0", got)
	}
	if got := Hash([]byte{}); got != 0 {
		t.Errorf("Hash([]byte{}) = %#x, want 0", got)
	}
}

func TestHashDeterministic(t *testing.T) {
	names := []string{"a", "file.txt", ".", "..", "very_long_file_name_that_exercises_the_rotation_schedule.dat"}
	for _, n := range names {
		h1 := Hash([]byte(n))
		h2 := Hash([]byte(n))
		if h1 != h2 {
			t.Errorf("Hash(%q) not deterministic: %#x vs %#x", n, h1, h2)
		}
	}
}

func TestHashDistinctNames(t *testing.T) {
	names := []string{"file1.txt", "file2.txt", "README.md", "main.go", "config.json", ".hidden"}
	seen := map[uint32]string{}
	collisions := 0
	for _, n := range names {
		h := Hash([]byte(n))
		if other, ok := seen[h]; ok {
			collisions++
			t.Logf("collision: %q and %q both hash to %#x", other, n, h)
		}
		seen[h] = n
	}
	if collisions > 0 {
		t.Errorf("unexpected collisions among %d distinct short names", len(names))
	}
}

func TestHashDependsOnEveryByte(t *testing.T) {
	base := Hash([]byte("aaaa"))
	for i := 0; i < 4; i++ {
		b := []byte("aaaa")
		b[i] = 'b'
		if Hash(b) == base {
			t.Errorf("changing byte %d of %q did not change the hash", i, "aaaa")
		}
	}
}

func TestHashOrderSensitive(t *testing.T) {
	if Hash([]byte("ab")) == Hash([]byte("ba")) {
		t.Error("Hash(\"ab\") == Hash(\"ba\"); rotation schedule should be position-sensitive")
	}
}
