package audit

import (
	"os"
	"path/filepath"
	"testing"
)

// fuzzSeeds returns a valid chain plus a few malformed logs.
func fuzzSeeds(f *testing.F) [][]byte {
	path := filepath.Join(f.TempDir(), "seed.jsonl")
	l, err := Open(path)
	if err != nil {
		f.Fatal(err)
	}
	for _, verdict := range []string{"allow", "warn", "block"} {
		l.Record(Entry{SessionID: "fuzz", Gate: "policy", Tool: "Bash", Resource: "ls", Decision: verdict})
	}
	l.Close()
	chain, _ := os.ReadFile(path)

	return [][]byte{
		chain,
		{},
		[]byte(`{"prev_hash":"` + GenesisHash + `"}` + "\n"),
		[]byte("not json\n{\"decision\":\"allow\"}"),
	}
}

func writeFuzzInput(t *testing.T, data []byte) string {
	path := filepath.Join(t.TempDir(), "fuzz.jsonl")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func FuzzVerify(f *testing.F) {
	for _, seed := range fuzzSeeds(f) {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, data []byte) {
		res := Verify(writeFuzzInput(t, data))
		if res.Valid && res.Error != "" {
			t.Fatalf("valid result carries an error: %+v", res)
		}
	})
}

func FuzzTail(f *testing.F) {
	for _, seed := range fuzzSeeds(f) {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, data []byte) {
		res, err := Tail(writeFuzzInput(t, data), Filter{Limit: 3})
		if err != nil {
			return
		}
		if len(res.Entries) > 3 || res.Summary.Total != len(res.Entries) {
			t.Fatalf("limit or summary violated: %+v", res.Summary)
		}
	})
}
