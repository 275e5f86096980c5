package segment

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/errors"
)

func sampleIndex(n int) *index.Index {
	idx := index.New()
	idx.AddDocument(index.Document{ID: 0, Title: "The Quick Fox", Plot: "fox jumps"})
	idx.AddDocument(index.Document{ID: 1, Title: "Slow Turtle", Plot: "quick brown fox"})
	for i := 2; i < n; i++ {
		idx.AddDocument(index.Document{
			ID:    index.DocID(i),
			Title: fmt.Sprintf("Movie %d", i),
			Plot:  fmt.Sprintf("a fox meets turtle number %d in the forest", i%7),
		})
	}
	idx.BuildSkipPointers()
	return idx
}

func equalLists(a, b *index.PostingsList) bool {
	if !slices.Equal(a.Docs, b.Docs) || !slices.Equal(a.Skips, b.Skips) || a.SkipStep != b.SkipStep {
		return false
	}
	return slices.EqualFunc(a.Positions, b.Positions, func(x, y []uint32) bool { return slices.Equal(x, y) })
}

func TestSaveLoadRoundTrip(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "movies")
	built := sampleIndex(40)

	if err := Save(base, built); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(base + DocsExt + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}

	loaded, stats, err := Load(base, LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(stats.Dropped) != 0 {
		t.Fatalf("unexpected dropped lists: %v", stats.Dropped)
	}
	if stats.Documents != 40 || stats.Terms != len(built.Inverted) {
		t.Errorf("stats = %+v", stats)
	}

	if !slices.Equal(loaded.Forward.Documents(), built.Forward.Documents()) {
		t.Error("documents differ after round trip")
	}
	if !slices.Equal(loaded.Forward.Lengths(), built.Forward.Lengths()) {
		t.Error("lengths differ after round trip")
	}
	if loaded.Forward.AvgDocLength() != built.Forward.AvgDocLength() {
		t.Error("avg doc length differs after round trip")
	}

	if len(loaded.Inverted) != len(built.Inverted) {
		t.Fatalf("term count %d, want %d", len(loaded.Inverted), len(built.Inverted))
	}
	for term, fields := range built.Inverted {
		for field, want := range fields {
			got := loaded.Postings(term, field)
			if got == nil {
				t.Fatalf("missing %s/%s", term, field)
			}
			if !equalLists(got, want) {
				t.Errorf("%s/%s differs: got %+v want %+v", term, field, got, want)
			}
		}
	}

	fox := loaded.Postings("fox", index.FieldPlot)
	if fox.SkipStep == 0 || len(fox.Skips) == 0 {
		t.Errorf("expected skips to survive round trip, got step %d", fox.SkipStep)
	}
}

func TestSaveEmptyIndex(t *testing.T) {
	base := filepath.Join(t.TempDir(), "empty")
	if err := Save(base, index.New()); err != nil {
		t.Fatal(err)
	}
	loaded, _, err := Load(base, LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Forward.Size() != 0 || len(loaded.Inverted) != 0 {
		t.Fatalf("expected empty index, got %+v", loaded.Stats())
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "nope"), LoadOptions{})
	if !errors.Is(err, apperrors.ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
}

// writeRaw writes a forward file holding n placeholder documents and an
// inverted file produced by inv.
func writeRaw(t *testing.T, n int, inv func(enc *Encoder)) string {
	t.Helper()
	base := filepath.Join(t.TempDir(), "raw")

	var docs bytes.Buffer
	enc := NewEncoder(&docs)
	enc.Uvarint(uint64(n))
	lengths := make([]uint32, n)
	for i := 0; i < n; i++ {
		enc.Uvarint(uint64(i))
		enc.String("t")
		enc.String("p")
		lengths[i] = 1
	}
	enc.Deltas(lengths)
	if err := enc.Flush(); err != nil {
		t.Fatal(err)
	}

	var invBuf bytes.Buffer
	enc = NewEncoder(&invBuf)
	inv(enc)
	if err := enc.Flush(); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(base+DocsExt, docs.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(base+InvExt, invBuf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	return base
}

func writeList(enc *Encoder, field string, docs []uint32, positions [][]uint32, skips []uint32, step uint32) {
	enc.String(field)
	enc.Deltas(docs)
	enc.Uvarint(uint64(len(positions)))
	for _, p := range positions {
		enc.Deltas(p)
	}
	enc.Deltas(skips)
	enc.Uvarint(uint64(step))
}

func TestLoadDropsInconsistentLists(t *testing.T) {
	base := writeRaw(t, 3, func(enc *Encoder) {
		enc.Uvarint(MagicHeader)
		enc.Uvarint(3)

		enc.String("good")
		enc.Uvarint(1)
		writeList(enc, "plot", []uint32{0, 2}, [][]uint32{{0}, {1, 4}}, nil, 0)

		enc.String("beyond")
		enc.Uvarint(2)
		writeList(enc, "plot", []uint32{1, 9}, [][]uint32{{0}, {0}}, nil, 0)
		writeList(enc, "title", []uint32{1}, [][]uint32{{0}}, nil, 0)

		enc.String("mismatch")
		enc.Uvarint(1)
		writeList(enc, "plot", []uint32{0, 1}, [][]uint32{{0}}, nil, 0)

		enc.Uvarint(MagicFooter)
	})

	idx, stats, err := Load(base, LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(stats.Dropped) != 2 {
		t.Fatalf("dropped = %v, want 2 entries", stats.Dropped)
	}
	if idx.Postings("good", "plot") == nil {
		t.Error("good list should survive")
	}
	if idx.Postings("beyond", "plot") != nil {
		t.Error("list with doc id beyond count should be dropped")
	}
	if idx.Postings("beyond", "title") == nil {
		t.Error("sibling field of a dropped list should survive")
	}
	if idx.TermFields("mismatch") != nil {
		t.Error("term with only a dropped list should be absent")
	}
}

func TestLoadFormatErrors(t *testing.T) {
	tests := []struct {
		name string
		opts LoadOptions
		inv  func(enc *Encoder)
	}{
		{
			name: "bad header magic",
			inv: func(enc *Encoder) {
				enc.Uvarint(0x12345678)
				enc.Uvarint(0)
				enc.Uvarint(MagicFooter)
			},
		},
		{
			name: "bad footer magic",
			inv: func(enc *Encoder) {
				enc.Uvarint(MagicHeader)
				enc.Uvarint(0)
				enc.Uvarint(0xBAD)
			},
		},
		{
			name: "truncated",
			inv: func(enc *Encoder) {
				enc.Uvarint(MagicHeader)
				enc.Uvarint(2)
				enc.String("lonely")
			},
		},
		{
			name: "oversized string",
			opts: LoadOptions{MaxBlockSize: 16},
			inv: func(enc *Encoder) {
				enc.Uvarint(MagicHeader)
				enc.Uvarint(1)
				enc.Uvarint(1000)
			},
		},
		{
			name: "varint shift overflow",
			inv: func(enc *Encoder) {
				enc.Uvarint(MagicHeader)
				for i := 0; i < 11; i++ {
					enc.w.WriteByte(0xFF)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := writeRaw(t, 1, tt.inv)
			_, _, err := Load(base, tt.opts)
			if !errors.Is(err, apperrors.ErrFormat) {
				t.Fatalf("expected ErrFormat, got %v", err)
			}
		})
	}
}

func TestDecoderUvarintLimits(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	enc.Uvarint(0)
	enc.Uvarint(math.MaxUint64)
	enc.Uvarint(math.MaxUint32 + 1)
	if err := enc.Flush(); err != nil {
		t.Fatal(err)
	}

	dec := NewDecoder(&buf, 0)
	if v, err := dec.Uvarint(); err != nil || v != 0 {
		t.Fatalf("first = %d, %v", v, err)
	}
	if v, err := dec.Uvarint(); err != nil || v != math.MaxUint64 {
		t.Fatalf("second = %d, %v", v, err)
	}
	if _, err := dec.Uint32(); !errors.Is(err, apperrors.ErrFormat) {
		t.Fatalf("expected ErrFormat for 33-bit value, got %v", err)
	}

	// Ten bytes whose last carries more than one bit cannot fit in 64 bits.
	overflow := bytes.Repeat([]byte{0xFF}, 9)
	overflow = append(overflow, 0x02)
	if _, err := NewDecoder(bytes.NewReader(overflow), 0).Uvarint(); !errors.Is(err, apperrors.ErrFormat) {
		t.Fatalf("expected ErrFormat for overflow, got %v", err)
	}
}

func TestVarintRoundTripProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("uvarint sequence round-trips", prop.ForAll(
		func(vals []uint64) bool {
			vals = append(vals, 0, math.MaxUint64, math.MaxUint64-1)
			var buf bytes.Buffer
			enc := NewEncoder(&buf)
			for _, v := range vals {
				enc.Uvarint(v)
			}
			if enc.Flush() != nil {
				return false
			}
			dec := NewDecoder(&buf, 0)
			for _, want := range vals {
				got, err := dec.Uvarint()
				if err != nil || got != want {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.UInt64()),
	))

	properties.Property("ascending delta list round-trips", prop.ForAll(
		func(vals []uint64) bool {
			vals = append(vals, 0, math.MaxUint64)
			sort.Slice(vals, func(i, j int) bool { return vals[i] < vals[j] })
			if len(vals) > 2 {
				vals = append(vals, vals[len(vals)-1])
			}
			var buf bytes.Buffer
			enc := NewEncoder(&buf)
			enc.Deltas64(vals)
			if enc.Flush() != nil {
				return false
			}
			got, err := NewDecoder(&buf, 0).Deltas64()
			return err == nil && slices.Equal(got, vals)
		},
		gen.SliceOf(gen.UInt64()),
	))

	properties.Property("32-bit delta list round-trips any order", prop.ForAll(
		func(vals []uint32) bool {
			var buf bytes.Buffer
			enc := NewEncoder(&buf)
			enc.Deltas(vals)
			if enc.Flush() != nil {
				return false
			}
			got, err := NewDecoder(&buf, 0).Deltas()
			return err == nil && slices.Equal(got, vals)
		},
		gen.SliceOf(gen.UInt32()),
	))

	properties.Property("strings round-trip", prop.ForAll(
		func(s string) bool {
			var buf bytes.Buffer
			enc := NewEncoder(&buf)
			enc.String(s)
			if enc.Flush() != nil {
				return false
			}
			got, err := NewDecoder(&buf, 0).String()
			return err == nil && got == s
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func BenchmarkSave(b *testing.B) {
	idx := sampleIndex(2000)
	base := filepath.Join(b.TempDir(), "bench")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := Save(base, idx); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkLoad(b *testing.B) {
	base := filepath.Join(b.TempDir(), "bench")
	if err := Save(base, sampleIndex(2000)); err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := Load(base, LoadOptions{}); err != nil {
			b.Fatal(err)
		}
	}
}
