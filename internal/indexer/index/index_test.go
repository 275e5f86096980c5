package index

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/errors"
)

func buildSample() *Index {
	idx := New()
	idx.AddDocument(Document{ID: 0, Title: "The Quick Fox", Plot: "fox jumps"})
	idx.AddDocument(Document{ID: 1, Title: "Slow Turtle", Plot: "quick brown fox"})
	idx.BuildSkipPointers()
	return idx
}

func TestAddDocumentPostings(t *testing.T) {
	idx := buildSample()

	fox := idx.Postings("fox", FieldPlot)
	if fox == nil {
		t.Fatal("expected plot postings for fox")
	}
	if !reflect.DeepEqual(fox.Docs, []DocID{0, 1}) {
		t.Errorf("fox plot docs = %v", fox.Docs)
	}
	if !reflect.DeepEqual(fox.Positions, [][]uint32{{0}, {2}}) {
		t.Errorf("fox plot positions = %v", fox.Positions)
	}

	quickTitle := idx.Postings("quick", FieldTitle)
	if quickTitle == nil || !reflect.DeepEqual(quickTitle.Docs, []DocID{0}) {
		t.Errorf("quick title postings = %+v", quickTitle)
	}
	if idx.Postings("the", FieldTitle) != nil {
		t.Error("stop word should not be indexed")
	}
	if idx.Postings("missing", FieldPlot) != nil {
		t.Error("unknown term should have no postings")
	}
}

func TestRepeatedTermPositions(t *testing.T) {
	idx := New()
	idx.AddDocument(Document{ID: 0, Title: "", Plot: "run run fast run"})
	list := idx.Postings("run", FieldPlot)
	if list == nil {
		t.Fatal("missing postings")
	}
	if !reflect.DeepEqual(list.Positions[0], []uint32{0, 1, 3}) {
		t.Errorf("positions = %v", list.Positions[0])
	}
	if got := list.TermFrequency(0); got != 3 {
		t.Errorf("TermFrequency = %d, want 3", got)
	}
}

func TestBuildSkips(t *testing.T) {
	for _, n := range []int{0, 1, 4, 5, 9, 10, 16, 17, 100, 1000} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			list := &PostingsList{}
			for i := 0; i < n; i++ {
				list.Docs = append(list.Docs, DocID(i*3))
				list.Positions = append(list.Positions, []uint32{0})
			}
			list.BuildSkips()
			if n <= 4 {
				if list.SkipStep != 0 || len(list.Skips) != 0 {
					t.Fatalf("short list got step %d skips %v", list.SkipStep, list.Skips)
				}
				return
			}
			want := uint32(math.Floor(math.Sqrt(float64(n))))
			if list.SkipStep != want {
				t.Fatalf("step = %d, want %d", list.SkipStep, want)
			}
			for k, s := range list.Skips {
				if s != uint32(k+1)*want {
					t.Fatalf("skip[%d] = %d, want %d", k, s, uint32(k+1)*want)
				}
				if int(s) >= n {
					t.Fatalf("skip[%d] = %d out of range", k, s)
				}
			}
			if len(list.Skips) != (n-1)/int(want) {
				t.Fatalf("got %d skips, want %d", len(list.Skips), (n-1)/int(want))
			}
			if reason := list.Validate(n * 3); reason != "" {
				t.Fatalf("built list failed validation: %s", reason)
			}
		})
	}
}

func TestForwardStore(t *testing.T) {
	store := NewForwardStore()
	if store.AvgDocLength() != 1.0 {
		t.Errorf("empty avg = %f, want 1.0", store.AvgDocLength())
	}

	store.Add(Document{ID: 0, Title: "The Quick Fox", Plot: "fox jumps"})
	store.Add(Document{ID: 1, Title: "Slow Turtle", Plot: "quick brown fox"})

	// "The Quick Fox" has 2 spaces, "fox jumps" 1; the title/plot join adds none.
	if got := store.DocLength(0); got != 4 {
		t.Errorf("DocLength(0) = %d, want 4", got)
	}
	if got := store.DocLength(1); got != 4 {
		t.Errorf("DocLength(1) = %d, want 4", got)
	}
	if got := store.DocLength(7); got != 0 {
		t.Errorf("DocLength(7) = %d, want 0", got)
	}
	if store.Size() != 2 || store.TotalLength() != 8 {
		t.Errorf("size %d total %d", store.Size(), store.TotalLength())
	}
	if store.AvgDocLength() != 4.0 {
		t.Errorf("avg = %f, want 4", store.AvgDocLength())
	}

	// Only ASCII whitespace counts; U+00A0 and U+0085 do not.
	store.Add(Document{ID: 2, Title: "Am\u00e9lie\u00a0Poulain", Plot: "x\u0085y\tz"})
	if got := store.DocLength(2); got != 2 {
		t.Errorf("DocLength(2) = %d, want 2", got)
	}

	doc, err := store.Document(1)
	if err != nil || doc.Title != "Slow Turtle" {
		t.Fatalf("Document(1) = %+v, %v", doc, err)
	}
	if _, err := store.Document(3); !errors.Is(err, apperrors.ErrLookup) {
		t.Fatalf("Document(2) error = %v, want ErrLookup", err)
	}
}

func TestRestoreForwardStore(t *testing.T) {
	docs := []Document{{ID: 0, Title: "a", Plot: "b"}}
	if _, err := RestoreForwardStore(docs, []uint32{1, 2}); !errors.Is(err, apperrors.ErrFormat) {
		t.Fatalf("expected ErrFormat for mismatched lengths, got %v", err)
	}
	store, err := RestoreForwardStore(docs, []uint32{3})
	if err != nil {
		t.Fatal(err)
	}
	if store.TotalLength() != 3 || store.AvgDocLength() != 3 {
		t.Errorf("restored totals wrong: %d %f", store.TotalLength(), store.AvgDocLength())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		list PostingsList
		ok   bool
	}{
		{"empty", PostingsList{}, true},
		{"good", PostingsList{Docs: []DocID{0, 2}, Positions: [][]uint32{{1}, {0}}}, true},
		{"beyond count", PostingsList{Docs: []DocID{0, 5}, Positions: [][]uint32{{1}, {0}}}, false},
		{"positions mismatch", PostingsList{Docs: []DocID{0, 1}, Positions: [][]uint32{{1}}}, false},
		{"not increasing", PostingsList{Docs: []DocID{1, 1}, Positions: [][]uint32{{1}, {2}}}, false},
		{"bad skip", PostingsList{Docs: []DocID{0, 1}, Positions: [][]uint32{{1}, {2}}, Skips: []uint32{4}, SkipStep: 1}, false},
		{"skips without step", PostingsList{Docs: []DocID{0, 1}, Positions: [][]uint32{{1}, {2}}, Skips: []uint32{1}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason := tt.list.Validate(3)
			if (reason == "") != tt.ok {
				t.Errorf("Validate = %q, want ok=%v", reason, tt.ok)
			}
		})
	}
}

func TestStats(t *testing.T) {
	s := buildSample().Stats()
	if s.Documents != 2 {
		t.Errorf("documents = %d", s.Documents)
	}
	// quick(title,plot) fox(title,plot) jumps slow turtle brown
	if s.Terms != 6 || s.PostingLists != 8 {
		t.Errorf("terms = %d lists = %d", s.Terms, s.PostingLists)
	}
}

func BenchmarkAddDocument(b *testing.B) {
	b.ReportAllocs()
	idx := New()
	for i := 0; i < b.N; i++ {
		idx.AddDocument(Document{
			ID:    DocID(i),
			Title: "Night of the Living Dead",
			Plot:  "A group of strangers barricade themselves in a farmhouse to survive the night.",
		})
	}
}

func benchIndex(n int) *Index {
	idx := New()
	for i := 0; i < n; i++ {
		idx.AddDocument(Document{
			ID:    DocID(i),
			Title: fmt.Sprintf("Night of the Living Dead %d", i%50),
			Plot:  "A group of strangers barricade themselves in a farmhouse to survive the night.",
		})
	}
	idx.BuildSkipPointers()
	return idx
}

func BenchmarkPostings(b *testing.B) {
	idx := benchIndex(10000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if idx.Postings("farmhouse", FieldPlot) == nil {
			b.Fatal("missing postings")
		}
	}
}

func BenchmarkPostingsParallel(b *testing.B) {
	idx := benchIndex(10000)
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			idx.Postings("night", FieldTitle)
		}
	})
}
