package segment

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/errors"
)

type LoadOptions struct {
	// MaxBlockSize bounds every string length and list count read from
	// disk. Zero selects DefaultMaxBlockSize.
	MaxBlockSize int
}

// DroppedList records a postings list discarded during load.
type DroppedList struct {
	Term   string `json:"term"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type LoadStats struct {
	Documents    int           `json:"documents"`
	Terms        int           `json:"terms"`
	PostingLists int           `json:"posting_lists"`
	Dropped      []DroppedList `json:"dropped"`
	Duration     time.Duration `json:"duration"`
}

// Load reads basePath+".docs" and basePath+".inv". A missing or unreadable
// file yields ErrIO and structural corruption yields ErrFormat. A postings
// list that is inconsistent with the forward store is dropped and reported
// in LoadStats rather than failing the load.
func Load(basePath string, opts LoadOptions) (*index.Index, LoadStats, error) {
	logger := slog.Default().With("component", "segment")
	start := time.Now()
	var stats LoadStats

	forward, err := readFile(basePath+DocsExt, opts, readForward)
	if err != nil {
		return nil, stats, fmt.Errorf("loading forward store: %w", err)
	}
	idx := &index.Index{Forward: forward}

	loadInv := func(dec *Decoder) (map[string]map[string]*index.PostingsList, error) {
		return readInverted(dec, forward.Size(), &stats, logger)
	}
	idx.Inverted, err = readFile(basePath+InvExt, opts, loadInv)
	if err != nil {
		return nil, stats, fmt.Errorf("loading inverted index: %w", err)
	}

	stats.Documents = forward.Size()
	stats.Terms = len(idx.Inverted)
	stats.Duration = time.Since(start)
	logger.Info("index loaded",
		"base", basePath,
		"docs", stats.Documents,
		"terms", stats.Terms,
		"posting_lists", stats.PostingLists,
		"dropped", len(stats.Dropped),
		"duration", stats.Duration,
	)
	return idx, stats, nil
}

func readFile[T any](path string, opts LoadOptions, read func(*Decoder) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, apperrors.IOf(err, "opening %s", path)
	}
	defer f.Close()
	v, err := read(NewDecoder(f, opts.MaxBlockSize))
	if err != nil {
		return zero, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

func readForward(dec *Decoder) (*index.ForwardStore, error) {
	count, err := dec.Count("document")
	if err != nil {
		return nil, err
	}
	docs := make([]index.Document, 0, min(count, preallocLimit))
	for i := 0; i < count; i++ {
		id, err := dec.Uint32()
		if err != nil {
			return nil, err
		}
		title, err := dec.String()
		if err != nil {
			return nil, err
		}
		plot, err := dec.String()
		if err != nil {
			return nil, err
		}
		docs = append(docs, index.Document{ID: id, Title: title, Plot: plot})
	}
	lengths, err := dec.Deltas()
	if err != nil {
		return nil, err
	}
	return index.RestoreForwardStore(docs, lengths)
}

func readInverted(dec *Decoder, totalDocs int, stats *LoadStats, logger *slog.Logger) (map[string]map[string]*index.PostingsList, error) {
	magic, err := dec.Uvarint()
	if err != nil {
		return nil, err
	}
	if magic != MagicHeader {
		return nil, apperrors.Formatf("bad header magic %#x", magic)
	}
	termCount, err := dec.Count("term")
	if err != nil {
		return nil, err
	}

	inverted := make(map[string]map[string]*index.PostingsList, min(termCount, preallocLimit))
	for i := 0; i < termCount; i++ {
		term, err := dec.String()
		if err != nil {
			return nil, err
		}
		fieldCount, err := dec.Count("field")
		if err != nil {
			return nil, err
		}
		for j := 0; j < fieldCount; j++ {
			field, list, err := readPostings(dec)
			if err != nil {
				return nil, fmt.Errorf("term %q: %w", term, err)
			}
			if reason := list.Validate(totalDocs); reason != "" {
				logger.Warn("dropping corrupt postings list",
					"term", term,
					"field", field,
					"reason", reason,
				)
				stats.Dropped = append(stats.Dropped, DroppedList{Term: term, Field: field, Reason: reason})
				continue
			}
			fields, ok := inverted[term]
			if !ok {
				fields = make(map[string]*index.PostingsList, fieldCount)
				inverted[term] = fields
			}
			fields[field] = list
			stats.PostingLists++
		}
	}

	magic, err = dec.Uvarint()
	if err != nil {
		return nil, err
	}
	if magic != MagicFooter {
		return nil, apperrors.Formatf("bad footer magic %#x", magic)
	}
	return inverted, nil
}

func readPostings(dec *Decoder) (string, *index.PostingsList, error) {
	field, err := dec.String()
	if err != nil {
		return "", nil, err
	}
	list := &index.PostingsList{}
	if list.Docs, err = dec.Deltas(); err != nil {
		return "", nil, err
	}
	posCount, err := dec.Count("position list")
	if err != nil {
		return "", nil, err
	}
	list.Positions = make([][]uint32, 0, min(posCount, preallocLimit))
	for k := 0; k < posCount; k++ {
		positions, err := dec.Deltas()
		if err != nil {
			return "", nil, err
		}
		list.Positions = append(list.Positions, positions)
	}
	if list.Skips, err = dec.Deltas(); err != nil {
		return "", nil, err
	}
	if list.SkipStep, err = dec.Uint32(); err != nil {
		return "", nil, err
	}
	return field, list, nil
}
