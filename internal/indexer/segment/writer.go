// Package segment persists an index.Index as a pair of varint-coded files:
// <base>.docs holds the forward store and <base>.inv the inverted index.
package segment

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/errors"
)

const (
	MagicHeader uint64 = 0xCAFEBABE
	MagicFooter uint64 = 0xDEADBEEF

	DocsExt = ".docs"
	InvExt  = ".inv"
)

// Save writes idx to basePath+".docs" and basePath+".inv". Each file is
// written to a .tmp sibling and renamed into place once it is synced.
func Save(basePath string, idx *index.Index) error {
	if dir := filepath.Dir(basePath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return apperrors.IOf(err, "creating index directory %s", dir)
		}
	}
	if err := writeAtomic(basePath+DocsExt, func(enc *Encoder) { writeForward(enc, idx.Forward) }); err != nil {
		return fmt.Errorf("writing forward store: %w", err)
	}
	if err := writeAtomic(basePath+InvExt, func(enc *Encoder) { writeInverted(enc, idx) }); err != nil {
		return fmt.Errorf("writing inverted index: %w", err)
	}
	return nil
}

func writeAtomic(finalPath string, body func(enc *Encoder)) error {
	tmpPath := finalPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return apperrors.IOf(err, "creating %s", tmpPath)
	}
	defer f.Close()

	enc := NewEncoder(f)
	body(enc)
	if err := enc.Flush(); err != nil {
		os.Remove(tmpPath)
		return apperrors.IOf(err, "writing %s", tmpPath)
	}
	if err := f.Sync(); err != nil {
		os.Remove(tmpPath)
		return apperrors.IOf(err, "syncing %s", tmpPath)
	}
	f.Close()
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return apperrors.IOf(err, "renaming %s", tmpPath)
	}
	return nil
}

func writeForward(enc *Encoder, store *index.ForwardStore) {
	docs := store.Documents()
	enc.Uvarint(uint64(len(docs)))
	for _, doc := range docs {
		enc.Uvarint(uint64(doc.ID))
		enc.String(doc.Title)
		enc.String(doc.Plot)
	}
	enc.Deltas(store.Lengths())
}

func writeInverted(enc *Encoder, idx *index.Index) {
	enc.Uvarint(MagicHeader)
	terms := idx.Terms()
	enc.Uvarint(uint64(len(terms)))
	for _, term := range terms {
		fields := idx.Inverted[term]
		enc.String(term)
		enc.Uvarint(uint64(len(fields)))
		for _, field := range index.SortedFields(fields) {
			list := fields[field]
			enc.String(field)
			enc.Deltas(list.Docs)
			enc.Uvarint(uint64(len(list.Positions)))
			for _, positions := range list.Positions {
				enc.Deltas(positions)
			}
			enc.Deltas(list.Skips)
			enc.Uvarint(uint64(list.SkipStep))
		}
	}
	enc.Uvarint(MagicFooter)
}
