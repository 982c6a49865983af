// Package ingest turns a raw directory of audio files into a registered
// library book: the files are arranged into the canonical layout under
// the books root and author/book rows are written to the store.
package ingest

import (
	"fmt"
	"path/filepath"

	"audiobookd/internal/arrange"
	"audiobookd/pkg/domain"
	"audiobookd/pkg/store"
)

// Ingestor wires the arranger to the catalog store.
type Ingestor struct {
	store     store.Store
	booksRoot string
}

// New constructs an Ingestor rooted at booksRoot.
func New(s store.Store, booksRoot string) *Ingestor {
	return &Ingestor{store: s, booksRoot: booksRoot}
}

// CreateBook arranges sourceDir into {booksRoot}/{author}/{book} and
// registers the book, creating the author on first sight. The stored
// file_folder is relative to the books root. A filesystem failure
// aborts before any rows are written; links already created are left in
// place.
func (in *Ingestor) CreateBook(authorName, bookName, sourceDir string) (domain.Book, error) {
	folder := filepath.Join(authorName, bookName)
	count, err := arrange.Arrange(sourceDir, filepath.Join(in.booksRoot, folder))
	if err != nil {
		return domain.Book{}, fmt.Errorf("arrange %s: %w", sourceDir, err)
	}

	author, ok, err := in.store.GetAuthorByName(authorName)
	if err != nil {
		return domain.Book{}, fmt.Errorf("lookup author: %w", err)
	}
	if !ok {
		author, err = in.store.CreateAuthor(domain.Author{Name: authorName})
		if err != nil {
			return domain.Book{}, fmt.Errorf("create author: %w", err)
		}
	}

	book, err := in.store.CreateBook(domain.Book{
		AuthorID:   author.ID,
		Name:       bookName,
		Chapters:   int32(count),
		FileFolder: folder,
	})
	if err != nil {
		return domain.Book{}, err
	}
	return book, nil
}
