package store

import (
	"errors"
	"sync"
	"testing"

	"audiobookd/pkg/domain"
)

func TestGetOrCreateProgressInsertsDefaultsThenReturnsSameRow(t *testing.T) {
	s := NewMemoryStore()

	first, err := s.GetOrCreateProgress(5, 9)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if first.ID == 0 {
		t.Fatalf("expected freshly assigned id")
	}
	if first.ChapterNo != 0 || first.Progress != 0 {
		t.Fatalf("expected chapter 0 / progress 0.0, got %d / %f", first.ChapterNo, first.Progress)
	}

	second, err := s.GetOrCreateProgress(5, 9)
	if err != nil {
		t.Fatalf("get or create again: %v", err)
	}
	if second != first {
		t.Fatalf("expected identical row, got %+v vs %+v", second, first)
	}
}

func TestGetOrCreateProgressNeverUpdatesExistingRow(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.GetOrCreateProgress(1, 2); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := s.SetProgress(1, 2, 7, 0.42); err != nil {
		t.Fatalf("set progress: %v", err)
	}
	p, err := s.GetOrCreateProgress(1, 2)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if p.ChapterNo != 7 || p.Progress != 0.42 {
		t.Fatalf("existing row was modified: %+v", p)
	}
}

func TestGetOrCreateProgressConcurrentFirstAccessYieldsOneRow(t *testing.T) {
	s := NewMemoryStore()

	const workers = 8
	var wg sync.WaitGroup
	wg.Add(workers)
	ids := make(chan int64, workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			p, err := s.GetOrCreateProgress(3, 4)
			if err != nil {
				t.Errorf("get or create: %v", err)
				return
			}
			ids <- p.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]struct{})
	for id := range ids {
		seen[id] = struct{}{}
	}
	if len(seen) != 1 {
		t.Fatalf("expected one progress row, got ids %v", seen)
	}
}

func TestSetProgressOnMissingRow(t *testing.T) {
	s := NewMemoryStore()
	if err := s.SetProgress(1, 1, 3, 0.5); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestCreateAccountRejectsDuplicateName(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.CreateAccount(domain.Account{Name: "alice", Role: domain.RoleUser}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreateAccount(domain.Account{Name: "alice", Role: domain.RoleAdmin}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got: %v", err)
	}
}

func TestCreateBookRequiresExistingAuthor(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.CreateBook(domain.Book{Name: "orphan", AuthorID: 99}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing author, got: %v", err)
	}
	author, err := s.CreateAuthor(domain.Author{Name: "someone"})
	if err != nil {
		t.Fatalf("create author: %v", err)
	}
	book, err := s.CreateBook(domain.Book{Name: "titled", AuthorID: author.ID, Chapters: 12, FileFolder: "someone/titled"})
	if err != nil {
		t.Fatalf("create book: %v", err)
	}
	if book.ID == 0 {
		t.Fatalf("expected assigned book id")
	}
}

func TestListBooksPagination(t *testing.T) {
	s := NewMemoryStore()
	author, err := s.CreateAuthor(domain.Author{Name: "a"})
	if err != nil {
		t.Fatalf("create author: %v", err)
	}
	names := []string{"one", "two", "three", "four", "five"}
	for _, n := range names {
		if _, err := s.CreateBook(domain.Book{Name: n, AuthorID: author.ID}); err != nil {
			t.Fatalf("create book %s: %v", n, err)
		}
	}
	page2, err := s.ListBooks(2, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page2) != 2 || page2[0].Name != "three" || page2[1].Name != "four" {
		t.Fatalf("unexpected page 2: %+v", page2)
	}
	page3, err := s.ListBooks(3, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page3) != 1 || page3[0].Name != "five" {
		t.Fatalf("unexpected page 3: %+v", page3)
	}
	empty, err := s.ListBooks(4, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty page, got %+v", empty)
	}
}

func TestMigrateProgressRepointsRows(t *testing.T) {
	s := NewMemoryStore()
	old, err := s.CreateAccount(domain.Account{Name: "old", Role: domain.RoleUser})
	if err != nil {
		t.Fatalf("create old: %v", err)
	}
	next, err := s.CreateAccount(domain.Account{Name: "new", Role: domain.RoleUser})
	if err != nil {
		t.Fatalf("create new: %v", err)
	}
	if _, err := s.GetOrCreateProgress(old.ID, 10); err != nil {
		t.Fatalf("seed progress: %v", err)
	}
	if _, err := s.GetOrCreateProgress(old.ID, 11); err != nil {
		t.Fatalf("seed progress: %v", err)
	}

	if err := s.MigrateProgress(old.ID, next.ID); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	moved, err := s.ListProgressByAccount(next.ID)
	if err != nil {
		t.Fatalf("list new: %v", err)
	}
	if len(moved) != 2 {
		t.Fatalf("expected 2 migrated rows, got %d", len(moved))
	}
	left, err := s.ListProgressByAccount(old.ID)
	if err != nil {
		t.Fatalf("list old: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("expected no rows left on old account, got %d", len(left))
	}
}
