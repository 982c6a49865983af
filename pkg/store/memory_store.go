package store

import (
	"fmt"
	"sort"
	"sync"

	"audiobookd/pkg/domain"
)

// MemoryStore keeps catalog data in-process. It mirrors GormStore
// semantics (including get-or-create progress) and backs handler tests.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[int64]domain.Account
	authors  map[int64]domain.Author
	books    map[int64]domain.Book
	progress map[int64]domain.Progress
	nextID   map[string]int64
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[int64]domain.Account),
		authors:  make(map[int64]domain.Author),
		books:    make(map[int64]domain.Book),
		progress: make(map[int64]domain.Progress),
		nextID:   make(map[string]int64),
	}
}

func (m *MemoryStore) nextIDLocked(table string) int64 {
	m.nextID[table]++
	return m.nextID[table]
}

// CreateAccount inserts a new account, rejecting duplicate usernames.
func (m *MemoryStore) CreateAccount(a domain.Account) (domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.accounts {
		if existing.Name == a.Name {
			return domain.Account{}, fmt.Errorf("create account: %w", ErrConflict)
		}
	}
	a.ID = m.nextIDLocked("accounts")
	m.accounts[a.ID] = a
	return a, nil
}

// GetAccountByName looks up an account by username.
func (m *MemoryStore) GetAccountByName(name string) (domain.Account, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Name == name {
			return a, true, nil
		}
	}
	return domain.Account{}, false, nil
}

// GetAccountByID returns an account by id.
func (m *MemoryStore) GetAccountByID(id int64) (domain.Account, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	return a, ok, nil
}

// ListAccounts returns all accounts ordered by id.
func (m *MemoryStore) ListAccounts() ([]domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]domain.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		res = append(res, a)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// UpdateAccountPassword overwrites the stored digest.
func (m *MemoryStore) UpdateAccountPassword(name, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, a := range m.accounts {
		if a.Name == name {
			a.Password = passwordHash
			m.accounts[id] = a
			return nil
		}
	}
	return fmt.Errorf("update password for %q: %w", name, ErrNotFound)
}

// DeleteAccount removes an account by username.
func (m *MemoryStore) DeleteAccount(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, a := range m.accounts {
		if a.Name == name {
			delete(m.accounts, id)
			return nil
		}
	}
	return fmt.Errorf("delete account %q: %w", name, ErrNotFound)
}

// CreateAuthor inserts a new author, rejecting duplicate names.
func (m *MemoryStore) CreateAuthor(a domain.Author) (domain.Author, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.authors {
		if existing.Name == a.Name {
			return domain.Author{}, fmt.Errorf("create author: %w", ErrConflict)
		}
	}
	a.ID = m.nextIDLocked("authors")
	m.authors[a.ID] = a
	return a, nil
}

// GetAuthorByName looks up an author by name.
func (m *MemoryStore) GetAuthorByName(name string) (domain.Author, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.authors {
		if a.Name == name {
			return a, true, nil
		}
	}
	return domain.Author{}, false, nil
}

// GetAuthorByID returns an author by id.
func (m *MemoryStore) GetAuthorByID(id int64) (domain.Author, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.authors[id]
	return a, ok, nil
}

// ListAuthors returns all authors ordered by id.
func (m *MemoryStore) ListAuthors() ([]domain.Author, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]domain.Author, 0, len(m.authors))
	for _, a := range m.authors {
		res = append(res, a)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// CreateBook inserts a new book, rejecting duplicate names.
func (m *MemoryStore) CreateBook(b domain.Book) (domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.books {
		if existing.Name == b.Name {
			return domain.Book{}, fmt.Errorf("create book: %w", ErrConflict)
		}
	}
	if _, ok := m.authors[b.AuthorID]; !ok {
		return domain.Book{}, fmt.Errorf("create book: author %d: %w", b.AuthorID, ErrNotFound)
	}
	b.ID = m.nextIDLocked("music")
	m.books[b.ID] = b
	return b, nil
}

// GetBook retrieves a book by id.
func (m *MemoryStore) GetBook(id int64) (domain.Book, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	return b, ok, nil
}

// ListBooks returns one page of books ordered by id.
func (m *MemoryStore) ListBooks(page, pageSize int) ([]domain.Book, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]domain.Book, 0, len(m.books))
	for _, b := range m.books {
		all = append(all, b)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	start := (page - 1) * pageSize
	if start >= len(all) {
		return []domain.Book{}, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

// CountBooks returns the total number of books.
func (m *MemoryStore) CountBooks() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.books)), nil
}

// GetOrCreateProgress returns the unique row for the pair, inserting
// chapter 0 / position 0.0 when absent. Creation is serialized under the
// store lock so concurrent first accesses observe one row.
func (m *MemoryStore) GetOrCreateProgress(accountID, bookID int64) (domain.Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.progress {
		if p.AccountID == accountID && p.BookID == bookID {
			return p, nil
		}
	}
	p := domain.Progress{
		ID:        m.nextIDLocked("progress"),
		AccountID: accountID,
		BookID:    bookID,
		ChapterNo: 0,
		Progress:  0,
	}
	m.progress[p.ID] = p
	return p, nil
}

// SetProgress overwrites chapter and position for the pair's row.
func (m *MemoryStore) SetProgress(accountID, bookID int64, chapterNo int32, progress float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.progress {
		if p.AccountID == accountID && p.BookID == bookID {
			p.ChapterNo = chapterNo
			p.Progress = progress
			m.progress[id] = p
			return nil
		}
	}
	return fmt.Errorf("set progress account=%d book=%d: %w", accountID, bookID, ErrNotFound)
}

// ListProgressByAccount returns all progress rows for one account.
func (m *MemoryStore) ListProgressByAccount(accountID int64) ([]domain.Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]domain.Progress, 0)
	for _, p := range m.progress {
		if p.AccountID == accountID {
			res = append(res, p)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// MigrateProgress re-points all progress rows from one account to another.
func (m *MemoryStore) MigrateProgress(fromAccountID, toAccountID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.progress {
		if p.AccountID == fromAccountID {
			p.AccountID = toAccountID
			m.progress[id] = p
		}
	}
	return nil
}
