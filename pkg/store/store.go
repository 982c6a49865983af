package store

import (
	"errors"

	"audiobookd/pkg/domain"
)

var (
	// ErrConflict indicates a unique field collision on create.
	ErrConflict = errors.New("duplicate record")
	// ErrNotFound indicates the referenced record does not exist.
	ErrNotFound = errors.New("record not found")
)

// Store defines persistence operations for accounts, authors, books,
// and playback progress.
type Store interface {
	// accounts
	CreateAccount(a domain.Account) (domain.Account, error)
	GetAccountByName(name string) (domain.Account, bool, error)
	GetAccountByID(id int64) (domain.Account, bool, error)
	ListAccounts() ([]domain.Account, error)
	UpdateAccountPassword(name, passwordHash string) error
	DeleteAccount(name string) error

	// authors
	CreateAuthor(a domain.Author) (domain.Author, error)
	GetAuthorByName(name string) (domain.Author, bool, error)
	GetAuthorByID(id int64) (domain.Author, bool, error)
	ListAuthors() ([]domain.Author, error)

	// books
	CreateBook(b domain.Book) (domain.Book, error)
	GetBook(id int64) (domain.Book, bool, error)
	ListBooks(page, pageSize int) ([]domain.Book, error)
	CountBooks() (int64, error)

	// progress
	GetOrCreateProgress(accountID, bookID int64) (domain.Progress, error)
	SetProgress(accountID, bookID int64, chapterNo int32, progress float64) error
	ListProgressByAccount(accountID int64) ([]domain.Progress, error)
	MigrateProgress(fromAccountID, toAccountID int64) error
}
