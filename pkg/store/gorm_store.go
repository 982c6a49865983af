package store

import (
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"audiobookd/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&AccountModel{}, &AuthorModel{}, &MusicModel{}, &ProgressModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// CreateAccount inserts a new account and returns it with the assigned id.
func (s *GormStore) CreateAccount(a domain.Account) (domain.Account, error) {
	model := accountToModel(a)
	model.ID = 0
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Account{}, translateErr("create account", err)
	}
	return accountFromModel(model), nil
}

// GetAccountByName looks up an account by its unique username.
func (s *GormStore) GetAccountByName(name string) (domain.Account, bool, error) {
	var model AccountModel
	if err := s.db.Where("name = ?", name).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Account{}, false, nil
		}
		return domain.Account{}, false, err
	}
	return accountFromModel(model), true, nil
}

// GetAccountByID returns an account by id.
func (s *GormStore) GetAccountByID(id int64) (domain.Account, bool, error) {
	var model AccountModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Account{}, false, nil
		}
		return domain.Account{}, false, err
	}
	return accountFromModel(model), true, nil
}

// ListAccounts returns all accounts ordered by id.
func (s *GormStore) ListAccounts() ([]domain.Account, error) {
	var models []AccountModel
	if err := s.db.Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Account, 0, len(models))
	for _, m := range models {
		res = append(res, accountFromModel(m))
	}
	return res, nil
}

// UpdateAccountPassword overwrites the stored password digest.
func (s *GormStore) UpdateAccountPassword(name, passwordHash string) error {
	tx := s.db.Model(&AccountModel{}).Where("name = ?", name).Update("password", passwordHash)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("update password for %q: %w", name, ErrNotFound)
	}
	return nil
}

// DeleteAccount removes an account by username. Progress rows reference
// accounts with a restricting FK, so accounts with progress must be
// migrated first.
func (s *GormStore) DeleteAccount(name string) error {
	tx := s.db.Where("name = ?", name).Delete(&AccountModel{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("delete account %q: %w", name, ErrNotFound)
	}
	return nil
}

// CreateAuthor inserts a new author.
func (s *GormStore) CreateAuthor(a domain.Author) (domain.Author, error) {
	model := authorToModel(a)
	model.ID = 0
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Author{}, translateErr("create author", err)
	}
	return authorFromModel(model), nil
}

// GetAuthorByName looks up an author by its unique name.
func (s *GormStore) GetAuthorByName(name string) (domain.Author, bool, error) {
	var model AuthorModel
	if err := s.db.Where("name = ?", name).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Author{}, false, nil
		}
		return domain.Author{}, false, err
	}
	return authorFromModel(model), true, nil
}

// GetAuthorByID returns an author by id.
func (s *GormStore) GetAuthorByID(id int64) (domain.Author, bool, error) {
	var model AuthorModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Author{}, false, nil
		}
		return domain.Author{}, false, err
	}
	return authorFromModel(model), true, nil
}

// ListAuthors returns all authors ordered by id.
func (s *GormStore) ListAuthors() ([]domain.Author, error) {
	var models []AuthorModel
	if err := s.db.Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Author, 0, len(models))
	for _, m := range models {
		res = append(res, authorFromModel(m))
	}
	return res, nil
}

// CreateBook inserts a new book row.
func (s *GormStore) CreateBook(b domain.Book) (domain.Book, error) {
	model := musicToModel(b)
	model.ID = 0
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Book{}, translateErr("create book", err)
	}
	return musicFromModel(model), nil
}

// GetBook retrieves a book by id.
func (s *GormStore) GetBook(id int64) (domain.Book, bool, error) {
	var model MusicModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return musicFromModel(model), true, nil
}

// ListBooks returns one page of books ordered by id. Page numbers start at 1.
func (s *GormStore) ListBooks(page, pageSize int) ([]domain.Book, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	var models []MusicModel
	err := s.db.Order("id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	res := make([]domain.Book, 0, len(models))
	for _, m := range models {
		res = append(res, musicFromModel(m))
	}
	return res, nil
}

// CountBooks returns the total number of books.
func (s *GormStore) CountBooks() (int64, error) {
	var count int64
	if err := s.db.Model(&MusicModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// GetOrCreateProgress returns the unique progress row for the (account,
// book) pair, inserting chapter 0 / position 0.0 when absent. The insert
// tolerates a concurrent first access: on conflict with the composite
// unique index it falls through to the reload, so both callers observe
// the same row. Existing rows are never updated here.
func (s *GormStore) GetOrCreateProgress(accountID, bookID int64) (domain.Progress, error) {
	model := ProgressModel{
		AccountID: accountID,
		MusicID:   bookID,
		ChapterNo: 0,
		Progress:  0,
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "music_id"}},
		DoNothing: true,
	}).Create(&model).Error
	if err != nil {
		return domain.Progress{}, fmt.Errorf("create progress: %w", err)
	}
	var out ProgressModel
	err = s.db.Where("account_id = ? AND music_id = ?", accountID, bookID).First(&out).Error
	if err != nil {
		return domain.Progress{}, fmt.Errorf("reload progress: %w", err)
	}
	return progressFromModel(out), nil
}

// SetProgress overwrites chapter and position for the pair's row.
func (s *GormStore) SetProgress(accountID, bookID int64, chapterNo int32, progress float64) error {
	tx := s.db.Model(&ProgressModel{}).
		Where("account_id = ? AND music_id = ?", accountID, bookID).
		Updates(map[string]any{
			"chapter_no": chapterNo,
			"progress":   progress,
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("set progress account=%d book=%d: %w", accountID, bookID, ErrNotFound)
	}
	return nil
}

// ListProgressByAccount returns all progress rows for one account.
func (s *GormStore) ListProgressByAccount(accountID int64) ([]domain.Progress, error) {
	var models []ProgressModel
	if err := s.db.Where("account_id = ?", accountID).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Progress, 0, len(models))
	for _, m := range models {
		res = append(res, progressFromModel(m))
	}
	return res, nil
}

// MigrateProgress re-points all progress rows from one account to another.
func (s *GormStore) MigrateProgress(fromAccountID, toAccountID int64) error {
	return s.db.Model(&ProgressModel{}).
		Where("account_id = ?", fromAccountID).
		Update("account_id", toAccountID).Error
}

func translateErr(op string, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%s: %w", op, ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func accountToModel(a domain.Account) AccountModel {
	return AccountModel{
		ID:        a.ID,
		Name:      a.Name,
		Password:  a.Password,
		RoleLevel: int32(a.Role),
	}
}

func accountFromModel(m AccountModel) domain.Account {
	return domain.Account{
		ID:       m.ID,
		Name:     m.Name,
		Password: m.Password,
		Role:     domain.Role(m.RoleLevel),
	}
}

func authorToModel(a domain.Author) AuthorModel {
	return AuthorModel{
		ID:          a.ID,
		Name:        a.Name,
		Avatar:      a.Avatar,
		Description: a.Description,
	}
}

func authorFromModel(m AuthorModel) domain.Author {
	return domain.Author{
		ID:          m.ID,
		Name:        m.Name,
		Avatar:      m.Avatar,
		Description: m.Description,
	}
}

func musicToModel(b domain.Book) MusicModel {
	return MusicModel{
		ID:         b.ID,
		AuthorID:   b.AuthorID,
		Name:       b.Name,
		Chapters:   b.Chapters,
		FileFolder: b.FileFolder,
	}
}

func musicFromModel(m MusicModel) domain.Book {
	return domain.Book{
		ID:         m.ID,
		AuthorID:   m.AuthorID,
		Name:       m.Name,
		Chapters:   m.Chapters,
		FileFolder: m.FileFolder,
	}
}

func progressFromModel(m ProgressModel) domain.Progress {
	return domain.Progress{
		ID:        m.ID,
		AccountID: m.AccountID,
		BookID:    m.MusicID,
		ChapterNo: m.ChapterNo,
		Progress:  m.Progress,
	}
}
