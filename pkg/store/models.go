package store

// GORM models used for persistence.
type AccountModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"uniqueIndex;not null"`
	Password  string `gorm:"not null"`
	RoleLevel int32  `gorm:"not null"`
}

func (AccountModel) TableName() string { return "accounts" }

type AuthorModel struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Name        string `gorm:"uniqueIndex;not null"`
	Avatar      string
	Description string
}

func (AuthorModel) TableName() string { return "authors" }

type MusicModel struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	AuthorID   int64  `gorm:"not null;index"`
	Name       string `gorm:"uniqueIndex;not null"`
	Chapters   int32  `gorm:"not null"`
	FileFolder string `gorm:"not null"`
}

func (MusicModel) TableName() string { return "music" }

// ProgressModel rows are unique per (account, book) pair. The composite
// index backs the conflict-tolerant insert in GetOrCreateProgress.
type ProgressModel struct {
	ID        int64   `gorm:"primaryKey;autoIncrement"`
	AccountID int64   `gorm:"not null;uniqueIndex:idx_progress_account_music"`
	MusicID   int64   `gorm:"not null;uniqueIndex:idx_progress_account_music"`
	ChapterNo int32   `gorm:"not null"`
	Progress  float64 `gorm:"not null"`
}

func (ProgressModel) TableName() string { return "progress" }
