package domain

// Role is the two-valued account role. Wire values match the stored
// integers: 0 is admin, 1 is an ordinary user.
type Role int32

const (
	RoleAdmin Role = 0
	RoleUser  Role = 1
)

// Valid reports whether the role is one of the two defined values.
// Anything else coming out of a store is a data-integrity error.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleUser:
		return "user"
	default:
		return "unknown"
	}
}

// Account is a login identity record.
type Account struct {
	ID       int64  `json:"user_id"`
	Name     string `json:"username"`
	Password string `json:"-"`
	Role     Role   `json:"role_level"`
}

// Author groups books under a single writer/narrator.
type Author struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Avatar      string `json:"avatar"`
	Description string `json:"description"`
}

// Book is one audiobook: a named, chapter-counted folder of audio files
// stored relative to the configured books root.
type Book struct {
	ID         int64  `json:"id"`
	AuthorID   int64  `json:"author_id"`
	Name       string `json:"name"`
	Chapters   int32  `json:"chapters"`
	FileFolder string `json:"file_folder"`
}

// Progress is one account's saved playback position within one book:
// the chapter number plus a fractional offset inside that chapter.
type Progress struct {
	ID        int64   `json:"id"`
	AccountID int64   `json:"account_id"`
	BookID    int64   `json:"music_id"`
	ChapterNo int32   `json:"chapter_no"`
	Progress  float64 `json:"progress"`
}
