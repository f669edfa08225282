// Package models holds the catalog's persisted entity shapes. Every type here
// maps 1:1 onto a table created by pkg/migrations.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

type Language struct {
	bun.BaseModel `bun:"table:languages,alias:lang"`

	ID       int64  `bun:"id,pk,autoincrement" json:"id"`
	Name     string `bun:"name,notnull" json:"name"`
	Code     string `bun:"code,notnull,unique" json:"code"`
	Version  int64  `bun:"version,notnull,default:1" json:"version"`
	Created  time.Time `bun:"created,notnull,default:current_timestamp" json:"created"`
	Modified time.Time `bun:"modified,notnull,default:current_timestamp" json:"modified"`
}

type Genre struct {
	bun.BaseModel `bun:"table:genres,alias:gen"`

	ID       int64     `bun:"id,pk,autoincrement" json:"id"`
	Name     string    `bun:"name,notnull,unique" json:"name"`
	Version  int64     `bun:"version,notnull,default:1" json:"version"`
	Created  time.Time `bun:"created,notnull,default:current_timestamp" json:"created"`
	Modified time.Time `bun:"modified,notnull,default:current_timestamp" json:"modified"`
}

type Format struct {
	bun.BaseModel `bun:"table:formats,alias:fmt"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Extension string    `bun:"extension,notnull,unique" json:"extension"`
	MimeType  string    `bun:"mime_type,notnull,unique" json:"mime_type"`
	Version   int64     `bun:"version,notnull,default:1" json:"version"`
	Created   time.Time `bun:"created,notnull,default:current_timestamp" json:"created"`
	Modified  time.Time `bun:"modified,notnull,default:current_timestamp" json:"modified"`
}

// Author is a catalogued person credited on one or more ebooks.
type Author struct {
	bun.BaseModel `bun:"table:authors,alias:auth"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	LastName    string    `bun:"last_name,notnull" json:"last_name"`
	FirstName   string    `bun:"first_name" json:"first_name,omitempty"`
	Description string    `bun:"description" json:"description,omitempty"`
	Version     int64     `bun:"version,notnull,default:1" json:"version"`
	Created     time.Time `bun:"created,notnull,default:current_timestamp" json:"created"`
	Modified    time.Time `bun:"modified,notnull,default:current_timestamp" json:"modified"`
}

// FullName renders "Last, First" or just "Last" if there is no first name.
func (a *Author) FullName() string {
	if a.FirstName == "" {
		return a.LastName
	}
	return a.LastName + ", " + a.FirstName
}

type Series struct {
	bun.BaseModel `bun:"table:series,alias:ser"`

	ID       int64     `bun:"id,pk,autoincrement" json:"id"`
	Title    string    `bun:"title,notnull" json:"title"`
	Version  int64     `bun:"version,notnull,default:1" json:"version"`
	Created  time.Time `bun:"created,notnull,default:current_timestamp" json:"created"`
	Modified time.Time `bun:"modified,notnull,default:current_timestamp" json:"modified"`
}

// EbookAuthor is the authors<->ebooks association row.
type EbookAuthor struct {
	bun.BaseModel `bun:"table:ebook_authors,alias:ea"`

	EbookID  int64 `bun:"ebook_id,pk" json:"ebook_id"`
	AuthorID int64 `bun:"author_id,pk" json:"author_id"`
}

// EbookGenre is the genres<->ebooks association row.
type EbookGenre struct {
	bun.BaseModel `bun:"table:ebook_genres,alias:eg"`

	EbookID int64 `bun:"ebook_id,pk" json:"ebook_id"`
	GenreID int64 `bun:"genre_id,pk" json:"genre_id"`
}

// Ebook is the catalog's central entity. BaseDir is computed once at create
// time by pkg/naming and is never recomputed afterward.
type Ebook struct {
	bun.BaseModel `bun:"table:ebooks,alias:ebk"`

	ID          int64  `bun:"id,pk,autoincrement" json:"id"`
	Title       string `bun:"title,notnull" json:"title"`
	Description string `bun:"description" json:"description,omitempty"`
	Cover       string `bun:"cover" json:"cover,omitempty"`
	BaseDir     string `bun:"base_dir,notnull" json:"base_dir"`

	SeriesID    *int64 `bun:"series_id" json:"series_id,omitempty"`
	SeriesIndex *float64 `bun:"series_index" json:"series_index,omitempty"`

	LanguageID int64 `bun:"language_id,notnull" json:"language_id"`

	Version   int64      `bun:"version,notnull,default:1" json:"version"`
	CreatedBy *int64     `bun:"created_by" json:"created_by,omitempty"`
	Created   time.Time  `bun:"created,notnull,default:current_timestamp" json:"created"`
	Modified  time.Time  `bun:"modified,notnull,default:current_timestamp" json:"modified"`

	Language *Language `bun:"rel:belongs-to,join:language_id=id" json:"language,omitempty"`
	Series   *Series   `bun:"rel:belongs-to,join:series_id=id" json:"series,omitempty"`
	Authors  []*Author `bun:"m2m:ebook_authors,join:Ebook=Author" json:"authors,omitempty"`
	Genres   []*Genre  `bun:"m2m:ebook_genres,join:Ebook=Genre" json:"genres,omitempty"`
	Sources  []*Source `bun:"rel:has-many,join:id=ebook_id" json:"sources,omitempty"`

	Rating *int `bun:"-" json:"rating,omitempty"`
}

// Source is one on-disk file backing an ebook in a given format.
type Source struct {
	bun.BaseModel `bun:"table:sources,alias:src"`

	ID        int64  `bun:"id,pk,autoincrement" json:"id"`
	EbookID   int64  `bun:"ebook_id,notnull" json:"ebook_id"`
	FormatID  int64  `bun:"format_id,notnull" json:"format_id"`
	Location  string `bun:"location,notnull" json:"location"`
	Size      int64  `bun:"size,notnull" json:"size"`
	Hash      string `bun:"hash,notnull" json:"hash"`
	Quality   string `bun:"quality" json:"quality,omitempty"`

	Version   int64     `bun:"version,notnull,default:1" json:"version"`
	CreatedBy *int64    `bun:"created_by" json:"created_by,omitempty"`
	Created   time.Time `bun:"created,notnull,default:current_timestamp" json:"created"`
	Modified  time.Time `bun:"modified,notnull,default:current_timestamp" json:"modified"`

	Format *Format `bun:"rel:belongs-to,join:format_id=id" json:"format,omitempty"`
}

// Conversion is a derived artifact of a Source in another format.
type Conversion struct {
	bun.BaseModel `bun:"table:conversions,alias:conv"`

	ID       int64   `bun:"id,pk,autoincrement" json:"id"`
	SourceID int64   `bun:"source_id,notnull" json:"source_id"`
	FormatID int64   `bun:"format_id,notnull" json:"format_id"`
	Location string  `bun:"location,notnull" json:"location"`
	BatchID  *string `bun:"batch_id" json:"batch_id,omitempty"`

	Version  int64     `bun:"version,notnull,default:1" json:"version"`
	Created  time.Time `bun:"created,notnull,default:current_timestamp" json:"created"`
	Modified time.Time `bun:"modified,notnull,default:current_timestamp" json:"modified"`
}

// Rating is a single user's 1-5 star rating of an ebook. Re-rating is
// delete-then-create, so there is no version/update column.
type Rating struct {
	bun.BaseModel `bun:"table:ebook_ratings,alias:rat"`

	ID      int64     `bun:"id,pk,autoincrement" json:"id"`
	EbookID int64     `bun:"ebook_id,notnull" json:"ebook_id"`
	UserID  int64     `bun:"user_id,notnull" json:"user_id"`
	Stars   int       `bun:"stars,notnull" json:"stars"`
	Created time.Time `bun:"created,notnull,default:current_timestamp" json:"created"`
}

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTrusted Role = "trusted"
)

// RoleList persists as a JSON array in a single TEXT column; SQLite has no
// native array type, unlike the Postgres-oriented bun examples.
type RoleList []Role

func (r RoleList) Value() (driver.Value, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (r *RoleList) Scan(src interface{}) error {
	if src == nil {
		*r = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("models: cannot scan %T into RoleList", src)
	}
	if len(raw) == 0 {
		*r = nil
		return nil
	}
	return json.Unmarshal(raw, r)
}

// User is a local account. OIDC-only accounts have an empty PasswordHash.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID           int64    `bun:"id,pk,autoincrement" json:"id"`
	Email        string   `bun:"email,notnull,unique" json:"email"`
	Name         string   `bun:"name,notnull" json:"name"`
	PasswordHash string   `bun:"password_hash" json:"-"`
	Roles        RoleList `bun:"roles,notnull,type:text" json:"roles"`

	Version  int64     `bun:"version,notnull,default:1" json:"version"`
	Created  time.Time `bun:"created,notnull,default:current_timestamp" json:"created"`
	Modified time.Time `bun:"modified,notnull,default:current_timestamp" json:"modified"`
}

// HasRole reports whether the user carries the given role.
func (u *User) HasRole(r Role) bool {
	for _, have := range u.Roles {
		if have == r {
			return true
		}
	}
	return false
}
