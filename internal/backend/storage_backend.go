package backend

import (
	"errors"
	"unicode/utf8"

	"github.com/ChronosX88/newsd/internal/models"
)

const (
	SupportedBackendList = "memory, disk, sqlite"
)

var (
	ErrNewsgroupExists = errors.New("newsgroup already exists")
	ErrNoSuchNewsgroup = errors.New("no such newsgroup")
	ErrNoSuchArticle   = errors.New("no such article")
	ErrInvalidName     = errors.New("newsgroup name must not be empty")
	ErrInvalidText     = errors.New("text must be valid UTF-8")
)

// CheckText returns ErrInvalidText unless every field is valid UTF-8.
func CheckText(fields ...string) error {
	for _, f := range fields {
		if !utf8.ValidString(f) {
			return ErrInvalidText
		}
	}
	return nil
}

// StorageBackend is the newsgroup/article store behind the dispatcher.
//
// The sentinel errors above are ordinary outcomes and callers are expected to
// test for them with errors.Is. Any other error means the store itself failed.
// Listings are ordered by ascending id. Ids are never handed out twice while
// the store exists. Implementations are not safe for concurrent use.
type StorageBackend interface {
	CreateNewsgroup(name string) (models.Newsgroup, error)
	DeleteNewsgroup(id int32) error
	ListNewsgroups() ([]models.Newsgroup, error)
	CreateArticle(groupID int32, title, author, text string) (models.Article, error)
	DeleteArticle(groupID, articleID int32) error
	GetArticle(groupID, articleID int32) (models.Article, error)
	ListArticles(groupID int32) ([]models.Article, error)
	Close() error
}
