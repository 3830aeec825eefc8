package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/ChronosX88/newsd/internal/backend"
	"github.com/ChronosX88/newsd/internal/config"
	"github.com/ChronosX88/newsd/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrations embed.FS

type SQLiteBackend struct {
	db *sqlx.DB
}

func NewSQLiteBackend(cfg config.SQLiteBackendConfig, log *zap.SugaredLogger) (*SQLiteBackend, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite backend: no path configured")
	}

	db, err := sqlx.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=1", cfg.Path))
	if err != nil {
		return nil, err
	}
	// all access comes from the server loop; one connection keeps the
	// foreign key pragma and transactions trivially consistent
	db.SetMaxOpenConns(1)

	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{log})

	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, err
	}

	if err := goose.Up(db.DB, "migrations"); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteBackend{
		db: db,
	}, nil
}

func (sb *SQLiteBackend) CreateNewsgroup(name string) (models.Newsgroup, error) {
	if name == "" {
		return models.Newsgroup{}, backend.ErrInvalidName
	}
	if err := backend.CheckText(name); err != nil {
		return models.Newsgroup{}, err
	}
	g := models.Newsgroup{Name: name, CreatedAt: time.Now().UTC()}
	res, err := sb.db.Exec("INSERT INTO newsgroups (name, created_at) VALUES (?, ?)", g.Name, g.CreatedAt)
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
			return models.Newsgroup{}, backend.ErrNewsgroupExists
		}
		return models.Newsgroup{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Newsgroup{}, err
	}
	g.ID = int32(id)
	return g, nil
}

func (sb *SQLiteBackend) DeleteNewsgroup(id int32) error {
	res, err := sb.db.Exec("DELETE FROM newsgroups WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return backend.ErrNoSuchNewsgroup
	}
	return nil
}

func (sb *SQLiteBackend) ListNewsgroups() ([]models.Newsgroup, error) {
	groups := []models.Newsgroup{}
	return groups, sb.db.Select(&groups, "SELECT id, name, created_at FROM newsgroups ORDER BY id")
}

func (sb *SQLiteBackend) CreateArticle(groupID int32, title, author, text string) (models.Article, error) {
	if err := sb.checkNewsgroup(groupID); err != nil {
		return models.Article{}, err
	}
	if err := backend.CheckText(title, author, text); err != nil {
		return models.Article{}, err
	}
	a := models.Article{
		GroupID:   groupID,
		Title:     title,
		Author:    author,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	res, err := sb.db.NamedExec("INSERT INTO articles (group_id, title, author, text, created_at) VALUES (:group_id, :title, :author, :text, :created_at)", a)
	if err != nil {
		return models.Article{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Article{}, err
	}
	a.ID = int32(id)
	return a, nil
}

func (sb *SQLiteBackend) DeleteArticle(groupID, articleID int32) error {
	if err := sb.checkNewsgroup(groupID); err != nil {
		return err
	}
	res, err := sb.db.Exec("DELETE FROM articles WHERE id = ? AND group_id = ?", articleID, groupID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return backend.ErrNoSuchArticle
	}
	return nil
}

func (sb *SQLiteBackend) GetArticle(groupID, articleID int32) (models.Article, error) {
	if err := sb.checkNewsgroup(groupID); err != nil {
		return models.Article{}, err
	}
	var a models.Article
	err := sb.db.Get(&a, "SELECT id, group_id, title, author, text, created_at FROM articles WHERE id = ? AND group_id = ?", articleID, groupID)
	if err == sql.ErrNoRows {
		return models.Article{}, backend.ErrNoSuchArticle
	}
	return a, err
}

func (sb *SQLiteBackend) ListArticles(groupID int32) ([]models.Article, error) {
	if err := sb.checkNewsgroup(groupID); err != nil {
		return nil, err
	}
	articles := []models.Article{}
	return articles, sb.db.Select(&articles, "SELECT id, group_id, title, author, text, created_at FROM articles WHERE group_id = ? ORDER BY id", groupID)
}

func (sb *SQLiteBackend) Close() error {
	return sb.db.Close()
}

func (sb *SQLiteBackend) checkNewsgroup(id int32) error {
	var count int
	if err := sb.db.Get(&count, "SELECT COUNT(*) FROM newsgroups WHERE id = ?", id); err != nil {
		return err
	}
	if count == 0 {
		return backend.ErrNoSuchNewsgroup
	}
	return nil
}

// gooseLogger routes migration output into the server log.
type gooseLogger struct {
	log *zap.SugaredLogger
}

func (l gooseLogger) Fatal(v ...interface{})                 { l.log.Fatal(v...) }
func (l gooseLogger) Fatalf(format string, v ...interface{}) { l.log.Fatalf(format, v...) }
func (l gooseLogger) Print(v ...interface{})                 { l.log.Info(v...) }
func (l gooseLogger) Println(v ...interface{})               { l.log.Info(v...) }
func (l gooseLogger) Printf(format string, v ...interface{}) { l.log.Infof(format, v...) }
