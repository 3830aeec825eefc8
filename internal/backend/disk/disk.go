package disk

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ChronosX88/newsd/internal/backend"
	"github.com/ChronosX88/newsd/internal/config"
	"github.com/ChronosX88/newsd/internal/models"
)

const (
	storeFile     = "store.toml"
	newsgroupFile = "newsgroup.toml"
	recordExt     = ".toml"
)

type counters struct {
	NextNewsgroupID int32 `toml:"next_newsgroup_id"`
	NextArticleID   int32 `toml:"next_article_id"`
}

// DiskBackend stores each newsgroup as a directory named by its id and each
// article as a TOML record inside it. The id counters live in store.toml, so
// ids stay unique across restarts as well.
type DiskBackend struct {
	root     string
	counters counters
	names    map[string]int32
	groups   map[int32]string
}

func NewDiskBackend(cfg config.DiskBackendConfig) (*DiskBackend, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("disk backend: no path configured")
	}
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, err
	}
	db := &DiskBackend{
		root:     cfg.Path,
		counters: counters{NextNewsgroupID: 1, NextArticleID: 1},
		names:    map[string]int32{},
		groups:   map[int32]string{},
	}
	if err := db.load(); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *DiskBackend) load() error {
	if _, err := toml.DecodeFile(filepath.Join(db.root, storeFile), &db.counters); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read %s: %w", storeFile, err)
	}

	groups, err := db.ListNewsgroups()
	if err != nil {
		return err
	}
	for _, g := range groups {
		db.names[g.Name] = g.ID
		db.groups[g.ID] = g.Name
		if g.ID >= db.counters.NextNewsgroupID {
			db.counters.NextNewsgroupID = g.ID + 1
		}
		articles, err := db.ListArticles(g.ID)
		if err != nil {
			return err
		}
		for _, a := range articles {
			if a.ID >= db.counters.NextArticleID {
				db.counters.NextArticleID = a.ID + 1
			}
		}
	}
	return nil
}

func (db *DiskBackend) groupPath(id int32) string {
	return filepath.Join(db.root, strconv.FormatInt(int64(id), 10))
}

func (db *DiskBackend) articlePath(groupID, articleID int32) string {
	return filepath.Join(db.groupPath(groupID), strconv.FormatInt(int64(articleID), 10)+recordExt)
}

func (db *DiskBackend) groupExists(id int32) bool {
	_, ok := db.groups[id]
	return ok
}

func (db *DiskBackend) CreateNewsgroup(name string) (models.Newsgroup, error) {
	if name == "" {
		return models.Newsgroup{}, backend.ErrInvalidName
	}
	if err := backend.CheckText(name); err != nil {
		return models.Newsgroup{}, err
	}
	if _, ok := db.names[name]; ok {
		return models.Newsgroup{}, backend.ErrNewsgroupExists
	}

	g := models.Newsgroup{ID: db.counters.NextNewsgroupID, Name: name, CreatedAt: time.Now().UTC()}
	db.counters.NextNewsgroupID++
	if err := db.saveCounters(); err != nil {
		return models.Newsgroup{}, err
	}

	if err := os.Mkdir(db.groupPath(g.ID), 0o755); err != nil {
		return models.Newsgroup{}, err
	}
	if err := writeRecord(filepath.Join(db.groupPath(g.ID), newsgroupFile), g); err != nil {
		os.RemoveAll(db.groupPath(g.ID))
		return models.Newsgroup{}, err
	}
	db.names[name] = g.ID
	db.groups[g.ID] = name
	return g, nil
}

func (db *DiskBackend) DeleteNewsgroup(id int32) error {
	name, ok := db.groups[id]
	if !ok {
		return backend.ErrNoSuchNewsgroup
	}
	if err := os.RemoveAll(db.groupPath(id)); err != nil {
		return err
	}
	delete(db.names, name)
	delete(db.groups, id)
	return nil
}

func (db *DiskBackend) ListNewsgroups() ([]models.Newsgroup, error) {
	entries, err := os.ReadDir(db.root)
	if err != nil {
		return nil, err
	}
	var ids []int32
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := strconv.ParseInt(e.Name(), 10, 32)
		if err != nil {
			continue
		}
		ids = append(ids, int32(id))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	groups := make([]models.Newsgroup, 0, len(ids))
	for _, id := range ids {
		g, err := db.readNewsgroup(id)
		if errors.Is(err, backend.ErrNoSuchNewsgroup) {
			continue
		}
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, nil
}

func (db *DiskBackend) CreateArticle(groupID int32, title, author, text string) (models.Article, error) {
	if !db.groupExists(groupID) {
		return models.Article{}, backend.ErrNoSuchNewsgroup
	}
	// toml refuses to decode invalid UTF-8, so such a record could never be read back
	if err := backend.CheckText(title, author, text); err != nil {
		return models.Article{}, err
	}

	a := models.Article{
		ID:        db.counters.NextArticleID,
		GroupID:   groupID,
		Title:     title,
		Author:    author,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	db.counters.NextArticleID++
	if err := db.saveCounters(); err != nil {
		return models.Article{}, err
	}
	if err := writeRecord(db.articlePath(groupID, a.ID), a); err != nil {
		return models.Article{}, err
	}
	return a, nil
}

func (db *DiskBackend) DeleteArticle(groupID, articleID int32) error {
	if !db.groupExists(groupID) {
		return backend.ErrNoSuchNewsgroup
	}
	err := os.Remove(db.articlePath(groupID, articleID))
	if errors.Is(err, fs.ErrNotExist) {
		return backend.ErrNoSuchArticle
	}
	return err
}

func (db *DiskBackend) GetArticle(groupID, articleID int32) (models.Article, error) {
	if !db.groupExists(groupID) {
		return models.Article{}, backend.ErrNoSuchNewsgroup
	}
	var a models.Article
	_, err := toml.DecodeFile(db.articlePath(groupID, articleID), &a)
	if errors.Is(err, fs.ErrNotExist) {
		return models.Article{}, backend.ErrNoSuchArticle
	}
	if err != nil {
		return models.Article{}, fmt.Errorf("read article %d/%d: %w", groupID, articleID, err)
	}
	return a, nil
}

func (db *DiskBackend) ListArticles(groupID int32) ([]models.Article, error) {
	if !db.groupExists(groupID) {
		return nil, backend.ErrNoSuchNewsgroup
	}
	entries, err := os.ReadDir(db.groupPath(groupID))
	if err != nil {
		return nil, err
	}

	var ids []int32
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == newsgroupFile || !strings.HasSuffix(name, recordExt) {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSuffix(name, recordExt), 10, 32)
		if err != nil {
			continue
		}
		ids = append(ids, int32(id))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	articles := make([]models.Article, 0, len(ids))
	for _, id := range ids {
		var a models.Article
		if _, err := toml.DecodeFile(db.articlePath(groupID, id), &a); err != nil {
			return nil, fmt.Errorf("read article %d/%d: %w", groupID, id, err)
		}
		articles = append(articles, a)
	}
	return articles, nil
}

func (db *DiskBackend) Close() error {
	return db.saveCounters()
}

func (db *DiskBackend) readNewsgroup(id int32) (models.Newsgroup, error) {
	var g models.Newsgroup
	_, err := toml.DecodeFile(filepath.Join(db.groupPath(id), newsgroupFile), &g)
	if errors.Is(err, fs.ErrNotExist) {
		return models.Newsgroup{}, backend.ErrNoSuchNewsgroup
	}
	if err != nil {
		return models.Newsgroup{}, fmt.Errorf("read newsgroup %d: %w", id, err)
	}
	return g, nil
}

func (db *DiskBackend) saveCounters() error {
	return writeRecord(filepath.Join(db.root, storeFile), db.counters)
}

// writeRecord replaces path atomically with the TOML encoding of v.
func writeRecord(path string, v interface{}) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if err := toml.NewEncoder(f).Encode(v); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}
