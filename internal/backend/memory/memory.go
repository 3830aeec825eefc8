package memory

import (
	"sort"
	"time"

	"github.com/ChronosX88/newsd/internal/backend"
	"github.com/ChronosX88/newsd/internal/models"
)

type newsgroup struct {
	models.Newsgroup
	articles map[int32]models.Article
}

// MemoryBackend keeps everything in maps. Ids come from two counters that
// only move forward, so a deleted id is never reissued.
type MemoryBackend struct {
	groups        map[int32]*newsgroup
	names         map[string]int32
	nextGroupID   int32
	nextArticleID int32
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		groups:        map[int32]*newsgroup{},
		names:         map[string]int32{},
		nextGroupID:   1,
		nextArticleID: 1,
	}
}

func (mb *MemoryBackend) CreateNewsgroup(name string) (models.Newsgroup, error) {
	if name == "" {
		return models.Newsgroup{}, backend.ErrInvalidName
	}
	if err := backend.CheckText(name); err != nil {
		return models.Newsgroup{}, err
	}
	if _, ok := mb.names[name]; ok {
		return models.Newsgroup{}, backend.ErrNewsgroupExists
	}
	g := &newsgroup{
		Newsgroup: models.Newsgroup{ID: mb.nextGroupID, Name: name, CreatedAt: time.Now().UTC()},
		articles:  map[int32]models.Article{},
	}
	mb.nextGroupID++
	mb.groups[g.ID] = g
	mb.names[name] = g.ID
	return g.Newsgroup, nil
}

func (mb *MemoryBackend) DeleteNewsgroup(id int32) error {
	g, ok := mb.groups[id]
	if !ok {
		return backend.ErrNoSuchNewsgroup
	}
	delete(mb.names, g.Name)
	delete(mb.groups, id)
	return nil
}

func (mb *MemoryBackend) ListNewsgroups() ([]models.Newsgroup, error) {
	groups := make([]models.Newsgroup, 0, len(mb.groups))
	for _, g := range mb.groups {
		groups = append(groups, g.Newsgroup)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups, nil
}

func (mb *MemoryBackend) CreateArticle(groupID int32, title, author, text string) (models.Article, error) {
	g, ok := mb.groups[groupID]
	if !ok {
		return models.Article{}, backend.ErrNoSuchNewsgroup
	}
	if err := backend.CheckText(title, author, text); err != nil {
		return models.Article{}, err
	}
	a := models.Article{
		ID:        mb.nextArticleID,
		GroupID:   groupID,
		Title:     title,
		Author:    author,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	mb.nextArticleID++
	g.articles[a.ID] = a
	return a, nil
}

func (mb *MemoryBackend) DeleteArticle(groupID, articleID int32) error {
	g, ok := mb.groups[groupID]
	if !ok {
		return backend.ErrNoSuchNewsgroup
	}
	if _, ok := g.articles[articleID]; !ok {
		return backend.ErrNoSuchArticle
	}
	delete(g.articles, articleID)
	return nil
}

func (mb *MemoryBackend) GetArticle(groupID, articleID int32) (models.Article, error) {
	g, ok := mb.groups[groupID]
	if !ok {
		return models.Article{}, backend.ErrNoSuchNewsgroup
	}
	a, ok := g.articles[articleID]
	if !ok {
		return models.Article{}, backend.ErrNoSuchArticle
	}
	return a, nil
}

func (mb *MemoryBackend) ListArticles(groupID int32) ([]models.Article, error) {
	g, ok := mb.groups[groupID]
	if !ok {
		return nil, backend.ErrNoSuchNewsgroup
	}
	articles := make([]models.Article, 0, len(g.articles))
	for _, a := range g.articles {
		articles = append(articles, a)
	}
	sort.Slice(articles, func(i, j int) bool { return articles[i].ID < articles[j].ID })
	return articles, nil
}

func (mb *MemoryBackend) Close() error {
	return nil
}
