// Package backendtest holds the contract every backend.StorageBackend must
// satisfy, written once and run against each implementation.
package backendtest

import (
	"testing"

	"github.com/ChronosX88/newsd/internal/backend"
	"github.com/ChronosX88/newsd/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty backend. Cleanup is registered on t.
type Factory func(t *testing.T) backend.StorageBackend

func RunStorageBackendTests(t *testing.T, name string, factory Factory) {
	t.Run(name, func(t *testing.T) {
		t.Run("CreateNewsgroup", func(t *testing.T) {
			testCreateNewsgroup(t, factory(t))
		})
		t.Run("ListNewsgroups", func(t *testing.T) {
			testListNewsgroups(t, factory(t))
		})
		t.Run("DeleteNewsgroupCascades", func(t *testing.T) {
			testDeleteNewsgroupCascades(t, factory(t))
		})
		t.Run("Articles", func(t *testing.T) {
			testArticles(t, factory(t))
		})
		t.Run("MissingEntities", func(t *testing.T) {
			testMissingEntities(t, factory(t))
		})
		t.Run("IdsNotReused", func(t *testing.T) {
			testIdsNotReused(t, factory(t))
		})
		t.Run("UnusualText", func(t *testing.T) {
			testUnusualText(t, factory(t))
		})
		t.Run("InvalidUTF8Rejected", func(t *testing.T) {
			testInvalidUTF8Rejected(t, factory(t))
		})
	})
}

func mustCreateGroup(t *testing.T, b backend.StorageBackend, name string) models.Newsgroup {
	t.Helper()
	g, err := b.CreateNewsgroup(name)
	require.NoError(t, err)
	require.Equal(t, name, g.Name)
	return g
}

func mustCreateArticle(t *testing.T, b backend.StorageBackend, groupID int32, title, author, text string) models.Article {
	t.Helper()
	a, err := b.CreateArticle(groupID, title, author, text)
	require.NoError(t, err)
	return a
}

func testCreateNewsgroup(t *testing.T, b backend.StorageBackend) {
	g := mustCreateGroup(t, b, "Tech")

	_, err := b.CreateNewsgroup("Tech")
	assert.ErrorIs(t, err, backend.ErrNewsgroupExists)

	_, err = b.CreateNewsgroup("")
	assert.ErrorIs(t, err, backend.ErrInvalidName)

	other := mustCreateGroup(t, b, "tech")
	assert.NotEqual(t, g.ID, other.ID)

	groups, err := b.ListNewsgroups()
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "Tech", groups[0].Name)
	assert.Equal(t, g.ID, groups[0].ID)
}

func testListNewsgroups(t *testing.T, b backend.StorageBackend) {
	groups, err := b.ListNewsgroups()
	require.NoError(t, err)
	assert.Empty(t, groups)

	names := []string{"comp.lang.go", "alt.test", "sci.math"}
	for _, n := range names {
		mustCreateGroup(t, b, n)
	}

	first, err := b.ListNewsgroups()
	require.NoError(t, err)
	require.Len(t, first, len(names))
	for i, g := range first {
		assert.Equal(t, names[i], g.Name)
		if i > 0 {
			assert.Less(t, first[i-1].ID, g.ID)
		}
	}

	for i := 0; i < 3; i++ {
		again, err := b.ListNewsgroups()
		require.NoError(t, err)
		require.Len(t, again, len(first))
		for j := range again {
			assert.Equal(t, first[j].ID, again[j].ID)
			assert.Equal(t, first[j].Name, again[j].Name)
		}
	}
}

func testDeleteNewsgroupCascades(t *testing.T, b backend.StorageBackend) {
	g := mustCreateGroup(t, b, "Tech")
	keep := mustCreateGroup(t, b, "Food")
	a := mustCreateArticle(t, b, g.ID, "T", "A", "Body")
	kept := mustCreateArticle(t, b, keep.ID, "Pasta", "Chef", "Boil water.")

	require.NoError(t, b.DeleteNewsgroup(g.ID))

	_, err := b.ListArticles(g.ID)
	assert.ErrorIs(t, err, backend.ErrNoSuchNewsgroup)
	_, err = b.GetArticle(g.ID, a.ID)
	assert.ErrorIs(t, err, backend.ErrNoSuchNewsgroup)
	assert.ErrorIs(t, b.DeleteNewsgroup(g.ID), backend.ErrNoSuchNewsgroup)

	groups, err := b.ListNewsgroups()
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, keep.ID, groups[0].ID)

	got, err := b.GetArticle(keep.ID, kept.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pasta", got.Title)

	// the name is free again, under a new id
	again := mustCreateGroup(t, b, "Tech")
	assert.NotEqual(t, g.ID, again.ID)
	articles, err := b.ListArticles(again.ID)
	require.NoError(t, err)
	assert.Empty(t, articles)
}

func testArticles(t *testing.T, b backend.StorageBackend) {
	g := mustCreateGroup(t, b, "Tech")

	articles, err := b.ListArticles(g.ID)
	require.NoError(t, err)
	assert.Empty(t, articles)

	a := mustCreateArticle(t, b, g.ID, "T", "A", "Body")
	assert.Equal(t, g.ID, a.GroupID)
	second := mustCreateArticle(t, b, g.ID, "T2", "A2", "Body2")
	assert.NotEqual(t, a.ID, second.ID)

	got, err := b.GetArticle(g.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, "T", got.Title)
	assert.Equal(t, "A", got.Author)
	assert.Equal(t, "Body", got.Text)

	articles, err = b.ListArticles(g.ID)
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, a.ID, articles[0].ID)
	assert.Equal(t, "T", articles[0].Title)
	assert.Equal(t, second.ID, articles[1].ID)

	require.NoError(t, b.DeleteArticle(g.ID, a.ID))
	_, err = b.GetArticle(g.ID, a.ID)
	assert.ErrorIs(t, err, backend.ErrNoSuchArticle)
	assert.ErrorIs(t, b.DeleteArticle(g.ID, a.ID), backend.ErrNoSuchArticle)

	articles, err = b.ListArticles(g.ID)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, second.ID, articles[0].ID)
}

func testMissingEntities(t *testing.T, b backend.StorageBackend) {
	const missing int32 = 4711

	assert.ErrorIs(t, b.DeleteNewsgroup(missing), backend.ErrNoSuchNewsgroup)
	assert.ErrorIs(t, b.DeleteNewsgroup(-1), backend.ErrNoSuchNewsgroup)

	_, err := b.CreateArticle(missing, "T", "A", "Body")
	assert.ErrorIs(t, err, backend.ErrNoSuchNewsgroup)
	_, err = b.ListArticles(missing)
	assert.ErrorIs(t, err, backend.ErrNoSuchNewsgroup)
	_, err = b.GetArticle(missing, 1)
	assert.ErrorIs(t, err, backend.ErrNoSuchNewsgroup)
	assert.ErrorIs(t, b.DeleteArticle(missing, 1), backend.ErrNoSuchNewsgroup)

	g := mustCreateGroup(t, b, "Tech")
	_, err = b.GetArticle(g.ID, missing)
	assert.ErrorIs(t, err, backend.ErrNoSuchArticle)
	assert.ErrorIs(t, b.DeleteArticle(g.ID, missing), backend.ErrNoSuchArticle)

	// an article is only reachable through its own group
	other := mustCreateGroup(t, b, "Food")
	a := mustCreateArticle(t, b, other.ID, "T", "A", "Body")
	_, err = b.GetArticle(g.ID, a.ID)
	assert.ErrorIs(t, err, backend.ErrNoSuchArticle)
	assert.ErrorIs(t, b.DeleteArticle(g.ID, a.ID), backend.ErrNoSuchArticle)
}

func testIdsNotReused(t *testing.T, b backend.StorageBackend) {
	seenGroups := map[int32]bool{}
	seenArticles := map[int32]bool{}
	for i := 0; i < 5; i++ {
		g := mustCreateGroup(t, b, "group")
		assert.False(t, seenGroups[g.ID], "group id %d reissued", g.ID)
		seenGroups[g.ID] = true

		a := mustCreateArticle(t, b, g.ID, "T", "A", "Body")
		assert.False(t, seenArticles[a.ID], "article id %d reissued", a.ID)
		seenArticles[a.ID] = true
		require.NoError(t, b.DeleteArticle(g.ID, a.ID))

		a = mustCreateArticle(t, b, g.ID, "T", "A", "Body")
		assert.False(t, seenArticles[a.ID], "article id %d reissued", a.ID)
		seenArticles[a.ID] = true

		require.NoError(t, b.DeleteNewsgroup(g.ID))
	}
}

func testUnusualText(t *testing.T, b backend.StorageBackend) {
	g := mustCreateGroup(t, b, "names with spaces, quotes \" and $ signs")
	text := "line one\nline two\n\ttabbed\n\nTitle: not a header\n"
	a := mustCreateArticle(t, b, g.ID, "", "", text)

	got, err := b.GetArticle(g.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "", got.Title)
	assert.Equal(t, "", got.Author)
	assert.Equal(t, text, got.Text)

	groups, err := b.ListNewsgroups()
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, g.Name, groups[0].Name)
}

func testInvalidUTF8Rejected(t *testing.T, b backend.StorageBackend) {
	_, err := b.CreateNewsgroup("bad\xff")
	assert.ErrorIs(t, err, backend.ErrInvalidText)

	g := mustCreateGroup(t, b, "Tech")
	for _, fields := range [][3]string{
		{"bad\xff", "author", "text"},
		{"title", "\xc3\x28", "text"},
		{"title", "author", "body\xed\xa0\x80"},
	} {
		_, err := b.CreateArticle(g.ID, fields[0], fields[1], fields[2])
		assert.ErrorIs(t, err, backend.ErrInvalidText, "%q", fields)
	}

	articles, err := b.ListArticles(g.ID)
	require.NoError(t, err)
	assert.Empty(t, articles)

	groups, err := b.ListNewsgroups()
	require.NoError(t, err)
	require.Len(t, groups, 1)

	a := mustCreateArticle(t, b, g.ID, "räksmörgås", "ünïcödé", "日本語")
	got, err := b.GetArticle(g.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "日本語", got.Text)
}
