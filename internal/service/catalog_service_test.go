package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnpath/internal/repository"
)

const seedYAML = `
paths:
  - title: Foundations
    description: Start here
    default: true
    courses:
      - title: Introduction
        lessons:
          - title: How this course will work
          - title: Rock paper scissors
            project: true
      - title: Git Basics
        lessons:
          - title: Commit often
  - title: Full Stack Ruby on Rails
    courses:
      - title: Ruby
        lessons:
          - title: Variables
`

func TestCatalog_SeedIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	catalog := NewCatalogService(store.Catalog, quietLogger())
	ctx := context.Background()

	res, err := catalog.Seed(ctx, strings.NewReader(seedYAML))
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Paths: 2, Courses: 3, Lessons: 4}, res)

	res, err = catalog.Seed(ctx, strings.NewReader(seedYAML))
	require.NoError(t, err)
	assert.Equal(t, SeedResult{}, res)

	def, err := catalog.DefaultPath(ctx)
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, "Foundations", def.Title)

	courses, err := catalog.ListCourses(ctx, def.ID)
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.Equal(t, "Introduction", courses[0].Title)

	lessons, err := catalog.ListLessons(ctx, courses[0].ID)
	require.NoError(t, err)
	require.Len(t, lessons, 2)
	assert.False(t, lessons[0].IsProject)
	assert.True(t, lessons[1].IsProject)
}

func TestCatalog_SeedFileAddsMissing(t *testing.T) {
	store := newTestStore(t)
	catalog := NewCatalogService(store.Catalog, quietLogger())
	ctx := context.Background()

	_, err := catalog.Seed(ctx, strings.NewReader(seedYAML))
	require.NoError(t, err)

	extra := seedYAML + `
  - title: Full Stack JavaScript
    courses:
      - title: NodeJS
        lessons:
          - title: Express
`
	file := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(file, []byte(extra), 0o644))

	res, err := catalog.SeedFile(ctx, file)
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Paths: 1, Courses: 1, Lessons: 1}, res)

	paths, err := catalog.ListPaths(ctx)
	require.NoError(t, err)
	assert.Len(t, paths, 3)
}

func TestCatalog_Lookups(t *testing.T) {
	store := newTestStore(t)
	catalog := NewCatalogService(store.Catalog, quietLogger())
	ctx := context.Background()

	def, err := catalog.DefaultPath(ctx)
	require.NoError(t, err)
	assert.Nil(t, def)

	_, err = catalog.ListCourses(ctx, 42)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = catalog.ListLessons(ctx, 42)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = catalog.Seed(ctx, strings.NewReader("paths:\n  - description: no title\n"))
	assert.Error(t, err)
}
