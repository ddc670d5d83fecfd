package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tutorlane/tutorbill/internal/class/domain"
	"gorm.io/gorm"
)

func newTestRepository(t *testing.T) (domain.Repository, *gorm.DB, *snowflake.Node) {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&domain.Class{}, &domain.ClassSession{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return Provide(gdb), gdb, node
}

func TestHasUpcomingSession(t *testing.T) {
	repo, gdb, node := newTestRepository(t)
	ctx := context.Background()

	classID := node.Generate()
	sessionStart := time.Date(2025, time.January, 18, 16, 0, 0, 0, time.UTC)
	require.NoError(t, gdb.Create(&domain.ClassSession{
		ID:       node.Generate(),
		ClassID:  classID,
		StartsAt: sessionStart,
		EndsAt:   sessionStart.Add(time.Hour),
	}).Error)

	monthStart := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	has, err := repo.HasUpcomingSession(ctx, classID, monthStart)
	require.NoError(t, err)
	assert.True(t, has)

	// A session starting exactly at the cutoff counts.
	has, err = repo.HasUpcomingSession(ctx, classID, sessionStart)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = repo.HasUpcomingSession(ctx, classID, sessionStart.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, has)

	has, err = repo.HasUpcomingSession(ctx, node.Generate(), monthStart)
	require.NoError(t, err)
	assert.False(t, has)
}
