package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hitoshi/sharediary/internal/model"
)

func TestUnavailable_ReadsEmpty_WritesFail(t *testing.T) {
	ctx := context.Background()

	var users UserRepository = UnavailableUsers{}
	u, err := users.FindByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	require.Nil(t, u)
	_, err = users.Create(ctx, &model.User{})
	require.ErrorIs(t, err, model.ErrNotAvailable)
	require.ErrorIs(t, users.UpdateLinkage(ctx, 1, UserPatch{}), model.ErrNotAvailable)

	var groups GroupRepository = UnavailableGroups{}
	list, err := groups.ListByUserID(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, list)
	_, err = groups.CreateWithOwner(ctx, &model.Group{})
	require.ErrorIs(t, err, model.ErrNotAvailable)
	require.ErrorIs(t, groups.Update(ctx, 1, nil, nil, time.Now()), model.ErrNotAvailable)

	var diaries DiaryRepository = UnavailableDiaries{}
	entries, err := diaries.ListByGroupID(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, entries)
	_, err = diaries.Create(ctx, &model.DiaryEntry{})
	require.ErrorIs(t, err, model.ErrNotAvailable)
}
