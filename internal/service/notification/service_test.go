package notification_test

import (
	"context"
	"testing"
	"time"

	"arena-ace/internal/model"
	"arena-ace/internal/service/notification"
	"arena-ace/internal/testutil"
	appErr "arena-ace/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendValidatesPayload(t *testing.T) {
	db := testutil.NewDB(t)
	svc := notification.NewService(db, nil)

	_, err := svc.Send(context.Background(), "all", "  ", "body", "admin")
	assert.ErrorIs(t, err, appErr.ErrInvalidNotification)

	_, err = svc.Send(context.Background(), "missing-user", "Title", "body", "admin")
	assert.ErrorIs(t, err, appErr.ErrUserNotFound)
}

func TestListMergesDirectAndBroadcastNewestFirst(t *testing.T) {
	db := testutil.NewDB(t)
	svc := notification.NewService(db, nil)
	ctx := context.Background()
	user := testutil.SeedUser(t, db, "Asha", "0", model.RoleUser)
	other := testutil.SeedUser(t, db, "Ravi", "0", model.RoleUser)

	base := time.Now().Add(-time.Hour)
	require.NoError(t, db.Create(&model.Notification{UserID: user.ID, Title: "old", Message: "m", CreatedAt: base}).Error)
	require.NoError(t, db.Create(&model.Broadcast{Title: "mid", Message: "m", CreatedAt: base.Add(time.Minute)}).Error)
	require.NoError(t, db.Create(&model.Notification{UserID: user.ID, Title: "new", Message: "m", CreatedAt: base.Add(2 * time.Minute)}).Error)
	require.NoError(t, db.Create(&model.Notification{UserID: other.ID, Title: "foreign", Message: "m"}).Error)

	items, err := svc.List(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "new", items[0].Title)
	assert.Equal(t, "mid", items[1].Title)
	assert.True(t, items[1].IsBroadcast)
	assert.Equal(t, model.BroadcastTarget, items[1].UserID)
	assert.Equal(t, "old", items[2].Title)
}

func TestBroadcastReadStateIsPerUser(t *testing.T) {
	db := testutil.NewDB(t)
	svc := notification.NewService(db, nil)
	ctx := context.Background()
	asha := testutil.SeedUser(t, db, "Asha", "0", model.RoleUser)
	ravi := testutil.SeedUser(t, db, "Ravi", "0", model.RoleUser)

	item, err := svc.Send(ctx, model.BroadcastTarget, "Season starts", "Good luck", "admin")
	require.NoError(t, err)

	require.NoError(t, svc.MarkRead(ctx, item.ID, asha.ID))

	ashaItems, err := svc.List(ctx, asha.ID)
	require.NoError(t, err)
	require.Len(t, ashaItems, 1)
	assert.True(t, ashaItems[0].IsRead)

	raviItems, err := svc.List(ctx, ravi.ID)
	require.NoError(t, err)
	require.Len(t, raviItems, 1)
	assert.False(t, raviItems[0].IsRead)
}

func TestDeleteHidesBroadcastOnlyForCaller(t *testing.T) {
	db := testutil.NewDB(t)
	svc := notification.NewService(db, nil)
	ctx := context.Background()
	asha := testutil.SeedUser(t, db, "Asha", "0", model.RoleUser)
	ravi := testutil.SeedUser(t, db, "Ravi", "0", model.RoleUser)

	item, err := svc.Send(ctx, model.BroadcastTarget, "Maintenance", "Tonight", "admin")
	require.NoError(t, err)

	require.NoError(t, svc.MarkRead(ctx, item.ID, asha.ID))
	require.NoError(t, svc.Delete(ctx, item.ID, asha.ID))

	ashaItems, err := svc.List(ctx, asha.ID)
	require.NoError(t, err)
	assert.Empty(t, ashaItems)

	raviItems, err := svc.List(ctx, ravi.ID)
	require.NoError(t, err)
	assert.Len(t, raviItems, 1)

	assert.ErrorIs(t, svc.Delete(ctx, item.ID, asha.ID), appErr.ErrNotificationNotFound)
	assert.ErrorIs(t, svc.MarkRead(ctx, item.ID, asha.ID), appErr.ErrNotificationNotFound)

	var count int64
	require.NoError(t, db.Model(&model.Broadcast{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestDeleteForeignNotificationNotFound(t *testing.T) {
	db := testutil.NewDB(t)
	svc := notification.NewService(db, nil)
	ctx := context.Background()
	asha := testutil.SeedUser(t, db, "Asha", "0", model.RoleUser)
	ravi := testutil.SeedUser(t, db, "Ravi", "0", model.RoleUser)

	item, err := svc.Send(ctx, ravi.ID, "Prize", "You won", "admin")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, item.ID, asha.ID), appErr.ErrNotificationNotFound)
	assert.ErrorIs(t, svc.MarkRead(ctx, item.ID, asha.ID), appErr.ErrNotificationNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "nope", asha.ID), appErr.ErrNotificationNotFound)

	require.NoError(t, svc.Delete(ctx, item.ID, ravi.ID))
	items, err := svc.List(ctx, ravi.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestMarkAllReadAndDeleteAll(t *testing.T) {
	db := testutil.NewDB(t)
	svc := notification.NewService(db, nil)
	ctx := context.Background()
	user := testutil.SeedUser(t, db, "Asha", "0", model.RoleUser)

	_, err := svc.Send(ctx, user.ID, "One", "m", "admin")
	require.NoError(t, err)
	_, err = svc.Send(ctx, model.BroadcastTarget, "Two", "m", "admin")
	require.NoError(t, err)

	require.NoError(t, svc.MarkAllRead(ctx, user.ID))
	items, err := svc.List(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, item := range items {
		assert.True(t, item.IsRead, item.Title)
	}

	require.NoError(t, svc.DeleteAll(ctx, user.ID))
	items, err = svc.List(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = svc.Send(ctx, model.BroadcastTarget, "Three", "m", "admin")
	require.NoError(t, err)
	items, err = svc.List(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Three", items[0].Title)
	assert.False(t, items[0].IsRead)
}

func TestInsertSkipsDuplicateSourceKey(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.SeedUser(t, db, "Asha", "0", model.RoleUser)

	key := "evt-1:" + user.ID
	created, err := notification.Insert(db, &model.Notification{UserID: user.ID, Title: "a", Message: "b", SourceKey: &key})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = notification.Insert(db, &model.Notification{UserID: user.ID, Title: "a", Message: "b", SourceKey: &key})
	require.NoError(t, err)
	assert.False(t, created)
}
