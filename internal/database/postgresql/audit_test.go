package postgresql

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uploader/internal/testutil"
	"uploader/internal/upload"
)

var auditCols = []string{
	"session_id", "user_id", "file_name", "object_key", "bucket", "size_bytes", "status", "reason", "created_at",
}

func TestEnsureSchema(t *testing.T) {
	mockPool := testutil.NewMockDB(t)
	audit := NewAuditLog(mockPool, testutil.NewTestLogger())

	mockPool.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS upload_audit")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, audit.EnsureSchema(context.Background()))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestForSession_RecordsSettledUploads(t *testing.T) {
	mockPool := testutil.NewMockDB(t)
	audit := NewAuditLog(mockPool, testutil.NewTestLogger())
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	mockPool.ExpectExec(regexp.QuoteMeta("INSERT INTO upload_audit")).
		WithArgs("sess-1", "user-1", "a b.png", "Uganda/Olx/Kampala/a%20b.png", "uploads", int64(12), "error", "boom", at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	notifier := audit.ForSession("sess-1", "user-1")
	ctx := context.Background()
	notifier.Notify(ctx, upload.Notification{Kind: upload.KindLoading, Key: "Uganda/Olx/Kampala/a%20b.png"})
	notifier.Notify(ctx, upload.Notification{Kind: upload.KindError, Message: upload.MsgMissingRegion})
	notifier.Notify(ctx, upload.Notification{
		Kind:   upload.KindError,
		File:   "a b.png",
		Key:    "Uganda/Olx/Kampala/a%20b.png",
		Bucket: "uploads",
		Size:   12,
		Reason: "boom",
		At:     at,
	})

	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestForSession_SlowInsertTimesOut(t *testing.T) {
	mockPool := testutil.NewMockDB(t)
	audit := NewAuditLog(mockPool, testutil.NewTestLogger())
	audit.timeout = 50 * time.Millisecond

	mockPool.ExpectExec(regexp.QuoteMeta("INSERT INTO upload_audit")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1)).
		WillDelayFor(5 * time.Second)

	start := time.Now()
	audit.ForSession("sess-1", "user-1").Notify(context.Background(), upload.Notification{
		Kind: upload.KindSuccess,
		File: "a.png",
		Key:  "Uganda/Olx/Kampala/a.png",
		At:   time.Now(),
	})

	assert.Less(t, time.Since(start), time.Second)
}

func TestRecord_Error(t *testing.T) {
	mockPool := testutil.NewMockDB(t)
	audit := NewAuditLog(mockPool, testutil.NewTestLogger())

	mockPool.ExpectExec(regexp.QuoteMeta("INSERT INTO upload_audit")).
		WillReturnError(errors.New("db down"))

	err := audit.Record(context.Background(), Entry{SessionID: "s"})
	assert.ErrorContains(t, err, "db down")
}

func TestHistory(t *testing.T) {
	mockPool := testutil.NewMockDB(t)
	audit := NewAuditLog(mockPool, testutil.NewTestLogger())
	now := time.Now()

	mockPool.ExpectQuery(regexp.QuoteMeta("FROM upload_audit WHERE session_id = $1")).
		WithArgs("sess-1", 10).
		WillReturnRows(pgxmock.NewRows(auditCols).
			AddRow("sess-1", "", "b.txt", "Kenya/Zillow/b.txt", "uploads", int64(2), "success", "", now).
			AddRow("sess-1", "", "a.txt", "Kenya/Zillow/a.txt", "uploads", int64(1), "error", "boom", now.Add(-time.Second)))

	entries, err := audit.History(context.Background(), "sess-1", 10)

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Kenya/Zillow/b.txt", entries[0].Key)
	assert.Equal(t, "boom", entries[1].Reason)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
