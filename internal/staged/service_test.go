package staged

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/materials-ledger/pkg/config"
	"github.com/angelmondragon/materials-ledger/pkg/db"
	"github.com/angelmondragon/materials-ledger/pkg/db/dbtest"
	"github.com/angelmondragon/materials-ledger/pkg/db/models"
	"github.com/angelmondragon/materials-ledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/materials-ledger/pkg/errors"
	"github.com/angelmondragon/materials-ledger/pkg/logger"
	"github.com/angelmondragon/materials-ledger/pkg/outbox"
)

func newTestService(t *testing.T) (Service, *db.Client, *outbox.Repository) {
	t.Helper()
	client := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "staged-test", Output: io.Discard})
	outboxRepo := outbox.NewRepository(client.DB())
	svc, err := NewService(ServiceParams{
		DB:     client,
		Repo:   NewRepository(client.DB()),
		Outbox: outbox.NewService(outboxRepo, logg),
		Config: config.ImportConfig{StagedDelimiter: ","},
		Logger: logg,
	})
	require.NoError(t, err)
	return svc, client, outboxRepo
}

func preview(t *testing.T, svc Service, body string) *models.ImportSession {
	t.Helper()
	session, err := svc.Preview(context.Background(), PreviewInput{
		Filename: "katalog.csv",
		Reader:   strings.NewReader(body),
		ActorID:  "user-1",
	})
	require.NoError(t, err)
	return session
}

func seedCatalog(t *testing.T, client *db.Client, number, name string) models.CatalogItem {
	t.Helper()
	item := models.CatalogItem{CatalogNumber: number, Name: name, Unit: "szt", Active: true}
	require.NoError(t, client.DB().Create(&item).Error)
	var stored models.CatalogItem
	require.NoError(t, client.DB().Where("id = ?", item.ID).First(&stored).Error)
	return stored
}

func catalogCount(t *testing.T, client *db.Client) int64 {
	t.Helper()
	var n int64
	require.NoError(t, client.DB().Model(&models.CatalogItem{}).Count(&n).Error)
	return n
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestPreviewReportsMissingName(t *testing.T) {
	svc, client, _ := newTestService(t)

	session := preview(t, svc, "catalog_number,name,unit\n"+
		"KAT-1,Kabel,szt\n"+
		"KAT-2,,m\n"+
		"KAT-3,Wtyk,szt\n")

	assert.Equal(t, enums.ImportSessionPreview, session.Status)
	assert.NotEqual(t, uuid.Nil, session.UUID)
	assert.Equal(t, 3, session.TotalRows)
	assert.Equal(t, 1, session.ErrorItems)
	assert.Equal(t, 2, session.NewItems)
	require.Len(t, session.Classification.Val.Errors, 1)
	assert.Equal(t, 2, session.Classification.Val.Errors[0].Row)
	assert.Equal(t, "name", session.Classification.Val.Errors[0].Field)

	rows := session.Classification.Val.Rows
	require.Len(t, rows, 3)
	assert.Equal(t, enums.RowError, rows[1].Bucket)
	assert.Equal(t, 2, rows[1].Row)
	assert.EqualValues(t, 0, catalogCount(t, client), "preview never writes the catalog")
}

func TestPreviewRejectsBrokenUpload(t *testing.T) {
	svc, client, _ := newTestService(t)

	_, err := svc.Preview(context.Background(), PreviewInput{
		Filename: "katalog.csv",
		Reader: io.MultiReader(
			strings.NewReader("catalog_number,name,unit\nKAT-1,Kabel,szt\n"),
			iotest.ErrReader(errors.New("unexpected EOF in upload")),
		),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	var sessions int64
	require.NoError(t, client.DB().Model(&models.ImportSession{}).Count(&sessions).Error)
	assert.EqualValues(t, 0, sessions)
}

func TestPreviewClassifiesAgainstCatalog(t *testing.T) {
	svc, client, _ := newTestService(t)
	seedCatalog(t, client, "KAT-1", "Kabel")

	session := preview(t, svc, "Catalog_Number,Name,Unit,Default_Quantity,unit_price\n"+
		"kat-1,Kabel,m,1,2\n"+
		"KAT-2,Wtyk,szt,5,\"3,40\"\n"+
		"kat-2,Wtyk duplikat,szt,,\n"+
		"KAT-4,Rura,m,abc,\n")

	rows := session.Classification.Val.Rows
	require.Len(t, rows, 4)
	assert.Equal(t, enums.RowExisting, rows[0].Bucket)
	assert.Equal(t, enums.RowNew, rows[1].Bucket)
	assert.True(t, rows[1].UnitPrice.Decimal.Equal(decimal.RequireFromString("3.40")))
	assert.Equal(t, enums.RowExisting, rows[2].Bucket, "repeat of a new key")
	assert.Equal(t, enums.RowError, rows[3].Bucket)
	assert.Equal(t, 1, session.NewItems)
	assert.Equal(t, 2, session.ExistingItems)
	assert.Equal(t, 1, session.ErrorItems)
}

func TestPreviewRequiresHeaders(t *testing.T) {
	svc, client, _ := newTestService(t)

	_, err := svc.Preview(context.Background(), PreviewInput{
		Filename: "katalog.csv",
		Reader:   strings.NewReader("catalog_number,name\nKAT-1,Kabel\n"),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStructural))

	_, err = svc.Preview(context.Background(), PreviewInput{Filename: "katalog.csv", Reader: strings.NewReader("")})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStructural))

	var sessions int64
	require.NoError(t, client.DB().Model(&models.ImportSession{}).Count(&sessions).Error)
	assert.EqualValues(t, 0, sessions)
}

func TestConfirmInsertsOnlyNewRows(t *testing.T) {
	svc, client, outboxRepo := newTestService(t)
	ctx := context.Background()
	before := seedCatalog(t, client, "KAT-1", "Kabel")

	session := preview(t, svc, "catalog_number,name,unit,category\n"+
		"KAT-1,Kabel zmieniony,m,Inne\n"+
		"KAT-2,Wtyk,szt,Osprzęt\n"+
		"KAT-3,,szt,\n")

	confirmed, err := svc.Confirm(ctx, session.UUID, "user-2")
	require.NoError(t, err)
	assert.Equal(t, enums.ImportSessionCompleted, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedBy)
	assert.Equal(t, "user-2", *confirmed.ConfirmedBy)
	require.NotNil(t, confirmed.ConfirmedAt)
	require.Len(t, confirmed.ImportedIDs.Val, 1)

	var after models.CatalogItem
	require.NoError(t, client.DB().Where("id = ?", before.ID).First(&after).Error)
	assert.Equal(t, before, after, "existing rows are untouched")

	var inserted models.CatalogItem
	require.NoError(t, client.DB().Where("catalog_key = ?", "kat-2").First(&inserted).Error)
	assert.Equal(t, confirmed.ImportedIDs.Val[0], inserted.ID)
	assert.Equal(t, "Wtyk", inserted.Name)
	require.NotNil(t, inserted.ImportSessionID)
	assert.Equal(t, session.ID, *inserted.ImportSessionID)
	assert.EqualValues(t, 2, catalogCount(t, client))

	stored, err := svc.GetSession(ctx, session.UUID)
	require.NoError(t, err)
	assert.Equal(t, enums.ImportSessionCompleted, stored.Status)
	assert.Equal(t, confirmed.ImportedIDs.Val, stored.ImportedIDs.Val)

	events, err := outboxRepo.FetchUnpublished(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventStagedImportConfirmed, events[0].EventType)
	assert.Equal(t, session.UUID, events[0].AggregateID)
}

func TestConfirmSkipsKeysAddedAfterPreview(t *testing.T) {
	svc, client, _ := newTestService(t)

	session := preview(t, svc, "catalog_number,name,unit\nKAT-5,Rura,m\nKAT-6,Kolano,szt\nKAT-7,Mufa,szt\n")
	assert.Equal(t, 3, session.NewItems)
	seedCatalog(t, client, "kat-5", "Rura z innego źródła")
	retired := seedCatalog(t, client, "KAT-7", "Mufa wycofana")
	require.NoError(t, client.DB().Model(&models.CatalogItem{}).Where("id = ?", retired.ID).Update("active", false).Error)

	confirmed, err := svc.Confirm(context.Background(), session.UUID, "")
	require.NoError(t, err)
	assert.Len(t, confirmed.ImportedIDs.Val, 1)
	assert.Equal(t, 2, confirmed.SkippedItems)
	assert.Equal(t, 3, confirmed.NewItems)
	assert.EqualValues(t, 3, catalogCount(t, client))

	stored, err := svc.GetSession(context.Background(), session.UUID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.SkippedItems)
	assert.Len(t, stored.ImportedIDs.Val, 1)

	var kept models.CatalogItem
	require.NoError(t, client.DB().Where("catalog_key = ?", "kat-5").First(&kept).Error)
	assert.Equal(t, "Rura z innego źródła", kept.Name)
}

func TestSessionTransitions(t *testing.T) {
	svc, client, _ := newTestService(t)
	ctx := context.Background()
	body := "catalog_number,name,unit\nKAT-1,Kabel,m\n"

	confirmed := preview(t, svc, body)
	_, err := svc.Confirm(ctx, confirmed.UUID, "")
	require.NoError(t, err)

	_, err = svc.Confirm(ctx, confirmed.UUID, "")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict), "second confirm")
	_, err = svc.Cancel(ctx, confirmed.UUID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict), "cancel after confirm")

	cancelled := preview(t, svc, "catalog_number,name,unit\nKAT-9,Kabel,m\n")
	ok, err := svc.Cancel(ctx, cancelled.UUID)
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := svc.GetSession(ctx, cancelled.UUID)
	require.NoError(t, err)
	assert.Equal(t, enums.ImportSessionCancelled, stored.Status)
	assert.NotNil(t, stored.CancelledAt)

	_, err = svc.Confirm(ctx, cancelled.UUID, "")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict), "confirm after cancel")
	_, err = svc.Cancel(ctx, cancelled.UUID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict), "cancel twice")
	assert.EqualValues(t, 1, catalogCount(t, client))
}

func TestUnknownSession(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetSession(ctx, uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
	_, err = svc.Confirm(ctx, uuid.New(), "")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
	_, err = svc.Cancel(ctx, uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
	_, err = svc.GetSession(ctx, uuid.Nil)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}
