package service

import (
	"bytes"
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replaydrive/internal/domain"
	"replaydrive/internal/repository"
	"replaydrive/internal/service/remote"
	"replaydrive/internal/storage"
)

const testOwner = "athlete-1"

type syncFixture struct {
	catalog *fakeCatalog
	mem     *remote.MemoryStorage
	docs    remote.DocumentStore
	files   *storage.LocalStore
	engine  *SyncService
}

func newSyncFixture(t *testing.T, batchThreshold int) *syncFixture {
	t.Helper()

	files, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	mem := remote.NewMemoryStorage()
	docs := remote.NewObjectDocumentStore(mem)
	catalog := newFakeCatalog()

	engine := NewSyncService(testOwner, catalog, docs, mem, files, fastRecovery(), nil, batchThreshold, time.Hour)
	return &syncFixture{catalog: catalog, mem: mem, docs: docs, files: files, engine: engine}
}

func (f *syncFixture) addRecord(t *testing.T, name string, status domain.SyncStatus) *domain.VideoRecord {
	t.Helper()

	rec := domain.NewVideoRecord(testOwner, name)
	rec.ProcessingStatus = domain.ProcessingStatusCompleted
	rec.SetLocal(domain.PresentLocalCopy("/videos/" + rec.ID.String() + ".mp4"))
	rec.SyncStatus = status
	require.NoError(t, f.catalog.Create(context.Background(), rec))
	return rec
}

// putRemote кладет документ записи в удаленную коллекцию и выставляет
// серверное время изменения
func (f *syncFixture) putRemote(t *testing.T, rec *domain.VideoRecord, modified time.Time) {
	t.Helper()

	doc, err := rec.ToDocument()
	require.NoError(t, err)
	_, err = f.docs.Put(context.Background(), domain.VideoRecordCollection, testOwner, doc)
	require.NoError(t, err)
	f.mem.SetModified(fmt.Sprintf("%s/%s/%s.json", domain.VideoRecordCollection, testOwner, rec.ID), modified)
}

func TestQueueThresholdTriggersSync(t *testing.T) {
	f := newSyncFixture(t, 20)

	var recs []*domain.VideoRecord
	for i := 0; i < 25; i++ {
		recs = append(recs, f.addRecord(t, fmt.Sprintf("clip-%d.mp4", i), domain.SyncStatusNotSynced))
	}
	for _, rec := range recs {
		f.engine.QueueOperation(PendingOp{Type: OpCreate, RecordID: rec.ID})
	}

	require.Eventually(t, func() bool {
		return !f.engine.LastSync().IsZero() && f.engine.PendingCount() == 0
	}, 3*time.Second, 10*time.Millisecond, "reaching the queue threshold must trigger a sync pass")

	items, err := f.docs.List(context.Background(), domain.VideoRecordCollection, testOwner)
	require.NoError(t, err)
	assert.Len(t, items, 25)
}

func TestQueueReplacesOlderOperation(t *testing.T) {
	f := newSyncFixture(t, 100)
	rec := f.addRecord(t, "clip.mp4", domain.SyncStatusNotSynced)

	f.engine.QueueOperation(PendingOp{Type: OpCreate, RecordID: rec.ID})
	f.engine.QueueOperation(PendingOp{Type: OpUpdate, RecordID: rec.ID})

	assert.Equal(t, 1, f.engine.PendingCount())
}

// gatedDocs пропускает List только после явного разрешения
type gatedDocs struct {
	remote.DocumentStore
	enter   chan struct{}
	release chan struct{}
	lists   int32
}

func (g *gatedDocs) List(ctx context.Context, collection, ownerID string) ([]remote.RemoteItem, error) {
	atomic.AddInt32(&g.lists, 1)
	g.enter <- struct{}{}
	<-g.release
	return g.DocumentStore.List(ctx, collection, ownerID)
}

func TestFullSyncSingleFlight(t *testing.T) {
	f := newSyncFixture(t, 100)
	f.addRecord(t, "clip.mp4", domain.SyncStatusNotSynced)

	gated := &gatedDocs{
		DocumentStore: f.docs,
		enter:         make(chan struct{}),
		release:       make(chan struct{}),
	}
	f.engine.docs = gated

	ctx := context.Background()
	first := make(chan *SyncResult, 1)
	second := make(chan *SyncResult, 1)

	go func() {
		res, _ := f.engine.FullSync(ctx)
		first <- res
	}()
	<-gated.enter

	// Второй вызов обязан присоединиться к идущему проходу
	go func() {
		res, _ := f.engine.FullSync(ctx)
		second <- res
	}()

	assert.Equal(t, EngineSyncing, f.engine.State())
	close(gated.release)

	res1 := <-first
	res2 := <-second

	assert.Same(t, res1, res2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&gated.lists))
	assert.Equal(t, EngineIdle, f.engine.State())
}

func TestConflictUpdateUpdateDetected(t *testing.T) {
	f := newSyncFixture(t, 100)
	ctx := context.Background()

	rec := f.addRecord(t, "clip.mp4", domain.SyncStatusSynced)
	cloudKey := "videos/athlete-1/" + rec.ID.String() + ".mp4"
	rec.CloudKey = &cloudKey

	// Удаленная сторона переименовала запись позже локальной правки
	remoteRec := *rec
	remoteRec.Name = "remote-edit.mp4"
	f.putRemote(t, &remoteRec, time.Now().UTC().Add(time.Hour))

	rec.Name = "local-edit.mp4"
	rec.MarkEdited()
	require.NoError(t, f.catalog.Update(ctx, rec))
	f.engine.QueueOperation(PendingOp{Type: OpUpdate, RecordID: rec.ID})

	res, err := f.engine.FullSync(ctx)
	require.NoError(t, err)

	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, domain.ConflictUpdateUpdate, res.Conflicts[0].Type)
	assert.Equal(t, rec.ID, res.Conflicts[0].RecordID)
	assert.Equal(t, EngineConflicts, f.engine.State())
	assert.Equal(t, domain.SyncStatusConflict, f.catalog.get(rec.ID).SyncStatus)

	// Повторный проход не трогает запись до явного решения
	res, err = f.engine.FullSync(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Conflicts)
	assert.Len(t, f.engine.Conflicts(), 1)
	assert.Equal(t, "local-edit.mp4", f.catalog.get(rec.ID).Name)
}

func TestResolveConflictUseRemote(t *testing.T) {
	f := newSyncFixture(t, 100)
	ctx := context.Background()

	rec := f.addRecord(t, "clip.mp4", domain.SyncStatusSynced)
	cloudKey := "videos/athlete-1/" + rec.ID.String() + ".mp4"
	rec.CloudKey = &cloudKey

	remoteRec := *rec
	remoteRec.Name = "remote-edit.mp4"
	f.putRemote(t, &remoteRec, time.Now().UTC().Add(time.Hour))

	rec.Name = "local-edit.mp4"
	rec.Tags = pq.StringArray{"local-tag"}
	rec.MarkEdited()
	require.NoError(t, f.catalog.Update(ctx, rec))
	f.engine.QueueOperation(PendingOp{Type: OpUpdate, RecordID: rec.ID})

	_, err := f.engine.FullSync(ctx)
	require.NoError(t, err)
	require.Len(t, f.engine.Conflicts(), 1)

	err = f.engine.ResolveConflict(ctx, rec.ID, domain.Resolution{Choice: domain.ResolutionUseRemote})
	require.NoError(t, err)

	got := f.catalog.get(rec.ID)
	assert.Equal(t, "remote-edit.mp4", got.Name, "local edit must be discarded")
	assert.NotContains(t, []string(got.Tags), "local-tag")
	assert.Equal(t, domain.SyncStatusSynced, got.SyncStatus)
	assert.Empty(t, f.engine.Conflicts())
	assert.Equal(t, 0, f.engine.PendingCount())
	assert.Equal(t, EngineIdle, f.engine.State())
}

func TestResolveConflictUseLocal(t *testing.T) {
	f := newSyncFixture(t, 100)
	ctx := context.Background()

	rec := f.addRecord(t, "clip.mp4", domain.SyncStatusSynced)
	cloudKey := "videos/athlete-1/" + rec.ID.String() + ".mp4"
	rec.CloudKey = &cloudKey

	remoteRec := *rec
	remoteRec.Name = "remote-edit.mp4"
	f.putRemote(t, &remoteRec, time.Now().UTC().Add(time.Hour))

	rec.Name = "local-edit.mp4"
	rec.MarkEdited()
	require.NoError(t, f.catalog.Update(ctx, rec))
	f.engine.QueueOperation(PendingOp{Type: OpUpdate, RecordID: rec.ID})

	_, err := f.engine.FullSync(ctx)
	require.NoError(t, err)
	require.Len(t, f.engine.Conflicts(), 1)

	err = f.engine.ResolveConflict(ctx, rec.ID, domain.Resolution{Choice: domain.ResolutionUseLocal})
	require.NoError(t, err)

	item, err := f.docs.Get(ctx, domain.VideoRecordCollection, testOwner, rec.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "local-edit.mp4", item.Document["name"], "local version must win remotely")
	assert.Equal(t, domain.SyncStatusSynced, f.catalog.get(rec.ID).SyncStatus)
}

func TestResolveMergeRequiresRecord(t *testing.T) {
	f := newSyncFixture(t, 100)
	ctx := context.Background()

	rec := f.addRecord(t, "clip.mp4", domain.SyncStatusNotSynced)
	remoteRec := *rec
	f.putRemote(t, &remoteRec, time.Now().UTC().Add(time.Hour))
	f.engine.QueueOperation(PendingOp{Type: OpUpdate, RecordID: rec.ID})

	_, err := f.engine.FullSync(ctx)
	require.NoError(t, err)
	require.Len(t, f.engine.Conflicts(), 1)

	err = f.engine.ResolveConflict(ctx, rec.ID, domain.Resolution{Choice: domain.ResolutionMerge})
	assert.Error(t, err)
}

func TestDeleteUpdateConflict(t *testing.T) {
	f := newSyncFixture(t, 100)
	ctx := context.Background()

	// Запись удалена локально, но удаленная сторона менялась позже
	rec := domain.NewVideoRecord(testOwner, "clip.mp4")
	rec.ProcessingStatus = domain.ProcessingStatusCompleted
	f.putRemote(t, rec, time.Now().UTC().Add(time.Hour))
	f.engine.QueueOperation(PendingOp{Type: OpDelete, RecordID: rec.ID})

	res, err := f.engine.FullSync(ctx)
	require.NoError(t, err)

	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, domain.ConflictDeleteUpdate, res.Conflicts[0].Type)

	// useLocal подтверждает удаление
	err = f.engine.ResolveConflict(ctx, rec.ID, domain.Resolution{Choice: domain.ResolutionUseLocal})
	require.NoError(t, err)

	_, err = f.docs.Get(ctx, domain.VideoRecordCollection, testOwner, rec.ID.String())
	assert.ErrorIs(t, err, remote.ErrObjectNotFound)
}

func TestUpdateDeleteConflict(t *testing.T) {
	f := newSyncFixture(t, 100)
	ctx := context.Background()

	// Запись была синхронизирована, документ исчез, локальная правка есть
	rec := f.addRecord(t, "clip.mp4", domain.SyncStatusSynced)
	cloudKey := "videos/athlete-1/" + rec.ID.String() + ".mp4"
	rec.CloudKey = &cloudKey
	rec.Name = "local-edit.mp4"
	rec.MarkEdited()
	require.NoError(t, f.catalog.Update(ctx, rec))
	f.engine.QueueOperation(PendingOp{Type: OpUpdate, RecordID: rec.ID})

	res, err := f.engine.FullSync(ctx)
	require.NoError(t, err)

	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, domain.ConflictUpdateDelete, res.Conflicts[0].Type)

	// useLocal восстанавливает удаленную сторону локальной версией
	err = f.engine.ResolveConflict(ctx, rec.ID, domain.Resolution{Choice: domain.ResolutionUseLocal})
	require.NoError(t, err)

	item, err := f.docs.Get(ctx, domain.VideoRecordCollection, testOwner, rec.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "local-edit.mp4", item.Document["name"])
	assert.Equal(t, domain.SyncStatusSynced, f.catalog.get(rec.ID).SyncStatus)
}

func TestRemoteVanishedKeepsRecord(t *testing.T) {
	f := newSyncFixture(t, 100)
	ctx := context.Background()

	rec := f.addRecord(t, "clip.mp4", domain.SyncStatusSynced)
	cloudKey := "videos/athlete-1/" + rec.ID.String() + ".mp4"
	rec.CloudKey = &cloudKey
	require.NoError(t, f.catalog.Update(ctx, rec))

	res, err := f.engine.FullSync(ctx)
	require.NoError(t, err)

	// Отсутствие документа без локального удаления не означает удаление
	assert.Zero(t, res.Removed)
	got := f.catalog.get(rec.ID)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, domain.SyncStatusNotSynced, got.SyncStatus)
}

func TestOrphanedRecordRemoved(t *testing.T) {
	f := newSyncFixture(t, 100)
	ctx := context.Background()

	rec := f.addRecord(t, "clip.mp4", domain.SyncStatusNotSynced)
	rec.SetLocal(domain.AbsentLocalCopy())
	require.NoError(t, f.catalog.Update(ctx, rec))

	res, err := f.engine.FullSync(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Removed)
	_, err = f.catalog.GetByID(ctx, rec.ID)
	assert.ErrorIs(t, err, repository.ErrRecordNotFound)
}

func TestAdoptNewRemoteRecord(t *testing.T) {
	f := newSyncFixture(t, 100)
	ctx := context.Background()

	remoteRec := domain.NewVideoRecord(testOwner, "from-other-device.mp4")
	remoteRec.ProcessingStatus = domain.ProcessingStatusCompleted
	cloudKey := "videos/athlete-1/" + remoteRec.ID.String() + ".mp4"
	remoteRec.CloudKey = &cloudKey
	remoteRec.SyncStatus = domain.SyncStatusSynced
	remoteRec.SetLocal(domain.PresentLocalCopy("/other-device/clip.mp4"))
	f.putRemote(t, remoteRec, time.Now().UTC())

	res, err := f.engine.FullSync(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Pulled)
	got := f.catalog.get(remoteRec.ID)
	assert.Equal(t, "from-other-device.mp4", got.Name)
	assert.Equal(t, domain.SyncStatusSynced, got.SyncStatus)

	// Состояние локальной копии чужого устройства не перенимается
	assert.Equal(t, domain.LocalCopyUnknown, got.LocalState)
	assert.Empty(t, got.LocalPath)
}

func TestSyncSkipsRecordsInTransfer(t *testing.T) {
	f := newSyncFixture(t, 100)
	ctx := context.Background()

	rec := f.addRecord(t, "clip.mp4", domain.SyncStatusSyncing)
	remoteRec := *rec
	remoteRec.Name = "remote-edit.mp4"
	f.putRemote(t, &remoteRec, time.Now().UTC().Add(time.Hour))

	res, err := f.engine.FullSync(ctx)
	require.NoError(t, err)

	// Запись с идущей передачей принадлежит оркестратору
	assert.Zero(t, res.Pulled)
	assert.Empty(t, res.Conflicts)
	got := f.catalog.get(rec.ID)
	assert.Equal(t, "clip.mp4", got.Name)
	assert.Equal(t, domain.SyncStatusSyncing, got.SyncStatus)
}

func TestQueuedDeleteRemovesMediaObject(t *testing.T) {
	f := newSyncFixture(t, 100)
	ctx := context.Background()

	rec := f.addRecord(t, "clip.mp4", domain.SyncStatusSynced)
	objectKey := "videos/athlete-1/" + rec.ID.String() + ".mp4"
	rec.CloudKey = &objectKey
	require.NoError(t, f.catalog.Update(ctx, rec))

	payload := []byte("video payload")
	require.NoError(t, f.mem.Upload(ctx, objectKey, bytes.NewReader(payload), int64(len(payload)), nil))
	f.putRemote(t, rec, time.Now().UTC().Add(-time.Hour))

	f.engine.QueueOperation(PendingOp{Type: OpDelete, RecordID: rec.ID})

	res, err := f.engine.FullSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)

	_, err = f.docs.Get(ctx, domain.VideoRecordCollection, testOwner, rec.ID.String())
	assert.ErrorIs(t, err, remote.ErrObjectNotFound)
	assert.False(t, f.mem.Exists(objectKey), "media object must be removed with the document")

	_, err = f.catalog.GetByID(ctx, rec.ID)
	assert.ErrorIs(t, err, repository.ErrRecordNotFound)
}

func TestStaleConflictRedetectedAfterRestart(t *testing.T) {
	f := newSyncFixture(t, 100)
	ctx := context.Background()

	// Состояние после перезапуска: запись хранит статус sync_conflict,
	// но карта конфликтов свежего движка пуста
	rec := f.addRecord(t, "clip.mp4", domain.SyncStatusConflict)
	cloudKey := "videos/athlete-1/" + rec.ID.String() + ".mp4"
	rec.CloudKey = &cloudKey
	require.NoError(t, f.catalog.Update(ctx, rec))

	remoteRec := *rec
	remoteRec.Name = "remote-edit.mp4"
	f.putRemote(t, &remoteRec, time.Now().UTC().Add(time.Hour))

	res, err := f.engine.FullSync(ctx)
	require.NoError(t, err)

	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, domain.ConflictUpdateUpdate, res.Conflicts[0].Type)

	// И его снова можно разрешить
	err = f.engine.ResolveConflict(ctx, rec.ID, domain.Resolution{Choice: domain.ResolutionUseRemote})
	require.NoError(t, err)
	assert.Equal(t, "remote-edit.mp4", f.catalog.get(rec.ID).Name)
	assert.Equal(t, EngineIdle, f.engine.State())
}

func TestStaleConflictWithRemoteGoneRedetected(t *testing.T) {
	f := newSyncFixture(t, 100)
	ctx := context.Background()

	rec := f.addRecord(t, "clip.mp4", domain.SyncStatusConflict)
	cloudKey := "videos/athlete-1/" + rec.ID.String() + ".mp4"
	rec.CloudKey = &cloudKey
	require.NoError(t, f.catalog.Update(ctx, rec))

	res, err := f.engine.FullSync(ctx)
	require.NoError(t, err)

	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, domain.ConflictUpdateDelete, res.Conflicts[0].Type)
}

func TestStaleConflictWithOlderRemoteRepushed(t *testing.T) {
	f := newSyncFixture(t, 100)
	ctx := context.Background()

	rec := f.addRecord(t, "clip.mp4", domain.SyncStatusConflict)
	cloudKey := "videos/athlete-1/" + rec.ID.String() + ".mp4"
	rec.CloudKey = &cloudKey
	require.NoError(t, f.catalog.Update(ctx, rec))

	remoteRec := *rec
	remoteRec.Name = "stale.mp4"
	f.putRemote(t, &remoteRec, time.Now().UTC().Add(-time.Hour))

	// Удаленная сторона не новее: локальная версия выигрывает и запись
	// выходит из подвисшего состояния
	res, err := f.engine.FullSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pushed)

	item, err := f.docs.Get(ctx, domain.VideoRecordCollection, testOwner, rec.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "clip.mp4", item.Document["name"])
	assert.Equal(t, domain.SyncStatusSynced, f.catalog.get(rec.ID).SyncStatus)
}

func TestStaleConflictWithoutCloudRepushed(t *testing.T) {
	f := newSyncFixture(t, 100)
	ctx := context.Background()

	rec := f.addRecord(t, "clip.mp4", domain.SyncStatusConflict)

	res, err := f.engine.FullSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pushed)

	_, err = f.docs.Get(ctx, domain.VideoRecordCollection, testOwner, rec.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStatusNotSynced, f.catalog.get(rec.ID).SyncStatus)
}

func TestPushWithoutCloudStaysNotSynced(t *testing.T) {
	f := newSyncFixture(t, 100)
	ctx := context.Background()

	rec := f.addRecord(t, "clip.mp4", domain.SyncStatusNotSynced)

	res, err := f.engine.FullSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pushed)

	// Документ отправлен, но файла в облаке нет: synced присвоить нельзя
	_, err = f.docs.Get(ctx, domain.VideoRecordCollection, testOwner, rec.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStatusNotSynced, f.catalog.get(rec.ID).SyncStatus)
}
