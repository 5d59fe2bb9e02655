package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"replaydrive/internal/domain"
	"replaydrive/internal/service/events"
	"replaydrive/internal/service/remote"
	"replaydrive/internal/storage"
)

const (
	defaultMaxConcurrentUploads = 3
	defaultLocalCeiling         = 100
)

var (
	// ErrNotTransferable — запись ещё обрабатывается и не может
	// участвовать в передаче или удалении
	ErrNotTransferable = errors.New("record is not ready for transfer")
	// ErrNoCloudCopy — скачивать нечего: подтвержденной удаленной копии нет
	ErrNoCloudCopy = errors.New("record has no cloud copy")
	// ErrNoTransfer — для идентификатора нет идущей передачи
	ErrNoTransfer = errors.New("no transfer in flight")
)

type transferKind string

const (
	transferUpload   transferKind = "upload"
	transferDownload transferKind = "download"
)

// transfer — одна идущая передача. Отмена кооперативная: сигнал через
// cancel, задача останавливается на ближайшей границе ввода-вывода
type transfer struct {
	kind     transferKind
	cancel   context.CancelFunc
	progress float64
	done     chan struct{}
}

// VideoService — оркестратор передач: выдает загрузки и скачивания через
// адаптер удаленного хранилища под ограничением параллелизма, ведет
// прогресс по записям, поддерживает отмену и очистку локального хранилища.
// Множество идущих передач и карта прогресса принадлежат только ему
type VideoService struct {
	catalog  RecordCatalog
	files    *storage.LocalStore
	store    remote.Storage
	docs     remote.DocumentStore
	syncs    *SyncRegistry
	perms    *PermissionService
	recovery *RecoveryService
	events   events.Publisher

	maxConcurrent int
	localCeiling  int

	// uploadSlots ограничивает число одновременных загрузок независимо
	// от того, начаты они поодиночке или пакетом
	uploadSlots chan struct{}

	mu       sync.Mutex
	inFlight map[uuid.UUID]*transfer
}

func NewVideoService(
	catalog RecordCatalog,
	files *storage.LocalStore,
	store remote.Storage,
	docs remote.DocumentStore,
	syncs *SyncRegistry,
	perms *PermissionService,
	recovery *RecoveryService,
	pub events.Publisher,
	maxConcurrent int,
	localCeiling int,
) *VideoService {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentUploads
	}
	if localCeiling <= 0 {
		localCeiling = defaultLocalCeiling
	}
	return &VideoService{
		catalog:       catalog,
		files:         files,
		store:         store,
		docs:          docs,
		syncs:         syncs,
		perms:         perms,
		recovery:      recovery,
		events:        pub,
		maxConcurrent: maxConcurrent,
		localCeiling:  localCeiling,
		uploadSlots:   make(chan struct{}, maxConcurrent),
		inFlight:      make(map[uuid.UUID]*transfer),
	}
}

func mediaKey(owner string, id uuid.UUID) string {
	return fmt.Sprintf("videos/%s/%s.mp4", owner, id)
}

// begin регистрирует передачу. Вторая передача для того же идентификатора
// не допускается
func (s *VideoService) begin(id uuid.UUID, kind transferKind) (context.Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.inFlight[id]; ok {
		return nil, false
	}

	// Передача переживает HTTP-запрос, который её начал
	ctx, cancel := context.WithCancel(context.Background())
	s.inFlight[id] = &transfer{kind: kind, cancel: cancel, done: make(chan struct{})}
	return ctx, true
}

func (s *VideoService) finish(id uuid.UUID) {
	s.mu.Lock()
	t, ok := s.inFlight[id]
	if ok {
		delete(s.inFlight, id)
	}
	s.mu.Unlock()

	if ok {
		t.cancel()
		close(t.done)
	}
}

func (s *VideoService) setProgress(id uuid.UUID, fraction float64) {
	s.mu.Lock()
	t, ok := s.inFlight[id]
	// Повторная попытка после сбоя начинает отсчет заново: наружу уходят
	// только продвижения вперед
	advanced := ok && fraction > t.progress
	if advanced {
		t.progress = fraction
	}
	s.mu.Unlock()

	if advanced && s.events != nil {
		s.events.Publish(events.Event{
			Type:     events.EventTransferProgress,
			RecordID: id,
			Payload:  map[string]interface{}{"fraction": fraction},
		})
	}
}

// Progress возвращает прогресс идущей передачи в [0,1]
func (s *VideoService) Progress(id uuid.UUID) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.inFlight[id]
	if !ok {
		return 0, false
	}
	return t.progress, true
}

// InFlightCount возвращает количество идущих передач
func (s *VideoService) InFlightCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inFlight)
}

// Upload начинает асинхронную загрузку записи. Повторный вызов для записи
// с идущей передачей — ничего не делающий, логируемый отказ
func (s *VideoService) Upload(ctx context.Context, id uuid.UUID, actor string) error {
	rec, err := s.catalog.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !rec.Transferable() {
		return fmt.Errorf("record %s: %w", id, ErrNotTransferable)
	}
	if err := s.perms.CanUpload(ctx, rec, actor); err != nil {
		return err
	}

	tctx, ok := s.begin(id, transferUpload)
	if !ok {
		log.Printf("[VideoService] Upload for %s already in flight, ignoring", id)
		return nil
	}

	rec.SyncStatus = domain.SyncStatusSyncing
	if err := s.catalog.Update(ctx, rec); err != nil {
		s.finish(id)
		return fmt.Errorf("failed to mark record syncing: %w", err)
	}
	s.publish(events.EventSyncStateChanged, id, string(rec.SyncStatus))

	go func() {
		defer s.finish(id)
		if err := s.performUpload(tctx, rec); err != nil {
			log.Printf("[VideoService] Upload for %s failed: %v", id, err)
		}
	}()

	return nil
}

// uploadAttempt — одна попытка передачи файла в удаленное хранилище
func (s *VideoService) uploadAttempt(ctx context.Context, rec *domain.VideoRecord, key string) error {
	f, size, err := s.files.Open(rec.ID)
	if err != nil {
		return err
	}
	defer f.Close()

	return s.store.Upload(ctx, key, f, size, func(fraction float64) {
		s.setProgress(rec.ID, fraction)
	})
}

func (s *VideoService) performUpload(ctx context.Context, rec *domain.VideoRecord) error {
	key := mediaKey(rec.OwnerID, rec.ID)

	// Слот занимается на всю передачу, включая повторные попытки
	var err error
	select {
	case s.uploadSlots <- struct{}{}:
		defer func() { <-s.uploadSlots }()
		err = s.uploadAttempt(ctx, rec, key)
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil && !canceled(ctx, err) {
		err = s.recovery.Report(ctx, err, fmt.Sprintf("upload %s", rec.ID), func(ctx context.Context) error {
			return s.uploadAttempt(ctx, rec, key)
		})
	}

	if canceled(ctx, err) {
		// Отмена — не ошибка: возвращаем запись в notSynced и убираем
		// частично загруженный объект
		rec.SyncStatus = domain.SyncStatusNotSynced
		if uerr := s.catalog.Update(context.Background(), rec); uerr != nil {
			log.Printf("[VideoService] Failed to revert %s after cancel: %v", rec.ID, uerr)
		}
		if derr := s.store.Delete(context.Background(), key); derr != nil {
			log.Printf("[VideoService] Failed to remove partial object %s: %v", key, derr)
		}
		log.Printf("[VideoService] Upload for %s cancelled", rec.ID)
		s.publish(events.EventSyncStateChanged, rec.ID, string(rec.SyncStatus))
		return nil
	}

	if err != nil {
		rec.SyncStatus = domain.SyncStatusFailed
		if uerr := s.catalog.Update(context.Background(), rec); uerr != nil {
			log.Printf("[VideoService] Failed to mark %s failed: %v", rec.ID, uerr)
		}
		s.publish(events.EventSyncStateChanged, rec.ID, string(rec.SyncStatus))
		return err
	}

	rec.CloudKey = &key
	rec.SyncStatus = domain.SyncStatusSynced
	if err := s.catalog.Update(context.Background(), rec); err != nil {
		return fmt.Errorf("failed to finalize upload: %w", err)
	}

	// Публикуем документ записи; при неудаче следующий проход
	// синхронизации отправит его повторно
	doc, derr := rec.ToDocument()
	if derr == nil {
		_, derr = s.docs.Put(context.Background(), domain.VideoRecordCollection, rec.OwnerID, doc)
	}
	if derr != nil {
		log.Printf("[VideoService] Failed to push document for %s: %v", rec.ID, derr)
		rec.SyncStatus = domain.SyncStatusNotSynced
		if uerr := s.catalog.Update(context.Background(), rec); uerr != nil {
			log.Printf("[VideoService] Failed to downgrade %s after document push failure: %v", rec.ID, uerr)
		}
	}

	log.Printf("[VideoService] Upload for %s completed", rec.ID)
	s.publish(events.EventSyncStateChanged, rec.ID, string(rec.SyncStatus))
	return nil
}

// UploadBatch делит записи на порции не больше maxConcurrent и выполняет
// порции последовательно, а загрузки внутри порции — параллельно. Пиковое
// использование сети ограничено независимо от размера пакета
func (s *VideoService) UploadBatch(ctx context.Context, ids []uuid.UUID, actor string) error {
	failed := make(map[uuid.UUID]error)
	var failedMu sync.Mutex
	recordFailure := func(id uuid.UUID, err error) {
		failedMu.Lock()
		failed[id] = err
		failedMu.Unlock()
	}

	for start := 0; start < len(ids); start += s.maxConcurrent {
		end := start + s.maxConcurrent
		if end > len(ids) {
			end = len(ids)
		}

		var wg sync.WaitGroup
		for _, id := range ids[start:end] {
			rec, err := s.catalog.GetByID(ctx, id)
			if err != nil {
				recordFailure(id, err)
				continue
			}
			if !rec.Transferable() {
				recordFailure(id, ErrNotTransferable)
				continue
			}
			if err := s.perms.CanUpload(ctx, rec, actor); err != nil {
				recordFailure(id, err)
				continue
			}

			tctx, ok := s.begin(id, transferUpload)
			if !ok {
				log.Printf("[VideoService] Upload for %s already in flight, skipping in batch", id)
				continue
			}

			rec.SyncStatus = domain.SyncStatusSyncing
			if err := s.catalog.Update(ctx, rec); err != nil {
				s.finish(id)
				recordFailure(id, err)
				continue
			}

			wg.Add(1)
			go func(rec *domain.VideoRecord) {
				defer wg.Done()
				defer s.finish(rec.ID)
				if err := s.performUpload(tctx, rec); err != nil {
					recordFailure(rec.ID, err)
				}
			}(rec)
		}
		wg.Wait()

		if ctx.Err() != nil {
			break
		}
	}

	if len(failed) > 0 {
		batchErr := &domain.BatchError{Failed: failed}
		return s.recovery.Report(ctx, batchErr, "upload batch", nil)
	}
	return nil
}

// Cancel кооперативно отменяет идущую передачу
func (s *VideoService) Cancel(id uuid.UUID) error {
	s.mu.Lock()
	t, ok := s.inFlight[id]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("record %s: %w", id, ErrNoTransfer)
	}

	log.Printf("[VideoService] Cancelling %s for %s", t.kind, id)
	t.cancel()
	return nil
}

// Download начинает асинхронное скачивание записи в локальное хранилище.
// Файл становится виден остальной системе только после полного приема
func (s *VideoService) Download(ctx context.Context, id uuid.UUID, actor string) error {
	rec, err := s.catalog.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !rec.HasCloud() {
		return fmt.Errorf("record %s: %w", id, ErrNoCloudCopy)
	}

	tctx, ok := s.begin(id, transferDownload)
	if !ok {
		log.Printf("[VideoService] Transfer for %s already in flight, ignoring download", id)
		return nil
	}

	go func() {
		defer s.finish(id)
		if err := s.performDownload(tctx, rec); err != nil {
			log.Printf("[VideoService] Download for %s failed: %v", id, err)
		}
	}()

	return nil
}

func (s *VideoService) downloadAttempt(ctx context.Context, rec *domain.VideoRecord) (string, int64, error) {
	pr, pw := io.Pipe()

	go func() {
		pw.CloseWithError(s.store.Download(ctx, *rec.CloudKey, pw, func(fraction float64) {
			s.setProgress(rec.ID, fraction)
		}))
	}()

	// Store пишет во временный файл и переименовывает только после
	// успешного приема всего содержимого
	return s.files.Store(rec.ID, pr)
}

func (s *VideoService) performDownload(ctx context.Context, rec *domain.VideoRecord) error {
	path, size, err := s.downloadAttempt(ctx, rec)
	if err != nil && !canceled(ctx, err) {
		err = s.recovery.Report(ctx, err, fmt.Sprintf("download %s", rec.ID), func(ctx context.Context) error {
			var rerr error
			path, size, rerr = s.downloadAttempt(ctx, rec)
			return rerr
		})
	}

	if canceled(ctx, err) {
		log.Printf("[VideoService] Download for %s cancelled", rec.ID)
		return nil
	}
	if err != nil {
		return err
	}

	rec.SetLocal(domain.PresentLocalCopy(path))
	if rec.SizeBytes == 0 {
		rec.SizeBytes = size
	}
	if err := s.catalog.Update(context.Background(), rec); err != nil {
		return fmt.Errorf("failed to record local copy: %w", err)
	}

	log.Printf("[VideoService] Download for %s completed (%d bytes)", rec.ID, size)
	s.publish(events.EventRecordUpdated, rec.ID, nil)
	return nil
}

// Delete удаляет запись: отменяет идущую передачу, убирает локальную и
// удаленную копии и снимает запись с учета
func (s *VideoService) Delete(ctx context.Context, id uuid.UUID, actor string) error {
	rec, err := s.catalog.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if rec.ProcessingStatus == domain.ProcessingStatusPending ||
		rec.ProcessingStatus == domain.ProcessingStatusProcessing {
		return fmt.Errorf("record %s: %w", id, ErrNotTransferable)
	}
	if err := s.perms.CanDelete(ctx, rec, actor); err != nil {
		return err
	}

	// Идущая передача должна быть остановлена до удаления копий
	s.mu.Lock()
	t, inFlight := s.inFlight[id]
	s.mu.Unlock()
	if inFlight {
		t.cancel()
		select {
		case <-t.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := s.files.Delete(id); err != nil {
		return err
	}
	if err := s.files.DeleteThumbnail(id); err != nil {
		log.Printf("[VideoService] Failed to delete thumbnail for %s: %v", id, err)
	}

	if rec.HasCloud() {
		if err := s.store.Delete(ctx, *rec.CloudKey); err != nil {
			return fmt.Errorf("failed to delete remote object: %w", err)
		}
	}
	if err := s.docs.Delete(ctx, domain.VideoRecordCollection, rec.OwnerID, id.String()); err != nil {
		return fmt.Errorf("failed to delete remote document: %w", err)
	}

	if err := s.catalog.Delete(ctx, id); err != nil {
		return err
	}

	log.Printf("[VideoService] Record %s deleted by %s", id, actor)
	s.publish(events.EventRecordDeleted, id, nil)
	return nil
}

// PerformStorageCleanup выселяет локальные копии сверх потолка: старейшие
// по дате создания записи с подтвержденной удаленной копией теряют только
// локальный файл, сама запись и метаданные остаются. Записи без удаленной
// копии не выселяются никогда
func (s *VideoService) PerformStorageCleanup(ctx context.Context, owner string) (int, error) {
	count, err := s.catalog.CountLocal(ctx, owner)
	if err != nil {
		return 0, err
	}
	if count <= s.localCeiling {
		return 0, nil
	}

	excess := count - s.localCeiling
	victims, err := s.catalog.ListEvictable(ctx, owner, excess)
	if err != nil {
		return 0, err
	}

	evicted := 0
	for i := range victims {
		// Отмена посреди прохода: уже выселенные записи остаются
		// корректно помеченными, повторных попыток в этом проходе нет
		if ctx.Err() != nil {
			return evicted, ctx.Err()
		}

		rec := &victims[i]
		if err := s.files.Delete(rec.ID); err != nil {
			log.Printf("[VideoService] Failed to evict local file for %s: %v", rec.ID, err)
			continue
		}

		rec.SetLocal(domain.AbsentLocalCopy())
		if err := s.catalog.Update(ctx, rec); err != nil {
			return evicted, fmt.Errorf("failed to mark eviction of %s: %w", rec.ID, err)
		}

		evicted++
		s.publish(events.EventRecordUpdated, rec.ID, nil)
	}

	log.Printf("[VideoService] Storage cleanup for %s evicted %d local file(s)", owner, evicted)
	return evicted, nil
}

// UpdateTags заменяет метки записи и ставит её в очередь синхронизации
func (s *VideoService) UpdateTags(ctx context.Context, id uuid.UUID, actor string, tags []string) (*domain.VideoRecord, error) {
	rec, err := s.catalog.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.perms.CanComment(ctx, rec, actor); err != nil {
		return nil, err
	}

	rec.Tags = pq.StringArray(tags)
	s.applyEdit(ctx, rec)
	if err := s.catalog.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// SetHighlight помечает запись как лучший момент
func (s *VideoService) SetHighlight(ctx context.Context, id uuid.UUID, actor string, highlight bool) (*domain.VideoRecord, error) {
	rec, err := s.catalog.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.perms.CanComment(ctx, rec, actor); err != nil {
		return nil, err
	}

	rec.IsHighlight = highlight
	s.applyEdit(ctx, rec)
	if err := s.catalog.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Rename переименовывает запись
func (s *VideoService) Rename(ctx context.Context, id uuid.UUID, actor string, name string) (*domain.VideoRecord, error) {
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}

	rec, err := s.catalog.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.perms.CanComment(ctx, rec, actor); err != nil {
		return nil, err
	}

	rec.Name = name
	s.applyEdit(ctx, rec)
	if err := s.catalog.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// applyEdit фиксирует пользовательское изменение и ставит отложенную
// операцию в движок синхронизации владельца
func (s *VideoService) applyEdit(ctx context.Context, rec *domain.VideoRecord) {
	rec.MarkEdited()
	if s.syncs != nil {
		s.syncs.ForOwner(rec.OwnerID).QueueOperation(PendingOp{
			Type:     OpUpdate,
			RecordID: rec.ID,
		})
	}
	s.publish(events.EventRecordUpdated, rec.ID, nil)
}

func (s *VideoService) publish(t events.EventType, id uuid.UUID, payload interface{}) {
	if s.events == nil {
		return
	}
	s.events.Publish(events.Event{Type: t, RecordID: id, Payload: payload})
}

func canceled(ctx context.Context, err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled)
}
