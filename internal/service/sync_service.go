package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"replaydrive/internal/domain"
	"replaydrive/internal/service/events"
	"replaydrive/internal/service/remote"
	"replaydrive/internal/storage"
)

const (
	defaultBatchThreshold = 20
	defaultSyncInterval   = 5 * time.Minute
)

// RecordCatalog — локальный каталог записей, нужный движку и оркестратору.
// Реализация — repository.RecordRepository; отсутствие записи сообщается
// ошибкой repository.ErrRecordNotFound
type RecordCatalog interface {
	Create(ctx context.Context, rec *domain.VideoRecord) error
	Update(ctx context.Context, rec *domain.VideoRecord) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.VideoRecord, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.VideoRecord, error)
	CountPending(ctx context.Context, ownerID string) (int, error)
	CountLocal(ctx context.Context, ownerID string) (int, error)
	ListEvictable(ctx context.Context, ownerID string, limit int) ([]domain.VideoRecord, error)
}

// OpType — вид отложенной операции
type OpType string

const (
	OpCreate OpType = "create"
	OpUpdate OpType = "update"
	OpDelete OpType = "delete"
)

// PendingOp — отложенная операция над одной записью. В очереди держится
// не более одной операции на идентификатор: новая замещает старую
type PendingOp struct {
	Type     OpType
	RecordID uuid.UUID
	QueuedAt time.Time
}

// EngineState — состояние движка синхронизации
type EngineState string

const (
	EngineIdle      EngineState = "idle"
	EngineSyncing   EngineState = "syncing"
	EngineConflicts EngineState = "conflict_resolution"
)

// SyncResult — итог одного полного прохода
type SyncResult struct {
	Pushed      int               `json:"pushed"`
	Pulled      int               `json:"pulled"`
	Deleted     int               `json:"deleted"`
	Removed     int               `json:"removed"`
	Conflicts   []domain.Conflict `json:"conflicts,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt time.Time         `json:"completed_at"`
	Err         error             `json:"-"`
}

// SyncService — движок синхронизации одного владельца: очередь отложенных
// операций, полные проходы сверки с удаленной коллекцией, обнаружение и
// разрешение конфликтов. Все изменения внутреннего состояния проходят
// через один мьютекс; сетевые операции выполняются вне его
type SyncService struct {
	owner    string
	catalog  RecordCatalog
	docs     remote.DocumentStore
	media    remote.Storage
	files    *storage.LocalStore
	recovery *RecoveryService
	events   events.Publisher

	batchThreshold int
	interval       time.Duration

	mu        sync.Mutex
	pending   map[uuid.UUID]PendingOp
	conflicts map[uuid.UUID]domain.Conflict
	state     EngineState
	inFlight  bool
	waiters   []chan *SyncResult
	lastSync  time.Time
}

func NewSyncService(
	owner string,
	catalog RecordCatalog,
	docs remote.DocumentStore,
	media remote.Storage,
	files *storage.LocalStore,
	recovery *RecoveryService,
	pub events.Publisher,
	batchThreshold int,
	interval time.Duration,
) *SyncService {
	if batchThreshold <= 0 {
		batchThreshold = defaultBatchThreshold
	}
	if interval <= 0 {
		interval = defaultSyncInterval
	}
	return &SyncService{
		owner:          owner,
		catalog:        catalog,
		docs:           docs,
		media:          media,
		files:          files,
		recovery:       recovery,
		events:         pub,
		batchThreshold: batchThreshold,
		interval:       interval,
		pending:        make(map[uuid.UUID]PendingOp),
		conflicts:      make(map[uuid.UUID]domain.Conflict),
		state:          EngineIdle,
	}
}

// State возвращает текущее состояние движка
func (s *SyncService) State() EngineState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastSync возвращает время завершения последнего прохода
func (s *SyncService) LastSync() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSync
}

// Conflicts возвращает неразрешенные конфликты
func (s *SyncService) Conflicts() []domain.Conflict {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Conflict, 0, len(s.conflicts))
	for _, c := range s.conflicts {
		out = append(out, c)
	}
	return out
}

// PendingCount возвращает размер очереди отложенных операций
func (s *SyncService) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// QueueOperation принимает отложенную операцию. Новая операция для того же
// идентификатора замещает старую. Достижение порога очереди запускает
// немедленный полный проход вместо ожидания таймера
func (s *SyncService) QueueOperation(op PendingOp) {
	if op.QueuedAt.IsZero() {
		op.QueuedAt = time.Now().UTC()
	}

	s.mu.Lock()
	s.pending[op.RecordID] = op
	queued := len(s.pending)
	s.mu.Unlock()

	if queued >= s.batchThreshold {
		log.Printf("[SyncService] Queue reached %d operations, triggering full sync", queued)
		go func() {
			if _, err := s.FullSync(context.Background()); err != nil {
				log.Printf("[SyncService] Threshold-triggered sync failed: %v", err)
			}
		}()
	}
}

// Start запускает периодический триггер. Проход инициируется, только если
// есть записи, требующие синхронизации, или непустая очередь операций
func (s *SyncService) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				count, err := s.catalog.CountPending(ctx, s.owner)
				if err != nil {
					log.Printf("[SyncService] Failed to count pending records: %v", err)
					continue
				}
				if count == 0 && s.PendingCount() == 0 {
					continue
				}
				if _, err := s.FullSync(ctx); err != nil {
					log.Printf("[SyncService] Periodic sync failed: %v", err)
				}
			}
		}
	}()
}

// FullSync выполняет полный проход сверки. Одновременно может идти только
// один проход: повторный вызов присоединяется к идущему и получает его
// результат
func (s *SyncService) FullSync(ctx context.Context) (*SyncResult, error) {
	s.mu.Lock()
	if s.inFlight {
		ch := make(chan *SyncResult, 1)
		s.waiters = append(s.waiters, ch)
		s.mu.Unlock()

		select {
		case res := <-ch:
			return res, res.Err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.inFlight = true
	s.state = EngineSyncing
	s.mu.Unlock()

	log.Printf("[SyncService] Starting full sync for %s", s.owner)
	res := s.runFullSync(ctx)
	res.CompletedAt = time.Now().UTC()

	s.mu.Lock()
	s.inFlight = false
	s.lastSync = res.CompletedAt
	if len(s.conflicts) > 0 {
		s.state = EngineConflicts
	} else {
		s.state = EngineIdle
	}
	waiters := s.waiters
	s.waiters = nil
	s.mu.Unlock()

	for _, ch := range waiters {
		ch <- res
	}

	if res.Err != nil {
		log.Printf("[SyncService] Full sync for %s finished with error: %v", s.owner, res.Err)
	} else {
		log.Printf("[SyncService] Full sync for %s: pushed=%d pulled=%d deleted=%d removed=%d conflicts=%d",
			s.owner, res.Pushed, res.Pulled, res.Deleted, res.Removed, len(res.Conflicts))
	}

	return res, res.Err
}

func (s *SyncService) runFullSync(ctx context.Context) *SyncResult {
	res := &SyncResult{StartedAt: time.Now().UTC()}

	// Снимок очереди и заблокированных конфликтами идентификаторов
	s.mu.Lock()
	ops := make(map[uuid.UUID]PendingOp, len(s.pending))
	for id, op := range s.pending {
		ops[id] = op
	}
	blocked := make(map[uuid.UUID]bool, len(s.conflicts))
	for id := range s.conflicts {
		blocked[id] = true
	}
	s.mu.Unlock()

	items, err := s.docs.List(ctx, domain.VideoRecordCollection, s.owner)
	if err != nil {
		err = s.recovery.Report(ctx, err, "full sync: list remote", func(ctx context.Context) error {
			var rerr error
			items, rerr = s.docs.List(ctx, domain.VideoRecordCollection, s.owner)
			return rerr
		})
		if err != nil {
			res.Err = err
			return res
		}
	}

	locals, err := s.catalog.ListByOwner(ctx, s.owner)
	if err != nil {
		res.Err = fmt.Errorf("failed to list local records: %w", err)
		return res
	}

	localByID := make(map[uuid.UUID]*domain.VideoRecord, len(locals))
	for i := range locals {
		localByID[locals[i].ID] = &locals[i]
	}

	failed := make(map[uuid.UUID]error)
	applied := make(map[uuid.UUID]PendingOp)
	remoteSeen := make(map[uuid.UUID]bool, len(items))

	for _, item := range items {
		if ctx.Err() != nil {
			res.Err = ctx.Err()
			return res
		}

		id, err := uuid.Parse(item.ID)
		if err != nil {
			log.Printf("[SyncService] Skipping remote document with invalid id %q", item.ID)
			continue
		}
		remoteSeen[id] = true

		// Идентификаторы с неразрешенным конфликтом не трогаем
		if blocked[id] {
			continue
		}

		local := localByID[id]
		op, hasOp := ops[id]

		// Запись с идущей передачей принадлежит оркестратору
		if local != nil && local.SyncStatus == domain.SyncStatusSyncing {
			continue
		}

		switch {
		case local == nil && hasOp && op.Type == OpDelete:
			// Локально удалено. Если удаленная сторона менялась позже,
			// это конфликт удаления против изменения
			if item.ModifiedAt.After(op.QueuedAt) {
				s.recordConflict(ctx, res, domain.Conflict{
					RecordID:       id,
					Type:           domain.ConflictDeleteUpdate,
					Remote:         item.Document,
					RemoteModified: item.ModifiedAt,
					DetectedAt:     time.Now().UTC(),
				}, nil)
				continue
			}
			if err := s.docs.Delete(ctx, domain.VideoRecordCollection, s.owner, item.ID); err != nil {
				failed[id] = err
				continue
			}
			s.deleteMedia(ctx, documentCloudKey(item.Document))
			applied[id] = op
			res.Deleted++
			s.publish(events.EventRecordDeleted, id, nil)

		case local == nil:
			// Новая удаленная запись: принимаем её в каталог
			rec, err := adoptRemote(nil, item.Document)
			if err != nil {
				failed[id] = fmt.Errorf("failed to adopt remote document: %w", err)
				continue
			}
			if err := s.catalog.Create(ctx, rec); err != nil {
				failed[id] = err
				continue
			}
			res.Pulled++
			s.publish(events.EventRecordCreated, id, nil)

		case item.ModifiedAt.After(local.LastModified) && (hasOp || local.SyncStatus == domain.SyncStatusConflict):
			// Обе стороны менялись: классифицируем конфликт. Статус
			// conflict без записи в карте — конфликт, потерянный при
			// перезапуске: фиксируем его заново
			ctype := domain.ConflictUpdateUpdate
			var conflictLocal *domain.VideoRecord
			if hasOp && op.Type == OpDelete {
				ctype = domain.ConflictDeleteUpdate
			} else {
				conflictLocal = local
			}
			s.recordConflict(ctx, res, domain.Conflict{
				RecordID:       id,
				Type:           ctype,
				Local:          conflictLocal,
				Remote:         item.Document,
				RemoteModified: item.ModifiedAt,
				DetectedAt:     time.Now().UTC(),
			}, local)

		case item.ModifiedAt.After(local.LastModified):
			// Удаленная сторона новее, локальных изменений нет: принимаем
			rec, err := adoptRemote(local, item.Document)
			if err != nil {
				failed[id] = fmt.Errorf("failed to adopt remote document: %w", err)
				continue
			}
			if err := s.catalog.Update(ctx, rec); err != nil {
				failed[id] = err
				continue
			}
			res.Pulled++
			s.publish(events.EventRecordUpdated, id, nil)

		case hasOp && op.Type == OpDelete:
			// Локальное удаление, удаленная сторона не менялась
			if err := s.docs.Delete(ctx, domain.VideoRecordCollection, s.owner, item.ID); err != nil {
				failed[id] = err
				continue
			}
			if local.CloudKey != nil {
				s.deleteMedia(ctx, *local.CloudKey)
			}
			if err := s.files.Delete(id); err != nil {
				log.Printf("[SyncService] Failed to delete local file for %s: %v", id, err)
			}
			if err := s.catalog.Delete(ctx, id); err != nil {
				failed[id] = err
				continue
			}
			applied[id] = op
			res.Deleted++
			s.publish(events.EventRecordDeleted, id, nil)

		case hasOp || local.SyncStatus == domain.SyncStatusNotSynced ||
			local.SyncStatus == domain.SyncStatusFailed || local.SyncStatus == domain.SyncStatusConflict:
			// Локальная сторона не хуже удаленной и требует отправки
			if err := s.pushRecord(ctx, local); err != nil {
				failed[id] = err
				continue
			}
			if hasOp {
				applied[id] = op
			}
			res.Pushed++
			s.publish(events.EventSyncStateChanged, id, string(local.SyncStatus))
		}
	}

	// Локальные записи, которых нет в удаленной коллекции
	for id, local := range localByID {
		if ctx.Err() != nil {
			res.Err = ctx.Err()
			return res
		}
		if remoteSeen[id] || blocked[id] {
			continue
		}
		if local.SyncStatus == domain.SyncStatusSyncing {
			continue
		}

		op, hasOp := ops[id]

		switch {
		case hasOp && op.Type == OpDelete:
			// Документа уже нет: завершаем удаление локально
			if local.CloudKey != nil {
				s.deleteMedia(ctx, *local.CloudKey)
			}
			if err := s.files.Delete(id); err != nil {
				log.Printf("[SyncService] Failed to delete local file for %s: %v", id, err)
			}
			if err := s.catalog.Delete(ctx, id); err != nil {
				failed[id] = err
				continue
			}
			applied[id] = op
			res.Deleted++
			s.publish(events.EventRecordDeleted, id, nil)

		case (hasOp || local.SyncStatus == domain.SyncStatusConflict) &&
			(local.HasCloud() || local.SyncStatus == domain.SyncStatusSynced):
			// Запись была синхронизирована, документ исчез, а у нас
			// есть локальное изменение: конфликт изменения против удаления
			s.recordConflict(ctx, res, domain.Conflict{
				RecordID:   id,
				Type:       domain.ConflictUpdateDelete,
				Local:      local,
				DetectedAt: time.Now().UTC(),
			}, local)

		case local.Orphaned():
			// Ни локальной, ни удаленной копии: логическое удаление
			if err := s.catalog.Delete(ctx, id); err != nil {
				failed[id] = err
				continue
			}
			res.Removed++
			s.publish(events.EventRecordDeleted, id, nil)

		case local.SyncStatus == domain.SyncStatusSynced:
			// Документ исчез без локально поставленного удаления.
			// Отсутствие не означает удаление: запись остается и будет
			// отправлена на следующем проходе
			local.SyncStatus = domain.SyncStatusNotSynced
			if err := s.catalog.Update(ctx, local); err != nil {
				failed[id] = err
				continue
			}
			s.publish(events.EventSyncStateChanged, id, string(local.SyncStatus))

		case hasOp || local.SyncStatus == domain.SyncStatusNotSynced ||
			local.SyncStatus == domain.SyncStatusFailed || local.SyncStatus == domain.SyncStatusConflict:
			if err := s.pushRecord(ctx, local); err != nil {
				failed[id] = err
				continue
			}
			if hasOp {
				applied[id] = op
			}
			res.Pushed++
			s.publish(events.EventSyncStateChanged, id, string(local.SyncStatus))
		}
	}

	// Применённые операции убираем из очереди, если их не заместили
	// более новыми за время прохода
	s.mu.Lock()
	for id, op := range applied {
		if current, ok := s.pending[id]; ok && current.QueuedAt.Equal(op.QueuedAt) {
			delete(s.pending, id)
		}
	}
	s.mu.Unlock()

	if len(failed) > 0 {
		res.Err = &domain.BatchError{Failed: failed}
	}

	return res
}

// recordConflict фиксирует конфликт: запись блокируется до явного решения
func (s *SyncService) recordConflict(ctx context.Context, res *SyncResult, c domain.Conflict, local *domain.VideoRecord) {
	s.mu.Lock()
	s.conflicts[c.RecordID] = c
	s.mu.Unlock()

	if local != nil && local.SyncStatus != domain.SyncStatusConflict {
		local.SyncStatus = domain.SyncStatusConflict
		if err := s.catalog.Update(ctx, local); err != nil {
			log.Printf("[SyncService] Failed to mark conflict on %s: %v", c.RecordID, err)
		}
	}

	res.Conflicts = append(res.Conflicts, c)
	log.Printf("[SyncService] Conflict detected for %s: %s", c.RecordID, c.Type)
	s.publish(events.EventConflictDetected, c.RecordID, string(c.Type))
}

// ResolveConflict применяет явное решение конфликта. Семантика useLocal
// зависит от типа: для deleteUpdate это "подтвердить удаление", для
// updateDelete — "восстановить удаленную сторону"
func (s *SyncService) ResolveConflict(ctx context.Context, recordID uuid.UUID, resolution domain.Resolution) error {
	s.mu.Lock()
	conflict, ok := s.conflicts[recordID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("no pending conflict for record %s", recordID)
	}

	if resolution.Choice == domain.ResolutionMerge && resolution.Merged == nil {
		return fmt.Errorf("merge resolution requires a merged record")
	}

	var err error
	switch conflict.Type {
	case domain.ConflictUpdateUpdate:
		err = s.resolveUpdateUpdate(ctx, conflict, resolution)
	case domain.ConflictDeleteUpdate:
		err = s.resolveDeleteUpdate(ctx, conflict, resolution)
	case domain.ConflictUpdateDelete:
		err = s.resolveUpdateDelete(ctx, conflict, resolution)
	default:
		err = fmt.Errorf("unknown conflict type %s", conflict.Type)
	}
	if err != nil {
		return fmt.Errorf("failed to resolve conflict for %s: %w", recordID, err)
	}

	s.mu.Lock()
	delete(s.conflicts, recordID)
	delete(s.pending, recordID)
	if len(s.conflicts) == 0 && !s.inFlight {
		s.state = EngineIdle
	}
	s.mu.Unlock()

	log.Printf("[SyncService] Conflict for %s resolved with %s", recordID, resolution.Choice)
	s.publish(events.EventSyncStateChanged, recordID, string(resolution.Choice))
	return nil
}

func (s *SyncService) resolveUpdateUpdate(ctx context.Context, c domain.Conflict, r domain.Resolution) error {
	switch r.Choice {
	case domain.ResolutionUseLocal:
		rec, err := s.catalog.GetByID(ctx, c.RecordID)
		if err != nil {
			return err
		}
		rec.Touch()
		return s.pushRecord(ctx, rec)

	case domain.ResolutionUseRemote:
		local, err := s.catalog.GetByID(ctx, c.RecordID)
		if err != nil {
			return err
		}
		rec, err := adoptRemote(local, c.Remote)
		if err != nil {
			return err
		}
		return s.catalog.Update(ctx, rec)

	case domain.ResolutionMerge:
		r.Merged.Touch()
		if err := s.pushRecord(ctx, r.Merged); err != nil {
			return err
		}
		return nil
	}
	return fmt.Errorf("unknown resolution choice %s", r.Choice)
}

func (s *SyncService) resolveDeleteUpdate(ctx context.Context, c domain.Conflict, r domain.Resolution) error {
	switch r.Choice {
	case domain.ResolutionUseLocal:
		// Подтверждаем локальное удаление
		if err := s.docs.Delete(ctx, domain.VideoRecordCollection, s.owner, c.RecordID.String()); err != nil {
			return err
		}
		s.deleteMedia(ctx, documentCloudKey(c.Remote))
		return nil

	case domain.ResolutionUseRemote:
		// Восстанавливаем запись из удаленного документа
		rec, err := adoptRemote(nil, c.Remote)
		if err != nil {
			return err
		}
		return s.catalog.Create(ctx, rec)

	case domain.ResolutionMerge:
		r.Merged.Touch()
		doc, err := r.Merged.ToDocument()
		if err != nil {
			return err
		}
		if _, err := s.docs.Put(ctx, domain.VideoRecordCollection, s.owner, doc); err != nil {
			return err
		}
		return s.catalog.Create(ctx, r.Merged)
	}
	return fmt.Errorf("unknown resolution choice %s", r.Choice)
}

func (s *SyncService) resolveUpdateDelete(ctx context.Context, c domain.Conflict, r domain.Resolution) error {
	switch r.Choice {
	case domain.ResolutionUseLocal:
		// Восстанавливаем удаленную сторону локальной версией
		rec, err := s.catalog.GetByID(ctx, c.RecordID)
		if err != nil {
			return err
		}
		rec.Touch()
		return s.pushRecord(ctx, rec)

	case domain.ResolutionUseRemote:
		// Принимаем удаление: убираем локальную запись и файлы
		if err := s.files.Delete(c.RecordID); err != nil {
			log.Printf("[SyncService] Failed to delete local file for %s: %v", c.RecordID, err)
		}
		if err := s.files.DeleteThumbnail(c.RecordID); err != nil {
			log.Printf("[SyncService] Failed to delete thumbnail for %s: %v", c.RecordID, err)
		}
		if err := s.catalog.Delete(ctx, c.RecordID); err != nil {
			return err
		}
		s.publish(events.EventRecordDeleted, c.RecordID, nil)
		return nil

	case domain.ResolutionMerge:
		r.Merged.Touch()
		if err := s.pushRecord(ctx, r.Merged); err != nil {
			return err
		}
		return nil
	}
	return fmt.Errorf("unknown resolution choice %s", r.Choice)
}

// pushRecord отправляет документ записи в удаленную коллекцию. Статус
// synced присваивается только при подтвержденной удаленной копии файла:
// иначе запись остается notSynced до завершения передачи
func (s *SyncService) pushRecord(ctx context.Context, rec *domain.VideoRecord) error {
	pushStatus := rec.SyncStatus
	if rec.SyncStatus == domain.SyncStatusConflict || rec.SyncStatus == domain.SyncStatusFailed {
		pushStatus = domain.SyncStatusNotSynced
	}
	rec.SyncStatus = pushStatus

	doc, err := rec.ToDocument()
	if err != nil {
		return err
	}

	if _, err := s.docs.Put(ctx, domain.VideoRecordCollection, s.owner, doc); err != nil {
		return fmt.Errorf("failed to push document: %w", err)
	}

	if rec.HasCloud() {
		rec.SyncStatus = domain.SyncStatusSynced
	} else {
		rec.SyncStatus = domain.SyncStatusNotSynced
	}

	return s.catalog.Update(ctx, rec)
}

// deleteMedia убирает объект носителя за удаленным документом. Неудача
// не проваливает операцию: осиротевший объект подберет следующая попытка
func (s *SyncService) deleteMedia(ctx context.Context, key string) {
	if s.media == nil || key == "" {
		return
	}
	if err := s.media.Delete(ctx, key); err != nil {
		log.Printf("[SyncService] Failed to delete media object %s: %v", key, err)
	}
}

func documentCloudKey(doc domain.Document) string {
	if s, ok := doc["cloud_key"].(string); ok {
		return s
	}
	return ""
}

func (s *SyncService) publish(t events.EventType, id uuid.UUID, payload interface{}) {
	if s.events == nil {
		return
	}
	s.events.Publish(events.Event{Type: t, RecordID: id, Payload: payload})
}

// adoptRemote строит локальную запись из удаленного документа. Поля,
// принадлежащие этому устройству (локальный файл, миниатюра), берутся
// из прежней локальной версии: удаленный документ описывает чужое
// устройство
func adoptRemote(local *domain.VideoRecord, doc domain.Document) (*domain.VideoRecord, error) {
	rec, err := domain.VideoRecordFromDocument(doc)
	if err != nil {
		return nil, err
	}

	if local != nil {
		rec.LocalState = local.LocalState
		rec.LocalPath = local.LocalPath
		rec.ThumbnailPath = local.ThumbnailPath
	} else {
		rec.LocalState = domain.LocalCopyUnknown
		rec.LocalPath = ""
		rec.ThumbnailPath = nil
	}

	if rec.HasCloud() {
		rec.SyncStatus = domain.SyncStatusSynced
	} else {
		rec.SyncStatus = domain.SyncStatusNotSynced
	}

	return rec, nil
}
