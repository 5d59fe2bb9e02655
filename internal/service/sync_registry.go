package service

import (
	"context"
	"sync"
)

// SyncRegistry выдает движок синхронизации по владельцу. Движок создается
// лениво при первом обращении и сразу получает периодический триггер,
// привязанный к жизненному циклу процесса
type SyncRegistry struct {
	mu      sync.Mutex
	engines map[string]*SyncService
	factory func(owner string) *SyncService
	baseCtx context.Context
}

func NewSyncRegistry(baseCtx context.Context, factory func(owner string) *SyncService) *SyncRegistry {
	return &SyncRegistry{
		engines: make(map[string]*SyncService),
		factory: factory,
		baseCtx: baseCtx,
	}
}

// ForOwner возвращает движок владельца, создавая его при необходимости
func (r *SyncRegistry) ForOwner(owner string) *SyncService {
	r.mu.Lock()
	defer r.mu.Unlock()

	if engine, ok := r.engines[owner]; ok {
		return engine
	}

	engine := r.factory(owner)
	engine.Start(r.baseCtx)
	r.engines[owner] = engine
	return engine
}
