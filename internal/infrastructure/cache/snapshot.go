package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// PersistedEntry сериализованная запись кэша для среза
type PersistedEntry struct {
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// SnapshotStore хранилище срезов кэша (используется только холодным стартом и остановкой)
type SnapshotStore interface {
	Load(ctx context.Context) ([]PersistedEntry, error)
	Save(ctx context.Context, entries []PersistedEntry) error
}

// Export сериализует текущие значения кэша в срез.
// Записи без значения и несериализуемые значения пропускаются
func (c *Cache) Export() []PersistedEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]PersistedEntry, 0, len(c.entries))
	for key, e := range c.entries {
		if !e.hasValue {
			continue
		}
		data, err := json.Marshal(e.payload)
		if err != nil {
			c.logger.Warn("запись кэша не сериализуется, пропущена", "key", key, "error", err)
			continue
		}
		out = append(out, PersistedEntry{
			Key:       key,
			Payload:   data,
			FetchedAt: e.fetchedAt,
		})
	}
	return out
}

// RestoreFromSnapshot восстанавливает записи из среза в пределах дедлайна.
// Восстановленные записи всегда помечаются Stale, никогда Fresh: первое же чтение
// запустит ревалидацию, поэтому срез, снятый до пропущенной мутации, не зафиксирует
// устаревшее состояние. Превышение дедлайна или ошибка загрузки не считаются
// отказом — кэш просто стартует пустым
func (c *Cache) RestoreFromSnapshot(ctx context.Context, store SnapshotStore, timeout time.Duration) int {
	if store == nil {
		return 0
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type loadResult struct {
		entries []PersistedEntry
		err     error
	}
	resCh := make(chan loadResult, 1)
	go func() {
		entries, err := store.Load(ctx)
		resCh <- loadResult{entries: entries, err: err}
	}()

	var entries []PersistedEntry
	select {
	case <-ctx.Done():
		c.logger.Warn("восстановление среза кэша не уложилось в дедлайн, старт с пустым кэшем",
			"timeout", timeout)
		return 0
	case res := <-resCh:
		if res.err != nil {
			c.logger.Warn("срез кэша не загружен, старт с пустым кэшем", "error", res.err)
			return 0
		}
		entries = res.entries
	}

	restored := 0
	now := c.now()

	c.mu.Lock()
	for _, pe := range entries {
		decoder, ok := c.decoders[KindOfKey(pe.Key)]
		if !ok {
			continue
		}
		val, err := decoder(pe.Payload)
		if err != nil {
			c.logger.Warn("запись среза не декодируется, пропущена", "key", pe.Key, "error", err)
			continue
		}
		e := c.ensureEntry(pe.Key)
		if e.hasValue || e.flight != nil {
			continue
		}
		e.payload = val
		e.hasValue = true
		e.fetchedAt = pe.FetchedAt
		// Свежесть в прошлом: запись сразу Stale, чтение вызовет ревалидацию
		e.freshUntil = now
		e.evictAt = now.Add(c.evictTTL)
		restored++
	}
	c.mu.Unlock()

	c.logger.Info("срез кэша восстановлен", "entries", restored)
	return restored
}

// FileSnapshotStore файловое хранилище срезов (JSON)
type FileSnapshotStore struct {
	path string
}

// NewFileSnapshotStore создает файловое хранилище срезов
func NewFileSnapshotStore(path string) *FileSnapshotStore {
	return &FileSnapshotStore{path: path}
}

// Load читает срез из файла. Отсутствующий файл — не ошибка, среза просто нет
func (fs *FileSnapshotStore) Load(ctx context.Context) ([]PersistedEntry, error) {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var entries []PersistedEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return entries, nil
}

// Save атомарно пишет срез в файл (через временный файл и rename)
func (fs *FileSnapshotStore) Save(ctx context.Context, entries []PersistedEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if dir := filepath.Dir(fs.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}
