package cache

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowSnapshotStore хранилище, имитирующее медленную загрузку среза
type slowSnapshotStore struct {
	delay   time.Duration
	entries []PersistedEntry
	err     error
}

func (s *slowSnapshotStore) Load(ctx context.Context) ([]PersistedEntry, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.entries, s.err
}

func (s *slowSnapshotStore) Save(ctx context.Context, entries []PersistedEntry) error {
	s.entries = entries
	return nil
}

func stringDecoder(data []byte) (interface{}, error) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s, nil
}

// TestCache_RestoreFromSnapshot_EntriesAreStale проверяет что восстановленные записи
// помечаются Stale: первое чтение отдает значение среза и запускает ревалидацию
func TestCache_RestoreFromSnapshot_EntriesAreStale(t *testing.T) {
	c := New(time.Minute, time.Hour, nil)
	c.RegisterDecoder(KindMappings, stringDecoder)

	payload, err := json.Marshal("from-snapshot")
	require.NoError(t, err)

	store := &slowSnapshotStore{
		entries: []PersistedEntry{
			{Key: MappingsKey("specialty", ""), Payload: payload, FetchedAt: time.Now().Add(-time.Hour)},
		},
	}

	restored := c.RestoreFromSnapshot(context.Background(), store, time.Second)
	assert.Equal(t, 1, restored)

	var fetches int64
	fetched := make(chan struct{})
	val, err := c.Read(context.Background(), MappingsKey("specialty", ""), func(ctx context.Context) (interface{}, error) {
		atomic.AddInt64(&fetches, 1)
		close(fetched)
		return "revalidated", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "from-snapshot", val, "первое чтение отдает восстановленное значение")

	select {
	case <-fetched:
	case <-time.After(time.Second):
		t.Fatal("восстановленная запись должна запускать ревалидацию при чтении")
	}
}

// TestCache_RestoreFromSnapshot_TimeoutProceedsEmpty проверяет холодный старт:
// превышение дедлайна не ошибка, движок сразу работоспособен с пустым кэшем
func TestCache_RestoreFromSnapshot_TimeoutProceedsEmpty(t *testing.T) {
	c := New(time.Minute, time.Hour, nil)
	c.RegisterDecoder(KindMappings, stringDecoder)

	store := &slowSnapshotStore{delay: 5 * time.Second}

	start := time.Now()
	restored := c.RestoreFromSnapshot(context.Background(), store, 50*time.Millisecond)
	assert.Equal(t, 0, restored)
	assert.Less(t, time.Since(start), time.Second, "восстановление не должно блокировать старт")

	// Первое чтение любого ключа — обычная загрузка, не ошибка
	val, err := c.Read(context.Background(), MappingsKey("specialty", ""), func(ctx context.Context) (interface{}, error) {
		return "fetched", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fetched", val)
}

// TestCache_RestoreFromSnapshot_LoadError проверяет что ошибка загрузки среза
// деградирует в пустой кэш без отказа
func TestCache_RestoreFromSnapshot_LoadError(t *testing.T) {
	c := New(time.Minute, time.Hour, nil)
	store := &slowSnapshotStore{err: errors.New("corrupt snapshot")}

	restored := c.RestoreFromSnapshot(context.Background(), store, time.Second)
	assert.Equal(t, 0, restored)
}

// TestCache_RestoreFromSnapshot_UnknownKindSkipped проверяет что записи
// без зарегистрированного декодера пропускаются
func TestCache_RestoreFromSnapshot_UnknownKindSkipped(t *testing.T) {
	c := New(time.Minute, time.Hour, nil)
	c.RegisterDecoder(KindMappings, stringDecoder)

	payload, _ := json.Marshal("value")
	store := &slowSnapshotStore{
		entries: []PersistedEntry{
			{Key: "obsolete:specialty:", Payload: payload},
			{Key: MappingsKey("region", ""), Payload: payload},
		},
	}

	restored := c.RestoreFromSnapshot(context.Background(), store, time.Second)
	assert.Equal(t, 1, restored)
}

// TestCache_ExportRestore_RoundTrip проверяет цикл Export -> Save -> Load -> Restore
func TestCache_ExportRestore_RoundTrip(t *testing.T) {
	c := New(time.Minute, time.Hour, nil)

	_, err := c.Read(context.Background(), MappingsKey("specialty", ""), func(ctx context.Context) (interface{}, error) {
		return "payload-a", nil
	})
	require.NoError(t, err)

	exported := c.Export()
	require.Len(t, exported, 1)

	// Восстанавливаем во второй кэш через файловое хранилище
	path := filepath.Join(t.TempDir(), "cache_snapshot.json")
	fileStore := NewFileSnapshotStore(path)
	require.NoError(t, fileStore.Save(context.Background(), exported))

	c2 := New(time.Minute, time.Hour, nil)
	c2.RegisterDecoder(KindMappings, stringDecoder)
	restored := c2.RestoreFromSnapshot(context.Background(), fileStore, time.Second)
	assert.Equal(t, 1, restored)

	val, err := c2.Read(context.Background(), MappingsKey("specialty", ""), func(ctx context.Context) (interface{}, error) {
		return "payload-a", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "payload-a", val)
}

// TestFileSnapshotStore_MissingFile проверяет что отсутствующий файл — не ошибка
func TestFileSnapshotStore_MissingFile(t *testing.T) {
	store := NewFileSnapshotStore(filepath.Join(t.TempDir(), "missing.json"))
	entries, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, entries)
}
