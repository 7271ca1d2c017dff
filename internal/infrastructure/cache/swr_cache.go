package cache

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// State состояние записи кэша
type State string

const (
	StateEmpty    State = "empty"    // Значения нет, чтение блокируется до первой загрузки
	StateFetching State = "fetching" // Загрузка в полете
	StateFresh    State = "fresh"    // Значение свежее, отдается немедленно
	StateStale    State = "stale"    // Значение устарело, отдается немедленно с фоновой ревалидацией
)

// FetchFunc загружает значение из нижележащего источника
type FetchFunc func(ctx context.Context) (interface{}, error)

// flight одна загрузка в полете. Конкурентные читатели одного ключа
// ждут общий flight вместо дублирования работы (single-flight)
type flight struct {
	done chan struct{}
	val  interface{}
	err  error
	gen  uint64 // Поколение записи на момент запуска
}

// entry запись кэша для одного ключа
type entry struct {
	payload    interface{}
	hasValue   bool
	fetchedAt  time.Time
	freshUntil time.Time // Дедлайн свежести: после него чтение запускает ревалидацию
	evictAt    time.Time // Дедлайн вытеснения: после него значение не отдается никогда
	gen        uint64    // Поколение: инкремент при каждой инвалидации
	flight     *flight
}

// Cache кэш с ключами, окнами свежести и семантикой stale-while-revalidate.
// Инвалидация, пришедшая во время загрузки, отбрасывает результат этой загрузки
// через счетчик поколений — устаревшая запись никогда не перекрывает новую
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	freshTTL time.Duration
	evictTTL time.Duration
	decoders map[string]DecodeFunc
	logger   *slog.Logger
	now      func() time.Time

	hits        uint64
	misses      uint64
	staleServed uint64
}

// DecodeFunc восстанавливает типизированное значение из JSON среза
type DecodeFunc func(data []byte) (interface{}, error)

// New создает новый кэш
func New(freshTTL, evictTTL time.Duration, logger *slog.Logger) *Cache {
	if freshTTL <= 0 {
		freshTTL = 30 * time.Second
	}
	if evictTTL <= freshTTL {
		evictTTL = freshTTL * 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		entries:  make(map[string]*entry),
		freshTTL: freshTTL,
		evictTTL: evictTTL,
		decoders: make(map[string]DecodeFunc),
		logger:   logger,
		now:      time.Now,
	}
}

// RegisterDecoder регистрирует декодер для вида ключа (используется при восстановлении срезов)
func (c *Cache) RegisterDecoder(kind string, fn DecodeFunc) {
	c.mu.Lock()
	c.decoders[kind] = fn
	c.mu.Unlock()
}

// Read возвращает значение для ключа.
// Fresh — немедленно; Stale — немедленно плюс фоновая ревалидация;
// Empty — блокируется до завершения первой загрузки.
// Конкурентные читатели пустого ключа порождают ровно одну загрузку
func (c *Cache) Read(ctx context.Context, key string, fetch FetchFunc) (interface{}, error) {
	for {
		c.mu.Lock()
		e := c.ensureEntry(key)
		now := c.now()

		if e.hasValue && now.Before(e.evictAt) {
			if now.Before(e.freshUntil) {
				payload := e.payload
				c.hits++
				c.mu.Unlock()
				return payload, nil
			}

			// Stale: отдаем последнее значение сразу, ревалидация — в фоне
			if e.flight == nil {
				c.startFetch(key, e, fetch)
			}
			payload := e.payload
			c.staleServed++
			c.mu.Unlock()
			return payload, nil
		}

		// Значение вытеснено по дедлайну — не отдается ни при каких условиях
		if e.hasValue {
			e.hasValue = false
			e.payload = nil
		}

		if e.flight == nil {
			c.startFetch(key, e, fetch)
		}
		fl := e.flight
		c.misses++
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-fl.done:
		}

		c.mu.Lock()
		cur := c.entries[key]
		discarded := cur == nil || fl.gen != cur.gen
		c.mu.Unlock()

		if discarded {
			// Инвалидация пришла во время загрузки: результат отброшен,
			// перезапускаем чтение — следующая загрузка увидит новое состояние
			continue
		}

		if fl.err != nil {
			return nil, fl.err
		}
		return fl.val, nil
	}
}

// Prefetch опционально прогревает ключ тем же путем что и Read.
// Ошибки проглатываются — прогрев строго best-effort
func (c *Cache) Prefetch(key string, fetch FetchFunc) {
	c.mu.Lock()
	e := c.ensureEntry(key)
	now := c.now()

	fresh := e.hasValue && now.Before(e.evictAt) && now.Before(e.freshUntil)
	if !fresh && e.flight == nil {
		c.startFetch(key, e, fetch)
	}
	c.mu.Unlock()
}

// Invalidate помечает ключ пустым: следующее чтение обязано выполнить
// новую загрузку, устаревшее значение больше не отдается.
// Загрузка в полете для этого ключа будет отброшена по несовпадению поколения
func (c *Cache) Invalidate(keys ...string) {
	c.mu.Lock()
	for _, key := range keys {
		if e, ok := c.entries[key]; ok {
			e.gen++
			e.hasValue = false
			e.payload = nil
		}
	}
	c.mu.Unlock()
}

// InvalidatePrefix инвалидирует все ключи с данным префиксом
func (c *Cache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	for key, e := range c.entries {
		if strings.HasPrefix(key, prefix) {
			e.gen++
			e.hasValue = false
			e.payload = nil
		}
	}
	c.mu.Unlock()
}

// ensureEntry возвращает запись по ключу, создавая пустую при необходимости.
// Вызывается под мьютексом
func (c *Cache) ensureEntry(key string) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	return e
}

// startFetch запускает загрузку для ключа. Вызывается под мьютексом
func (c *Cache) startFetch(key string, e *entry, fetch FetchFunc) {
	fl := &flight{
		done: make(chan struct{}),
		gen:  e.gen,
	}
	e.flight = fl

	go func() {
		val, err := fetch(context.Background())

		c.mu.Lock()
		cur := c.entries[key]
		if cur != nil && cur.flight == fl {
			cur.flight = nil
			if fl.gen == cur.gen && err == nil {
				now := c.now()
				cur.payload = val
				cur.hasValue = true
				cur.fetchedAt = now
				cur.freshUntil = now.Add(c.freshTTL)
				cur.evictAt = now.Add(c.evictTTL)
			} else if fl.gen != cur.gen {
				c.logger.Debug("результат загрузки отброшен после инвалидации", "key", key)
			}
		}
		if err != nil {
			c.logger.Warn("загрузка значения кэша завершилась ошибкой", "key", key, "error", err)
		}
		fl.val = val
		fl.err = err
		close(fl.done)
		c.mu.Unlock()
	}()
}

// stateOf вычисляет состояние записи. Вызывается под мьютексом
func (c *Cache) stateOf(e *entry, now time.Time) State {
	if !e.hasValue || !now.Before(e.evictAt) {
		if e.flight != nil {
			return StateFetching
		}
		return StateEmpty
	}
	if now.Before(e.freshUntil) {
		return StateFresh
	}
	return StateStale
}
