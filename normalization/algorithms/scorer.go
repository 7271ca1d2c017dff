package algorithms

import (
	"sync"
)

// Scorer кэшированная версия гибридного алгоритма схожести
// Чистая функция от пары строк: детерминирована, коммутативна,
// возвращает значение в диапазоне [0,1]. Пустая строка даёт 0 против чего угодно
type Scorer struct {
	cache    map[string]float64
	cacheMu  sync.RWMutex
	weights  *SimilarityWeights
	maxCache int // Максимальный размер кэша
}

// NewScorer создает новый кэшированный скорер
func NewScorer(weights *SimilarityWeights, maxCache int) *Scorer {
	if weights == nil {
		weights = DefaultSimilarityWeights()
	}
	if maxCache <= 0 {
		maxCache = 10000 // По умолчанию 10000 записей
	}

	return &Scorer{
		cache:    make(map[string]float64),
		weights:  weights,
		maxCache: maxCache,
	}
}

// Score вычисляет схожесть двух терминов с кэшированием
func (sc *Scorer) Score(s1, s2 string) float64 {
	n1 := NormalizeTerm(s1)
	n2 := NormalizeTerm(s2)

	// Пустые термины не сравниваются ни с чем, включая друг друга
	if n1 == "" || n2 == "" {
		return 0.0
	}

	if n1 == n2 {
		return 1.0
	}

	// Ключ кэша симметричен — порядок аргументов не влияет на результат
	cacheKey := scoreCacheKey(n1, n2)

	sc.cacheMu.RLock()
	cached, ok := sc.cache[cacheKey]
	weights := sc.weights
	sc.cacheMu.RUnlock()
	if ok {
		return cached
	}

	similarity := HybridSimilarity(n1, n2, weights)

	sc.cacheMu.Lock()
	// Смена весов во время вычисления делает результат недействительным —
	// в кэш он не попадает
	if sc.weights == weights {
		if len(sc.cache) >= sc.maxCache {
			// Очищаем часть кэша (удаляем 20% записей)
			sc.evict(sc.maxCache / 5)
		}
		sc.cache[cacheKey] = similarity
	}
	sc.cacheMu.Unlock()

	return similarity
}

// scoreCacheKey создает симметричный ключ кэша
func scoreCacheKey(s1, s2 string) string {
	if s1 > s2 {
		s1, s2 = s2, s1
	}
	return s1 + "|" + s2
}

// evict удаляет часть записей кэша
func (sc *Scorer) evict(count int) {
	removed := 0
	for key := range sc.cache {
		if removed >= count {
			break
		}
		delete(sc.cache, key)
		removed++
	}
}

// ClearCache очищает весь кэш
func (sc *Scorer) ClearCache() {
	sc.cacheMu.Lock()
	sc.cache = make(map[string]float64)
	sc.cacheMu.Unlock()
}

// GetCacheSize возвращает текущий размер кэша
func (sc *Scorer) GetCacheSize() int {
	sc.cacheMu.RLock()
	defer sc.cacheMu.RUnlock()
	return len(sc.cache)
}

// GetWeights возвращает текущие веса
func (sc *Scorer) GetWeights() *SimilarityWeights {
	sc.cacheMu.RLock()
	defer sc.cacheMu.RUnlock()
	return sc.weights
}

// SetWeights устанавливает новые веса
func (sc *Scorer) SetWeights(weights *SimilarityWeights) {
	sc.cacheMu.Lock()
	sc.weights = weights
	// Кэш недействителен при изменении весов
	sc.cache = make(map[string]float64)
	sc.cacheMu.Unlock()
}
