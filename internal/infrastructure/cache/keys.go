package cache

import (
	"fmt"
)

// Виды кэшируемых списков. Ключ всегда строится через buildKey —
// путь чтения, prefetch и инвалидация обязаны использовать одни и те же функции,
// независимое дублирование формата ключа запрещено
const (
	KindMappings = "mappings"
	KindUnmapped = "unmapped"
	KindLearned  = "learned"
)

// buildKey единственная точка построения ключа кэша
func buildKey(kind, entityType, scope string) string {
	return fmt.Sprintf("%s:%s:%s", kind, entityType, scope)
}

// MappingsKey ключ списка канонических маппингов
func MappingsKey(entityType, scope string) string {
	return buildKey(KindMappings, entityType, scope)
}

// UnmappedKey ключ списка неразрешенных терминов
func UnmappedKey(entityType, scope string) string {
	return buildKey(KindUnmapped, entityType, scope)
}

// LearnedKey ключ списка истории решений
func LearnedKey(entityType, scope string) string {
	return buildKey(KindLearned, entityType, scope)
}

// ScopeKeys все ключи, затрагиваемые мутацией в (entityType, scope).
// Инвалидация после мутации обязана проходить ровно по этому набору
func ScopeKeys(entityType, scope string) []string {
	return []string{
		MappingsKey(entityType, scope),
		UnmappedKey(entityType, scope),
		LearnedKey(entityType, scope),
	}
}

// KindOfKey возвращает вид списка по ключу (часть до первого двоеточия).
// Используется при восстановлении срезов для выбора декодера
func KindOfKey(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i]
		}
	}
	return key
}
