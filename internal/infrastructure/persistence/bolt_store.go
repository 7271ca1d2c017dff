package persistence

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Имена bucket'ов BoltStore
var (
	bucketMappings    = []byte("mappings")     // id -> JSON CanonicalMapping
	bucketSourceIndex = []byte("source_index") // композитный ключ тройки -> mapping id
	bucketLearned     = []byte("learned")      // композитный ключ тройки -> JSON LearnedMapping
	bucketSurveys     = []byte("surveys")      // id -> JSON Survey
	bucketRows        = []byte("rows")         // survey id -> JSON []Row
)

// BoltStore обертка над bbolt. Встраиваемая альтернатива SQLite,
// полезна когда cgo недоступен
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore открывает файл БД и создает bucket'ы
func NewBoltStore(dbPath string) (*BoltStore, error) {
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{bucketMappings, bucketSourceIndex, bucketLearned, bucketSurveys, bucketRows}
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// tripleKey строит ключ индекса троек. Термин нормализуется по регистру,
// источник хранится как есть
func tripleKey(entityType, scope, rawTerm, surveySource string) []byte {
	return []byte(strings.Join([]string{
		entityType, scope, strings.ToLower(rawTerm), surveySource,
	}, "\x00"))
}

// tripleKeyPrefix префикс ключей индекса для типа сущности и scope
func tripleKeyPrefix(entityType, scope string) []byte {
	return []byte(entityType + "\x00" + scope + "\x00")
}

// Ping проверяет доступность хранилища
func (s *BoltStore) Ping() error {
	return s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketMappings) == nil {
			return fmt.Errorf("bucket %s missing", bucketMappings)
		}
		return nil
	})
}

// Close закрывает файл БД
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// encode сериализует значение в JSON для хранения
func encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}
