package storage

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// SaveEmbedding stores the vector for an article, replacing any previous one.
// Embeddings live in their own table so a missing vector never blocks reads
// of the article row itself.
func (s *Store) SaveEmbedding(articleID string, vector []float32) error {
	if len(vector) == 0 {
		return fmt.Errorf("refusing to store empty embedding for %s", articleID)
	}
	_, err := s.db.Exec(`
		INSERT INTO article_embeddings (article_id, embedding, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(article_id) DO UPDATE SET embedding = excluded.embedding, created_at = excluded.created_at`,
		articleID, encodeFloat32s(vector), time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetEmbedding returns the stored vector for an article, or ErrNotFound.
func (s *Store) GetEmbedding(articleID string) ([]float32, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT embedding FROM article_embeddings WHERE article_id = ?`, articleID).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeFloat32s(blob)
}

// encodeFloat32s serializes a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32s deserializes little-endian bytes into a new float32 slice.
// A length that is not a multiple of 4 indicates data corruption.
func decodeFloat32s(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
