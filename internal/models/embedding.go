package models

import "time"

// EmbeddingRecord is one cached embedding vector, keyed by
// "<model>:<16-hex-char sha256 prefix of the text>". Records are immutable
// once written and never expire; the store only ever adds entries.
type EmbeddingRecord struct {
	Key       string    `badgerhold:"key"`
	Model     string    `badgerholdIndex:"Model"`
	Vector    []float32
	CreatedAt time.Time
}
