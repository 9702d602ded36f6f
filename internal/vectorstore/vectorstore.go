// Package vectorstore implements the persistent, embedding-backed document
// collection behind semantic search: prompt, response, and plan are stored
// as three independently retrievable records per commit (the "split
// embedding" contract), backed by a single-file bbolt database.
package vectorstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.etcd.io/bbolt"

	"github.com/memovai/contextgit/internal/chunker"
	"github.com/memovai/contextgit/internal/embedding"
	"github.com/memovai/contextgit/internal/memerr"
)

var recordsBucket = []byte("records")

// Record is one persisted chunk: its text, embedding, and metadata.
type Record struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Embedding []float32         `json:"embedding"`
	Metadata  map[string]string `json:"metadata"`
}

// SearchResult is one hit from Search, ordered by ascending distance
// (smaller distance = more similar).
type SearchResult struct {
	ID       string
	Text     string
	Metadata map[string]string
	Distance float64
}

// Store is the persistent embedding index for one project.
type Store struct {
	db      *bbolt.DB
	chunker chunker.Chunker
	backend embedding.Backend
}

// Open opens (creating if absent) a bbolt-backed store at path.
func Open(path string, chunk chunker.Chunker, backend embedding.Backend) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, memerr.Wrap(memerr.Unknown, err, "open vector store at %s", path)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(recordsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, memerr.Wrap(memerr.Unknown, err, "initialize vector store bucket")
	}
	return &Store{db: db, chunker: chunk, backend: backend}, nil
}

// Close releases the underlying database file.
func (s *Store) Close() error { return s.db.Close() }

// Insert chunks text, embeds each chunk, and writes it under an id derived
// from docIDPrefix and the chunk index. Returns the ids written.
func (s *Store) Insert(text string, metadata map[string]string, docIDPrefix string) ([]string, error) {
	chunks := s.chunker.ChunkWithMetadata(text)
	ids := make([]string, 0, len(chunks))
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(recordsBucket)
		for _, c := range chunks {
			id := fmt.Sprintf("%s_%d", docIDPrefix, c.Index)
			vec, embErr := s.backend.Embed(c.Text)
			if embErr != nil {
				return embErr
			}
			md := cloneMetadata(metadata)
			md["chunk_index"] = strconv.Itoa(c.Index)
			md["total_chunks"] = strconv.Itoa(c.TotalCount)

			rec := Record{ID: id, Text: c.Text, Embedding: vec, Metadata: md}
			data, jsonErr := json.Marshal(rec)
			if jsonErr != nil {
				return memerr.Wrap(memerr.Unknown, jsonErr, "marshal record %s", id)
			}
			if putErr := b.Put([]byte(id), data); putErr != nil {
				return memerr.Wrap(memerr.Unknown, putErr, "store record %s", id)
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func cloneMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m)+2)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// InsertSplitted writes up to three independent records for one commit —
// prompt, response, and plan — each tagged metadata.role and keyed by
// "<commitHash>_<role>". Empty roles are skipped entirely.
func (s *Store) InsertSplitted(commitHash, prompt, response, plan string, baseMetadata map[string]string) ([]string, error) {
	roles := []struct{ role, text string }{
		{"prompt", prompt},
		{"response", response},
		{"plan", plan},
	}
	var all []string
	for _, r := range roles {
		if strings.TrimSpace(r.text) == "" {
			continue
		}
		md := cloneMetadata(baseMetadata)
		md["role"] = r.role
		md["commit_hash"] = commitHash
		ids, err := s.Insert(r.text, md, commitHash+"_"+r.role)
		if err != nil {
			return all, err
		}
		all = append(all, ids...)
	}
	return all, nil
}

// Search embeds query and returns the n closest records matching where
// (every key/value in where must match the record's metadata exactly),
// ordered by ascending distance.
func (s *Store) Search(query string, nResults int, where map[string]string) ([]SearchResult, error) {
	queryVec, err := s.backend.Embed(query)
	if err != nil {
		return nil, err
	}

	var results []SearchResult
	err = s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(recordsBucket)
		return b.ForEach(func(_, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return memerr.Wrap(memerr.Unknown, err, "decode record")
			}
			if !matches(rec.Metadata, where) {
				return nil
			}
			sim := embedding.CosineSimilarity(queryVec, rec.Embedding)
			results = append(results, SearchResult{
				ID:       rec.ID,
				Text:     rec.Text,
				Metadata: rec.Metadata,
				Distance: 1 - sim,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if nResults > 0 && len(results) > nResults {
		results = results[:nResults]
	}
	return results, nil
}

func matches(metadata, where map[string]string) bool {
	for k, v := range where {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

// GetByCommit returns every record tagged with commitHash.
func (s *Store) GetByCommit(commitHash string) ([]SearchResult, error) {
	var out []SearchResult
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(recordsBucket)
		return b.ForEach(func(_, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return memerr.Wrap(memerr.Unknown, err, "decode record")
			}
			if rec.Metadata["commit_hash"] == commitHash {
				out = append(out, SearchResult{ID: rec.ID, Text: rec.Text, Metadata: rec.Metadata})
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteByCommit removes every record tagged with commitHash and returns
// how many were removed.
func (s *Store) DeleteByCommit(commitHash string) (int, error) {
	var toDelete [][]byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(recordsBucket)
		return b.ForEach(func(k, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return memerr.Wrap(memerr.Unknown, err, "decode record")
			}
			if rec.Metadata["commit_hash"] == commitHash {
				toDelete = append(toDelete, append([]byte(nil), k...))
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(recordsBucket)
		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, memerr.Wrap(memerr.Unknown, err, "delete records for commit %s", commitHash)
	}
	return len(toDelete), nil
}

// FindCommitsByFiles scans metadata.files (a comma-joined string, since the
// filter language above has no array-contains operator) for any of paths
// and returns the distinct commit hashes that touched them.
func (s *Store) FindCommitsByFiles(paths []string) ([]string, error) {
	seen := map[string]bool{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(recordsBucket)
		return b.ForEach(func(_, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return memerr.Wrap(memerr.Unknown, err, "decode record")
			}
			files := strings.Split(rec.Metadata["files"], ",")
			for _, f := range files {
				for _, p := range paths {
					if f == p {
						seen[rec.Metadata["commit_hash"]] = true
					}
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

// GetCollectionInfo reports the number of records currently stored.
func (s *Store) GetCollectionInfo() (count int, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket(recordsBucket).Stats().KeyN
		return nil
	})
	return count, err
}

// Reset drops and recreates the records collection.
func (s *Store) Reset() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(recordsBucket); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket(recordsBucket)
		return err
	})
}
