// Package pending implements the in-memory queue of unsynced commit
// metadata awaiting embedding. It is private to a process: there is no
// cross-process sharing, and a crash between commit and sync loses
// searchability (but never history — the commit itself is already durable).
package pending

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/memovai/contextgit/internal/vectorstore"
)

var log = logrus.WithField("pkg", "pending")

// Entry is one unsynced commit's metadata, matching the data model's
// pending-write-entry shape.
type Entry struct {
	OperationType string
	CommitHash    string
	ParentHash    string
	Prompt        string
	Response      string
	AgentPlan     string
	ByUser        bool
	Files         []string
	Timestamp     time.Time
}

// Queue is the live, in-memory pending-writes buffer attached to one engine.
type Queue struct {
	entries []Entry
}

// New returns an empty queue.
func New() *Queue { return &Queue{} }

// Enqueue appends one entry.
func (q *Queue) Enqueue(e Entry) {
	q.entries = append(q.entries, e)
}

// Count returns the number of entries currently queued.
func (q *Queue) Count() int { return len(q.entries) }

// Peek returns a copy of the queued entries without clearing them.
func (q *Queue) Peek() []Entry {
	out := make([]Entry, len(q.entries))
	copy(out, q.entries)
	return out
}

// Drain pushes every entry into store.InsertSplitted, accumulating
// successful/failed counters. Individual failures are logged, not
// propagated, and the queue is cleared regardless of per-entry outcome —
// it is not retried automatically.
func (q *Queue) Drain(store *vectorstore.Store) (successful, failed int) {
	for _, e := range q.entries {
		metadata := map[string]string{
			"operation_type": e.OperationType,
			"source":         sourceOf(e.ByUser),
			"files":          joinFiles(e.Files),
			"commit_hash":    e.CommitHash,
			"parent_hash":    e.ParentHash,
			"timestamp":      e.Timestamp.Format(time.RFC3339),
		}
		ids, err := store.InsertSplitted(e.CommitHash, e.Prompt, e.Response, e.AgentPlan, metadata)
		if err != nil {
			log.WithError(err).WithField("commit", e.CommitHash).Warn("failed to sync pending write")
			failed++
			continue
		}
		successful += len(ids)
	}
	q.entries = nil
	return successful, failed
}

func sourceOf(byUser bool) string {
	if byUser {
		return "user"
	}
	return "ai"
}

func joinFiles(files []string) string {
	out := ""
	for i, f := range files {
		if i > 0 {
			out += ","
		}
		out += f
	}
	return out
}
