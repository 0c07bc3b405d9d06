// Package semantic provides the in-memory tf-idf vector index over
// ingested document text and answers cosine-similarity queries.
package semantic

import (
	"fmt"
	"sort"
	"sync"
)

// Entry pairs a durably-assigned document id with its text, used to
// rehydrate the index from storage at startup.
type Entry struct {
	ID   int64
	Text string
}

// Hit is a single search result.
type Hit struct {
	DocID int64
	Score float64
}

// Index maintains a frequency-weighted vector representation of all
// active document texts. The vocabulary and idf weights are recomputed
// from the entire live corpus on every mutation, so similarity scores
// for a fixed query/document pair can shift when unrelated documents are
// inserted or removed; that is documented behavior, not a defect.
//
// All operations, including reads, take the same exclusive lock: rebuilds
// replace the whole model, so even Search must not interleave with one.
type Index struct {
	mu     sync.Mutex
	ids    []int64  // position i corresponds to model row i
	texts  []string // live corpus, same order as ids
	nextID int64
	model  *tfidfModel
}

// NewIndex returns an empty index. Document ids start at 0 unless the
// index is rehydrated with ids from durable storage first.
func NewIndex() *Index {
	return &Index{model: buildModel(nil)}
}

// Add validates text, appends it to the corpus, assigns the next
// document id, and rebuilds the model. Returns ErrInvalidInput without
// touching any state when the text has no indexable terms.
func (x *Index) Add(text string) (int64, error) {
	if len(Tokenize(text)) == 0 {
		return 0, ErrInvalidInput
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	id := x.nextID
	x.nextID++
	x.ids = append(x.ids, id)
	x.texts = append(x.texts, text)
	x.rebuildLocked()
	return id, nil
}

// AddBatch validates every text before appending any, then appends all
// of them and rebuilds once. Rebuilding is O(total corpus size), so
// batching amortizes that cost across many insertions.
func (x *Index) AddBatch(texts []string) ([]int64, error) {
	for i, text := range texts {
		if len(Tokenize(text)) == 0 {
			return nil, fmt.Errorf("text %d: %w", i, ErrInvalidInput)
		}
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	ids := make([]int64, len(texts))
	for i, text := range texts {
		ids[i] = x.nextID
		x.nextID++
		x.ids = append(x.ids, ids[i])
		x.texts = append(x.texts, text)
	}
	x.rebuildLocked()
	return ids, nil
}

// AddWithIDs replays durably-stored documents into the index, adopting
// their ids verbatim. The internal counter advances past the highest
// adopted id so later Add calls can never collide with a stored id.
// Validation and the duplicate check run before any mutation.
func (x *Index) AddWithIDs(entries []Entry) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	seen := make(map[int64]struct{}, len(x.ids))
	for _, id := range x.ids {
		seen[id] = struct{}{}
	}
	for _, e := range entries {
		if len(Tokenize(e.Text)) == 0 {
			return fmt.Errorf("document %d: %w", e.ID, ErrInvalidInput)
		}
		if _, dup := seen[e.ID]; dup {
			return fmt.Errorf("document %d: %w", e.ID, ErrDuplicateID)
		}
		seen[e.ID] = struct{}{}
	}
	for _, e := range entries {
		x.ids = append(x.ids, e.ID)
		x.texts = append(x.texts, e.Text)
		if e.ID >= x.nextID {
			x.nextID = e.ID + 1
		}
	}
	x.rebuildLocked()
	return nil
}

// Remove deletes the document and rebuilds the model. Returns false as a
// defined no-op when the id is not present, so idempotent replay during
// rehydration stays simple.
func (x *Index) Remove(id int64) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	pos := -1
	for i, existing := range x.ids {
		if existing == id {
			pos = i
			break
		}
	}
	if pos < 0 {
		return false
	}
	x.ids = append(x.ids[:pos], x.ids[pos+1:]...)
	x.texts = append(x.texts[:pos], x.texts[pos+1:]...)
	x.rebuildLocked()
	return true
}

// Search vectorizes query against the current vocabulary, scores every
// active document by cosine similarity, optionally restricts results to
// allowedIDs, and returns the topK hits sorted by descending score with
// ties broken by ascending document id. An empty corpus returns an empty
// list; a query sharing no vocabulary with the corpus scores 0 against
// every document, which is not an error.
func (x *Index) Search(query string, topK int, allowedIDs []int64) ([]Hit, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if len(x.ids) != len(x.model.rows) {
		return nil, fmt.Errorf("%w: %d ids, %d rows", ErrStateInconsistency, len(x.ids), len(x.model.rows))
	}
	if len(x.ids) == 0 || topK <= 0 {
		return []Hit{}, nil
	}

	var allowed map[int64]struct{}
	if allowedIDs != nil {
		allowed = make(map[int64]struct{}, len(allowedIDs))
		for _, id := range allowedIDs {
			allowed[id] = struct{}{}
		}
	}

	qvec := x.model.vectorize(query)
	hits := make([]Hit, 0, len(x.ids))
	for i, id := range x.ids {
		if allowed != nil {
			if _, ok := allowed[id]; !ok {
				continue
			}
		}
		hits = append(hits, Hit{DocID: id, Score: dot(qvec, x.model.rows[i])})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocID < hits[j].DocID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Size returns the number of active documents.
func (x *Index) Size() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.ids)
}

// rebuildLocked recomputes the model from the live corpus. The new model
// is fully constructed before the swap, so a failure during construction
// (a panic from corrupted state) leaves the previous model intact.
func (x *Index) rebuildLocked() {
	x.model = buildModel(x.texts)
}
