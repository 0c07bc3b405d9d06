package semantic

import (
	"errors"
	"sync"
	"testing"
)

func TestIndex_AddAssignsSequentialIDs(t *testing.T) {
	idx := NewIndex()
	for want := int64(0); want < 3; want++ {
		id, err := idx.Add("some document text")
		if err != nil {
			t.Fatal(err)
		}
		if id != want {
			t.Errorf("id: got %d, want %d", id, want)
		}
	}
	if idx.Size() != 3 {
		t.Errorf("Size=%d, want 3", idx.Size())
	}
}

func TestIndex_AddRejectsEmptyText(t *testing.T) {
	idx := NewIndex()
	if _, err := idx.Add("hello world"); err != nil {
		t.Fatal(err)
	}
	before, err := idx.Search("hello", 10, nil)
	if err != nil {
		t.Fatal(err)
	}

	for _, text := range []string{"", "   \t\n", "the and of", "!!!"} {
		if _, err := idx.Add(text); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Add(%q): got %v, want ErrInvalidInput", text, err)
		}
	}

	// State is unchanged by the rejected adds.
	if idx.Size() != 1 {
		t.Errorf("Size=%d, want 1", idx.Size())
	}
	after, err := idx.Search("hello", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != len(before) || after[0].DocID != before[0].DocID || after[0].Score != before[0].Score {
		t.Errorf("search changed after rejected add: before=%v after=%v", before, after)
	}
}

func TestIndex_AddBatch(t *testing.T) {
	idx := NewIndex()
	ids, err := idx.AddBatch([]string{"first document", "second document", "third document"})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 3 {
		t.Fatalf("got %d ids, want 3", len(ids))
	}
	for i, id := range ids {
		if id != int64(i) {
			t.Errorf("ids[%d]=%d", i, id)
		}
	}
}

func TestIndex_AddBatchRejectsWithoutPartialAppend(t *testing.T) {
	idx := NewIndex()
	if _, err := idx.AddBatch([]string{"valid document", "   "}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("got %v, want ErrInvalidInput", err)
	}
	if idx.Size() != 0 {
		t.Errorf("Size=%d, want 0 (no partial append)", idx.Size())
	}
}

func TestIndex_RemoveUnknownIsNoOp(t *testing.T) {
	idx := NewIndex()
	id, _ := idx.Add("only document here")
	if idx.Remove(999) {
		t.Error("Remove(999) should return false")
	}
	if idx.Size() != 1 {
		t.Errorf("Size=%d, want 1", idx.Size())
	}
	if !idx.Remove(id) {
		t.Error("Remove of existing id should return true")
	}
	if idx.Size() != 0 {
		t.Errorf("Size=%d, want 0", idx.Size())
	}
}

func TestIndex_SearchRanking(t *testing.T) {
	idx := NewIndex()
	if _, err := idx.AddBatch([]string{"the cat sat", "the dog sat", "quantum physics"}); err != nil {
		t.Fatal(err)
	}
	hits, err := idx.Search("cat", 3, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 3 {
		t.Fatalf("got %d hits, want 3", len(hits))
	}
	if hits[0].DocID != 0 || hits[1].DocID != 1 || hits[2].DocID != 2 {
		t.Errorf("order: got %d,%d,%d, want 0,1,2", hits[0].DocID, hits[1].DocID, hits[2].DocID)
	}
	if hits[0].Score <= 0 {
		t.Errorf("top score: got %f, want > 0", hits[0].Score)
	}
	if hits[2].Score != 0 {
		t.Errorf("unrelated doc score: got %f, want 0", hits[2].Score)
	}
}

func TestIndex_SearchEmptyCorpus(t *testing.T) {
	idx := NewIndex()
	hits, err := idx.Search("anything", 5, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("got %d hits, want 0", len(hits))
	}
}

func TestIndex_SearchAllowedIDsSubset(t *testing.T) {
	idx := NewIndex()
	ids, err := idx.AddBatch([]string{
		"docker containers", "docker deployment", "docker swarm", "gardening tips",
	})
	if err != nil {
		t.Fatal(err)
	}
	allowed := []int64{ids[1], ids[3]}
	hits, err := idx.Search("docker", 10, allowed)
	if err != nil {
		t.Fatal(err)
	}
	allowedSet := map[int64]bool{ids[1]: true, ids[3]: true}
	for _, h := range hits {
		if !allowedSet[h.DocID] {
			t.Errorf("hit %d outside allowed set", h.DocID)
		}
	}
	if len(hits) != 2 {
		t.Errorf("got %d hits, want 2", len(hits))
	}
}

func TestIndex_SearchTopKAndTieBreak(t *testing.T) {
	idx := NewIndex()
	// Identical documents tie exactly; ties must break by ascending id.
	if _, err := idx.AddBatch([]string{"alpha beta", "alpha beta", "alpha beta"}); err != nil {
		t.Fatal(err)
	}
	hits, err := idx.Search("alpha", 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].DocID != 0 || hits[1].DocID != 1 {
		t.Errorf("tie-break order: got %d,%d, want 0,1", hits[0].DocID, hits[1].DocID)
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Error("scores not descending")
		}
	}
}

func TestIndex_SearchUnknownQueryTermsScoreZero(t *testing.T) {
	idx := NewIndex()
	if _, err := idx.Add("alpha beta gamma"); err != nil {
		t.Fatal(err)
	}
	hits, err := idx.Search("zzzunknown", 5, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Score != 0 {
		t.Errorf("got %v, want single zero-score hit", hits)
	}
}

func TestIndex_AddWithIDsAdoptsDurableIDs(t *testing.T) {
	idx := NewIndex()
	entries := []Entry{
		{ID: 7, Text: "stored document seven"},
		{ID: 3, Text: "stored document three"},
		{ID: 12, Text: "stored document twelve"},
	}
	if err := idx.AddWithIDs(entries); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 3 {
		t.Fatalf("Size=%d, want 3", idx.Size())
	}
	// The next live add continues past the highest durable id.
	id, err := idx.Add("fresh document")
	if err != nil {
		t.Fatal(err)
	}
	if id != 13 {
		t.Errorf("next id: got %d, want 13", id)
	}
}

func TestIndex_AddWithIDsRejectsDuplicates(t *testing.T) {
	idx := NewIndex()
	if err := idx.AddWithIDs([]Entry{{ID: 1, Text: "one document"}}); err != nil {
		t.Fatal(err)
	}
	err := idx.AddWithIDs([]Entry{{ID: 1, Text: "another document"}})
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("got %v, want ErrDuplicateID", err)
	}
	if idx.Size() != 1 {
		t.Errorf("Size=%d, want 1", idx.Size())
	}
}

func TestIndex_ConcurrentMutationAndSearch(t *testing.T) {
	idx := NewIndex()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if _, err := idx.Add("concurrent document text"); err != nil {
					t.Error(err)
					return
				}
				if _, err := idx.Search("concurrent", 5, nil); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()
	if idx.Size() != 160 {
		t.Errorf("Size=%d, want 160", idx.Size())
	}
}
