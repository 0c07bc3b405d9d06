package cluster

import (
	"errors"
	"sync"
	"testing"

	"github.com/hyperjump/manabi/internal/models"
)

func concepts(names ...string) []models.Concept {
	out := make([]models.Concept, len(names))
	for i, n := range names {
		out[i] = models.Concept{Name: n, Category: "skill", Confidence: 0.9}
	}
	return out
}

func TestJaccard_Identities(t *testing.T) {
	identical := nameSet([]string{"docker", "k8s"})
	if got := jaccard(identical, nameSet([]string{"docker", "k8s"})); got != 1.0 {
		t.Errorf("identical sets: got %f, want 1.0", got)
	}
	if got := jaccard(nameSet([]string{"docker"}), nameSet([]string{"gardening"})); got != 0.0 {
		t.Errorf("disjoint sets: got %f, want 0.0", got)
	}
	if got := jaccard(nameSet(nil), nameSet(nil)); got != 0.0 {
		t.Errorf("empty sets: got %f, want 0.0", got)
	}
}

func TestFindBestCluster_BelowThresholdCreatesNew(t *testing.T) {
	a := NewAssigner()
	a.CreateCluster(1, "Docker", concepts("docker", "container", "k8s"), models.SkillIntermediate)

	// Jaccard({docker,deployment},{docker,container,k8s}) = 1/4, below 0.5.
	if id, ok := a.FindBestCluster(concepts("docker", "deployment"), ""); ok {
		t.Errorf("got cluster %d, want no match", id)
	}

	res, err := a.Assign(2, concepts("docker", "deployment"), "Deployments", models.SkillBeginner)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Created {
		t.Error("want a new cluster")
	}
	if res.ClusterID != 1 {
		t.Errorf("new cluster id: got %d, want 1", res.ClusterID)
	}
}

func TestFindBestCluster_MatchAtThreshold(t *testing.T) {
	a := NewAssigner()
	id := a.CreateCluster(1, "Docker", concepts("docker", "container"), models.SkillUnknown)

	// Jaccard({docker,container,k8s,helm},{docker,container}) = 2/4 = 0.5,
	// which meets the default threshold exactly.
	got, ok := a.FindBestCluster(concepts("docker", "container", "k8s", "helm"), "")
	if !ok || got != id {
		t.Errorf("got (%d,%v), want (%d,true)", got, ok, id)
	}
}

func TestFindBestCluster_NameBonusUncapped(t *testing.T) {
	a := NewAssigner()
	id := a.CreateCluster(1, "Docker Basics", concepts("docker", "container"), models.SkillUnknown)

	// Perfect overlap plus a name match pushes the score past 1.0; the
	// match must still be returned.
	got, ok := a.FindBestCluster(concepts("docker", "container"), "docker")
	if !ok || got != id {
		t.Errorf("got (%d,%v), want (%d,true)", got, ok, id)
	}

	// The bonus alone (0.2) does not clear the threshold.
	if _, ok := a.FindBestCluster(concepts("gardening"), "docker"); ok {
		t.Error("bonus without overlap should not clear the threshold")
	}
}

func TestFindBestCluster_NameBonusBreaksOverlapTie(t *testing.T) {
	a := NewAssigner()
	a.CreateCluster(1, "Containers", concepts("docker", "container"), models.SkillUnknown)
	withName := a.CreateCluster(2, "Docker Deep Dive", concepts("docker", "container"), models.SkillUnknown)

	got, ok := a.FindBestCluster(concepts("docker", "container"), "docker")
	if !ok || got != withName {
		t.Errorf("got (%d,%v), want (%d,true)", got, ok, withName)
	}
}

func TestFindBestCluster_TieGoesToLowestID(t *testing.T) {
	a := NewAssigner()
	first := a.CreateCluster(1, "One", concepts("go", "testing"), models.SkillUnknown)
	a.CreateCluster(2, "Two", concepts("go", "testing"), models.SkillUnknown)

	got, ok := a.FindBestCluster(concepts("go", "testing"), "")
	if !ok || got != first {
		t.Errorf("got (%d,%v), want (%d,true)", got, ok, first)
	}
}

func TestCreateCluster_IDSequence(t *testing.T) {
	a := NewAssigner()
	for want := int64(0); want < 3; want++ {
		id := a.CreateCluster(want, "c", concepts("topic"), models.SkillUnknown)
		if id != want {
			t.Errorf("got id %d, want %d", id, want)
		}
	}
}

func TestCreateCluster_ContinuesPastLoadedIDs(t *testing.T) {
	a := NewAssigner()
	a.Load([]models.Cluster{
		{ID: 5, Name: "loaded", PrimaryConcepts: []string{"x"}, MemberDocIDs: []int64{1}},
	})
	if id := a.CreateCluster(2, "fresh", concepts("y"), models.SkillUnknown); id != 6 {
		t.Errorf("got id %d, want 6", id)
	}
}

func TestCreateCluster_PrimaryConceptsCappedAndOrdered(t *testing.T) {
	a := NewAssigner()
	id := a.CreateCluster(1, "c", concepts("f", "a", "b", "c", "d", "e", "a"), models.SkillUnknown)
	c, ok := a.Get(id)
	if !ok {
		t.Fatal("cluster missing")
	}
	if len(c.PrimaryConcepts) != 5 {
		t.Fatalf("got %d primary concepts, want 5", len(c.PrimaryConcepts))
	}
	// "a" appears twice so it leads; the rest keep first-seen order.
	want := []string{"a", "f", "b", "c", "d"}
	for i, n := range want {
		if c.PrimaryConcepts[i] != n {
			t.Errorf("primary[%d]: got %q, want %q", i, c.PrimaryConcepts[i], n)
		}
	}
}

func TestAddToCluster_IdempotentAndNotFound(t *testing.T) {
	a := NewAssigner()
	id := a.CreateCluster(1, "c", concepts("topic"), models.SkillUnknown)

	if err := a.AddToCluster(id, 2); err != nil {
		t.Fatal(err)
	}
	if err := a.AddToCluster(id, 2); err != nil {
		t.Fatalf("re-add: %v", err)
	}
	c, _ := a.Get(id)
	if c.DocCount != 2 || len(c.MemberDocIDs) != 2 {
		t.Errorf("got DocCount=%d members=%v, want 2 members", c.DocCount, c.MemberDocIDs)
	}

	if err := a.AddToCluster(999, 1); !errors.Is(err, ErrClusterNotFound) {
		t.Errorf("got %v, want ErrClusterNotFound", err)
	}
}

func TestRemoveMember(t *testing.T) {
	a := NewAssigner()
	id := a.CreateCluster(1, "c", concepts("topic"), models.SkillUnknown)
	if err := a.AddToCluster(id, 2); err != nil {
		t.Fatal(err)
	}

	gotID, ok := a.RemoveMember(1)
	if !ok || gotID != id {
		t.Fatalf("RemoveMember(1) = (%d, %v), want (%d, true)", gotID, ok, id)
	}
	c, _ := a.Get(id)
	if c.DocCount != 1 || len(c.MemberDocIDs) != 1 || c.MemberDocIDs[0] != 2 {
		t.Errorf("after removal: DocCount=%d members=%v, want only doc 2", c.DocCount, c.MemberDocIDs)
	}

	// Unknown document is a no-op.
	if _, ok := a.RemoveMember(999); ok {
		t.Error("RemoveMember(999) = true, want false")
	}

	// Removing the last member keeps the cluster in the table.
	if _, ok := a.RemoveMember(2); !ok {
		t.Fatal("RemoveMember(2) = false, want true")
	}
	c, exists := a.Get(id)
	if !exists {
		t.Fatal("emptied cluster should stay in the table")
	}
	if c.DocCount != 0 || len(c.MemberDocIDs) != 0 {
		t.Errorf("emptied cluster: DocCount=%d members=%v", c.DocCount, c.MemberDocIDs)
	}
}

func TestAssign_JoinsExistingCluster(t *testing.T) {
	a := NewAssigner()
	id := a.CreateCluster(1, "Go", concepts("go", "testing"), models.SkillUnknown)

	res, err := a.Assign(2, concepts("go", "testing"), "", models.SkillUnknown)
	if err != nil {
		t.Fatal(err)
	}
	if res.Created || res.ClusterID != id {
		t.Errorf("got %+v, want join of cluster %d", res, id)
	}
	c, _ := a.Get(id)
	if c.DocCount != 2 {
		t.Errorf("DocCount=%d, want 2", c.DocCount)
	}
}

func TestGetAndList_ReturnCopies(t *testing.T) {
	a := NewAssigner()
	id := a.CreateCluster(1, "c", concepts("topic"), models.SkillUnknown)

	c, _ := a.Get(id)
	c.PrimaryConcepts[0] = "mutated"
	c.MemberDocIDs[0] = 999

	again, _ := a.Get(id)
	if again.PrimaryConcepts[0] != "topic" || again.MemberDocIDs[0] != 1 {
		t.Error("Get leaked internal state")
	}

	if _, ok := a.Get(404); ok {
		t.Error("Get(404) should report not found")
	}

	list := a.List()
	if len(list) != 1 || list[0].ID != id {
		t.Errorf("List=%v", list)
	}
}

func TestList_SortedByID(t *testing.T) {
	a := NewAssigner()
	a.Load([]models.Cluster{
		{ID: 3, Name: "three"}, {ID: 0, Name: "zero"}, {ID: 7, Name: "seven"},
	})
	list := a.List()
	for i := 1; i < len(list); i++ {
		if list[i].ID < list[i-1].ID {
			t.Fatalf("not sorted: %v", list)
		}
	}
}

func TestCreateCluster_ConcurrentAllocationsNeverCollide(t *testing.T) {
	a := NewAssigner()
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[int64]int)
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(doc int64) {
			defer wg.Done()
			id := a.CreateCluster(doc, "c", concepts("topic"), models.SkillUnknown)
			mu.Lock()
			ids[id]++
			mu.Unlock()
		}(int64(i))
	}
	wg.Wait()
	if len(ids) != 32 {
		t.Fatalf("got %d distinct ids for 32 creations", len(ids))
	}
	for id, n := range ids {
		if n != 1 {
			t.Errorf("id %d allocated %d times", id, n)
		}
	}
}
