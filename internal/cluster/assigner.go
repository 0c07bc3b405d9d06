// Package cluster groups documents into topical clusters by concept-name
// overlap. Clustering works on topic labels, not raw text, so similarity
// here is Jaccard over concept names rather than vector cosine.
package cluster

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hyperjump/manabi/internal/models"
)

const (
	// DefaultSimilarityThreshold is the minimum combined score a cluster
	// must reach for a document to join it.
	DefaultSimilarityThreshold = 0.5

	// DefaultNameBonus is added to a cluster's score when the document's
	// suggested name appears inside the cluster's name. The combined
	// score is deliberately not capped at 1.0; the bonus is a nudge that
	// can outrank a pure-overlap competitor.
	DefaultNameBonus = 0.2

	// DefaultMaxPrimaryConcepts bounds how many concept names a cluster
	// keeps as its identity for future similarity comparisons.
	DefaultMaxPrimaryConcepts = 5
)

// Assigner owns the cluster table. All reads and writes go through its
// methods; id allocation happens inside the same critical section as the
// table scan that computed the current maximum, so concurrent creations
// can never collide on an id.
type Assigner struct {
	mu         sync.Mutex
	clusters   map[int64]*models.Cluster
	threshold  float64
	nameBonus  float64
	maxPrimary int
}

// Option configures an Assigner.
type Option func(*Assigner)

// WithThreshold overrides the similarity threshold.
func WithThreshold(t float64) Option {
	return func(a *Assigner) { a.threshold = t }
}

// WithNameBonus overrides the name-match bonus.
func WithNameBonus(b float64) Option {
	return func(a *Assigner) { a.nameBonus = b }
}

// WithMaxPrimaryConcepts overrides how many primary concepts a new
// cluster retains.
func WithMaxPrimaryConcepts(n int) Option {
	return func(a *Assigner) {
		if n > 0 {
			a.maxPrimary = n
		}
	}
}

// NewAssigner returns an empty cluster table with default tunables.
func NewAssigner(opts ...Option) *Assigner {
	a := &Assigner{
		clusters:   make(map[int64]*models.Cluster),
		threshold:  DefaultSimilarityThreshold,
		nameBonus:  DefaultNameBonus,
		maxPrimary: DefaultMaxPrimaryConcepts,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// FindBestCluster scores every existing cluster against the document's
// concepts and returns the best cluster's id when its combined score
// meets the threshold. Scoring is Jaccard similarity between the
// lower-cased concept-name sets, plus the name bonus when suggestedName
// occurs inside the cluster's name (case-insensitive). Ties go to the
// lowest cluster id, so repeated runs over the same table are
// deterministic. The second return is false when no cluster qualifies.
func (a *Assigner) FindBestCluster(concepts []models.Concept, suggestedName string) (int64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.findBestLocked(concepts, suggestedName)
}

func (a *Assigner) findBestLocked(concepts []models.Concept, suggestedName string) (int64, bool) {
	docSet := nameSet(conceptNames(concepts))
	wantName := strings.ToLower(strings.TrimSpace(suggestedName))

	var (
		bestID    int64 = -1
		bestScore       = -1.0
	)
	for id, c := range a.clusters {
		score := jaccard(docSet, nameSet(c.PrimaryConcepts))
		if wantName != "" && strings.Contains(strings.ToLower(c.Name), wantName) {
			score += a.nameBonus
		}
		if score > bestScore || (score == bestScore && id < bestID) {
			bestScore = score
			bestID = id
		}
	}
	if bestID < 0 || bestScore < a.threshold {
		return 0, false
	}
	return bestID, true
}

// CreateCluster allocates the next cluster id and inserts a new cluster
// seeded with docID. The id is max(existing)+1, or 0 for an empty table.
// Primary concepts are the most frequent concept names, capped at the
// configured limit, with frequency ties broken by first appearance.
func (a *Assigner) CreateCluster(docID int64, name string, concepts []models.Concept, level models.SkillLevel) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.createLocked(docID, name, concepts, level)
}

func (a *Assigner) createLocked(docID int64, name string, concepts []models.Concept, level models.SkillLevel) int64 {
	var id int64
	for existing := range a.clusters {
		if existing >= id {
			id = existing + 1
		}
	}
	c := &models.Cluster{
		ID:              id,
		Name:            name,
		PrimaryConcepts: a.primaryConcepts(concepts),
		MemberDocIDs:    []int64{docID},
		SkillLevel:      level,
		DocCount:        1,
	}
	a.clusters[id] = c
	return id
}

// AddToCluster appends docID to the cluster's membership. Re-adding an
// existing member is a defined no-op so idempotent replay during
// rehydration stays simple. An unknown cluster id is an error.
func (a *Assigner) AddToCluster(clusterID, docID int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addLocked(clusterID, docID)
}

func (a *Assigner) addLocked(clusterID, docID int64) error {
	c, ok := a.clusters[clusterID]
	if !ok {
		return fmt.Errorf("cluster %d: %w", clusterID, ErrClusterNotFound)
	}
	for _, member := range c.MemberDocIDs {
		if member == docID {
			return nil
		}
	}
	c.MemberDocIDs = append(c.MemberDocIDs, docID)
	c.DocCount = len(c.MemberDocIDs)
	return nil
}

// RemoveMember drops docID from the cluster holding it. A document
// belongs to at most one cluster, so at most one cluster changes.
// Returns the cluster id and true when a membership was removed; an
// emptied cluster stays in the table with its name and concepts.
func (a *Assigner) RemoveMember(docID int64) (int64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for id, c := range a.clusters {
		for i, member := range c.MemberDocIDs {
			if member != docID {
				continue
			}
			c.MemberDocIDs = append(c.MemberDocIDs[:i], c.MemberDocIDs[i+1:]...)
			c.DocCount = len(c.MemberDocIDs)
			return id, true
		}
	}
	return 0, false
}

// Result describes the outcome of Assign.
type Result struct {
	ClusterID int64
	Created   bool
}

// Assign routes a document to the best matching cluster or creates a new
// one when nothing clears the threshold. Find, create, and append all
// run under one lock acquisition, so two concurrent assignments of
// similar documents cannot both miss the table and create duplicate
// clusters for the same topic.
func (a *Assigner) Assign(docID int64, concepts []models.Concept, suggestedName string, level models.SkillLevel) (Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if id, ok := a.findBestLocked(concepts, suggestedName); ok {
		if err := a.addLocked(id, docID); err != nil {
			return Result{}, err
		}
		return Result{ClusterID: id}, nil
	}
	id := a.createLocked(docID, suggestedName, concepts, level)
	return Result{ClusterID: id, Created: true}, nil
}

// Get returns a deep copy of the cluster, or false if it does not exist.
// Copies keep callers from mutating table state outside the lock.
func (a *Assigner) Get(clusterID int64) (models.Cluster, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.clusters[clusterID]
	if !ok {
		return models.Cluster{}, false
	}
	return *c.Clone(), true
}

// List returns deep copies of all clusters sorted by ascending id.
func (a *Assigner) List() []models.Cluster {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]models.Cluster, 0, len(a.clusters))
	for _, c := range a.clusters {
		out = append(out, *c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Load replaces the table with clusters read from durable storage,
// adopting their ids verbatim. Later CreateCluster calls continue past
// the highest loaded id.
func (a *Assigner) Load(clusters []models.Cluster) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.clusters = make(map[int64]*models.Cluster, len(clusters))
	for i := range clusters {
		c := clusters[i].Clone()
		c.DocCount = len(c.MemberDocIDs)
		a.clusters[c.ID] = c
	}
}

// Size returns the number of clusters.
func (a *Assigner) Size() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.clusters)
}

// primaryConcepts picks the most frequent concept names, preserving
// first-seen order among equal frequencies, capped at maxPrimary.
func (a *Assigner) primaryConcepts(concepts []models.Concept) []string {
	type entry struct {
		name  string
		count int
		first int
	}
	byName := make(map[string]*entry)
	ordered := make([]*entry, 0, len(concepts))
	for i, c := range concepts {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if e, ok := byName[key]; ok {
			e.count++
			continue
		}
		e := &entry{name: name, count: 1, first: i}
		byName[key] = e
		ordered = append(ordered, e)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].count != ordered[j].count {
			return ordered[i].count > ordered[j].count
		}
		return ordered[i].first < ordered[j].first
	})
	if len(ordered) > a.maxPrimary {
		ordered = ordered[:a.maxPrimary]
	}
	names := make([]string, len(ordered))
	for i, e := range ordered {
		names[i] = e.name
	}
	return names
}

// conceptNames extracts the name field of each concept.
func conceptNames(concepts []models.Concept) []string {
	names := make([]string, 0, len(concepts))
	for _, c := range concepts {
		names = append(names, c.Name)
	}
	return names
}

// nameSet lowercases and trims names into a set, dropping empties.
func nameSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

// jaccard returns |intersection| / |union| of two sets. Two empty sets
// score 0 because there is nothing to match.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for n := range a {
		if _, ok := b[n]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
