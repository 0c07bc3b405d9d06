package models

// SkillLevel classifies how advanced a cluster's material is.
type SkillLevel string

const (
	SkillBeginner     SkillLevel = "beginner"
	SkillIntermediate SkillLevel = "intermediate"
	SkillAdvanced     SkillLevel = "advanced"
	SkillUnknown      SkillLevel = "unknown"
)

// ParseSkillLevel returns the SkillLevel for s, or SkillUnknown for
// anything unrecognized (including the empty string).
func ParseSkillLevel(s string) SkillLevel {
	switch SkillLevel(s) {
	case SkillBeginner, SkillIntermediate, SkillAdvanced:
		return SkillLevel(s)
	default:
		return SkillUnknown
	}
}

// Cluster is a named topical grouping of documents sharing overlapping
// concepts. DocCount always equals len(MemberDocIDs).
type Cluster struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	PrimaryConcepts []string   `json:"primary_concepts"`
	MemberDocIDs    []int64    `json:"member_doc_ids"`
	SkillLevel      SkillLevel `json:"skill_level"`
	DocCount        int        `json:"doc_count"`
}

// Clone returns a deep copy so callers can't mutate shared cluster state.
func (c *Cluster) Clone() *Cluster {
	cp := *c
	cp.PrimaryConcepts = append([]string(nil), c.PrimaryConcepts...)
	cp.MemberDocIDs = append([]int64(nil), c.MemberDocIDs...)
	return &cp
}
