package concepts

import (
	"context"
	"testing"

	"github.com/hyperjump/manabi/internal/models"
)

func TestKeywordExtractor_TopTermsBecomeConcepts(t *testing.T) {
	e := NewKeywordExtractor(3)
	ex, err := e.Extract(context.Background(),
		"docker docker docker container container kubernetes", "text")
	if err != nil {
		t.Fatal(err)
	}
	if len(ex.Concepts) != 3 {
		t.Fatalf("got %d concepts, want 3", len(ex.Concepts))
	}
	if ex.Concepts[0].Name != "docker" || ex.Concepts[0].Confidence != 1.0 {
		t.Errorf("top concept: %+v", ex.Concepts[0])
	}
	if ex.Concepts[1].Name != "container" {
		t.Errorf("second concept: %+v", ex.Concepts[1])
	}
	if ex.Concepts[1].Confidence >= ex.Concepts[0].Confidence {
		t.Error("confidences should decrease with frequency")
	}
	if ex.SuggestedName != "Docker Container" {
		t.Errorf("SuggestedName=%q", ex.SuggestedName)
	}
	if ex.SkillLevel != models.SkillUnknown {
		t.Errorf("SkillLevel=%q", ex.SkillLevel)
	}
}

func TestKeywordExtractor_FrequencyTiesKeepFirstSeenOrder(t *testing.T) {
	e := NewKeywordExtractor(0)
	ex, err := e.Extract(context.Background(), "zebra apple zebra apple", "text")
	if err != nil {
		t.Fatal(err)
	}
	if len(ex.Concepts) != 2 || ex.Concepts[0].Name != "zebra" || ex.Concepts[1].Name != "apple" {
		t.Errorf("got %+v, want zebra before apple", ex.Concepts)
	}
}

func TestKeywordExtractor_NoIndexableTerms(t *testing.T) {
	e := NewKeywordExtractor(0)
	ex, err := e.Extract(context.Background(), "the and of", "text")
	if err != nil {
		t.Fatal(err)
	}
	if len(ex.Concepts) != 0 || ex.SuggestedName != "" {
		t.Errorf("got %+v, want empty extraction", ex)
	}
}
