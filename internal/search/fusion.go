package search

import (
	"sort"

	"github.com/hyperjump/manabi/internal/keyword"
	"github.com/hyperjump/manabi/internal/semantic"
)

// FusedResult holds a document id and fused keyword/semantic scores.
type FusedResult struct {
	DocID         int64
	Score         float64
	KeywordScore  float64
	SemanticScore float64
}

// NormalizeKeywordScores normalizes BM25 scores to [0,1] by the maximum
// score in the result set, so they are comparable with cosine scores.
func NormalizeKeywordScores(results []*keyword.KeywordResult) map[int64]float64 {
	normalized := make(map[int64]float64, len(results))
	if len(results) == 0 {
		return normalized
	}
	maxScore := results[0].Score
	for _, r := range results {
		if r.Score > maxScore {
			maxScore = r.Score
		}
	}
	for _, r := range results {
		if maxScore > 0 {
			normalized[r.DocID] = r.Score / maxScore
		} else {
			normalized[r.DocID] = 0
		}
	}
	return normalized
}

// SemanticScores maps hits to a score table. Cosine scores over
// normalized vectors are already in [0,1], so no rescaling is needed.
func SemanticScores(hits []semantic.Hit) map[int64]float64 {
	scores := make(map[int64]float64, len(hits))
	for _, h := range hits {
		scores[h.DocID] = h.Score
	}
	return scores
}

// Fuse merges keyword and semantic score maps with weights and returns
// results sorted by descending fused score, ties broken by ascending
// document id for a stable ordering.
func Fuse(keywordScores, semanticScores map[int64]float64, keywordWeight, semanticWeight float64) []*FusedResult {
	scoreMap := make(map[int64]*FusedResult)
	for id, score := range keywordScores {
		scoreMap[id] = &FusedResult{DocID: id, KeywordScore: score}
	}
	for id, score := range semanticScores {
		if result, exists := scoreMap[id]; exists {
			result.SemanticScore = score
		} else {
			scoreMap[id] = &FusedResult{DocID: id, SemanticScore: score}
		}
	}
	results := make([]*FusedResult, 0, len(scoreMap))
	for _, result := range scoreMap {
		result.Score = keywordWeight*result.KeywordScore + semanticWeight*result.SemanticScore
		results = append(results, result)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocID < results[j].DocID
	})
	return results
}
