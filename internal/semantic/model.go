package semantic

import "math"

// sparseVector maps vocabulary column -> weight. Rows stored in the
// model are L2-normalized, so cosine similarity reduces to a dot product.
type sparseVector map[int]float64

// tfidfModel is an immutable snapshot of the corpus vocabulary, inverse
// document frequencies, and per-document weighted vectors. A model is
// built off to the side on every corpus mutation and swapped into the
// index only when construction succeeds, so readers never observe a
// half-built model.
type tfidfModel struct {
	vocab map[string]int // term -> column
	idf   []float64      // per column, smooth idf
	rows  []sparseVector // row i corresponds to document id at position i
}

// buildModel fits vocabulary and idf over the whole corpus and computes
// a normalized tf-idf row per document. Uses the smooth formulation
// idf = ln((1+n)/(1+df)) + 1 so no weight is ever zero or negative.
func buildModel(texts []string) *tfidfModel {
	m := &tfidfModel{vocab: make(map[string]int)}

	termCounts := make([]map[string]int, len(texts))
	docFreq := make(map[string]int)
	for i, text := range texts {
		counts := make(map[string]int)
		for _, term := range Tokenize(text) {
			counts[term]++
		}
		termCounts[i] = counts
		for term := range counts {
			if _, ok := m.vocab[term]; !ok {
				m.vocab[term] = len(m.vocab)
			}
			docFreq[term]++
		}
	}

	n := float64(len(texts))
	m.idf = make([]float64, len(m.vocab))
	for term, col := range m.vocab {
		m.idf[col] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}

	m.rows = make([]sparseVector, len(texts))
	for i, counts := range termCounts {
		row := make(sparseVector, len(counts))
		for term, count := range counts {
			col := m.vocab[term]
			row[col] = float64(count) * m.idf[col]
		}
		normalize(row)
		m.rows[i] = row
	}
	return m
}

// vectorize computes the normalized tf-idf vector of a query against the
// model's fitted vocabulary. Terms outside the vocabulary are ignored; a
// query sharing no terms with the corpus yields an empty (zero) vector.
func (m *tfidfModel) vectorize(text string) sparseVector {
	counts := make(map[string]int)
	for _, term := range Tokenize(text) {
		if _, ok := m.vocab[term]; ok {
			counts[term]++
		}
	}
	vec := make(sparseVector, len(counts))
	for term, count := range counts {
		col := m.vocab[term]
		vec[col] = float64(count) * m.idf[col]
	}
	normalize(vec)
	return vec
}

// normalize scales v to unit L2 norm in place; a zero vector is unchanged.
func normalize(v sparseVector) {
	var sum float64
	for _, w := range v {
		sum += w * w
	}
	if sum == 0 {
		return
	}
	norm := 1 / math.Sqrt(sum)
	for col := range v {
		v[col] *= norm
	}
}

// dot returns the dot product of two sparse vectors. For normalized
// vectors this equals cosine similarity; either operand being zero
// yields 0, never an error.
func dot(a, b sparseVector) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var sum float64
	for col, w := range a {
		sum += w * b[col]
	}
	return sum
}
