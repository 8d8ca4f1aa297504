package agent

import (
	"math"
	"sort"
	"strings"

	"github.com/dataloom/hybridqa/corpus"
)

// BM25 tuning constants.
const (
	bm25K1      = 1.5
	bm25B       = 0.75
	bm25Epsilon = 0.25
)

// Retriever scores corpus documents against a question using BM25.
//
// The index is built once at startup from the immutable corpus and is
// safe for concurrent use: TopK only reads. Identical question and
// corpus always yield identical ranked output; score ties keep corpus
// order.
type Retriever struct {
	docs    []corpus.Document
	freqs   []map[string]int
	docLens []int
	avgLen  float64
	idf     map[string]float64
}

// NewRetriever builds a BM25 index over the given documents.
// Tokenization is lowercase + whitespace split for both documents and
// queries.
func NewRetriever(docs []corpus.Document) *Retriever {
	r := &Retriever{
		docs:    docs,
		freqs:   make([]map[string]int, len(docs)),
		docLens: make([]int, len(docs)),
		idf:     make(map[string]float64),
	}

	df := make(map[string]int)
	total := 0
	for i, doc := range docs {
		tokens := tokenize(doc.Content)
		freq := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			freq[tok]++
		}
		for tok := range freq {
			df[tok]++
		}
		r.freqs[i] = freq
		r.docLens[i] = len(tokens)
		total += len(tokens)
	}
	if len(docs) > 0 {
		r.avgLen = float64(total) / float64(len(docs))
	}

	// Okapi idf can go negative for terms in most documents; those
	// are floored to a fraction of the average positive idf.
	n := float64(len(docs))
	idfSum := 0.0
	var negative []string
	for tok, d := range df {
		idf := math.Log((n - float64(d) + 0.5) / (float64(d) + 0.5))
		r.idf[tok] = idf
		idfSum += idf
		if idf < 0 {
			negative = append(negative, tok)
		}
	}
	if len(df) > 0 {
		floor := bm25Epsilon * (idfSum / float64(len(df)))
		for _, tok := range negative {
			r.idf[tok] = floor
		}
	}

	return r
}

// TopK returns the k highest-scoring documents for the query, ranked
// descending, ties broken by corpus order. Result length is
// min(k, corpus size).
func (r *Retriever) TopK(query string, k int) []RetrievedDoc {
	scores := make([]float64, len(r.docs))
	for _, tok := range tokenize(query) {
		idf, ok := r.idf[tok]
		if !ok {
			continue
		}
		for i := range r.docs {
			f := float64(r.freqs[i][tok])
			if f == 0 {
				continue
			}
			norm := 1 - bm25B + bm25B*float64(r.docLens[i])/r.avgLen
			scores[i] += idf * (f * (bm25K1 + 1)) / (f + bm25K1*norm)
		}
	}

	order := make([]int, len(r.docs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	if k > len(order) {
		k = len(order)
	}
	out := make([]RetrievedDoc, 0, k)
	for _, idx := range order[:k] {
		out = append(out, RetrievedDoc{
			Source:  r.docs[idx].Source,
			Content: r.docs[idx].Content,
			Score:   scores[idx],
		})
	}
	return out
}

func tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}
