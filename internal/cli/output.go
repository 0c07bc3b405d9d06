// Package cli renders command output for manabi.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/manabi/internal/models"
	"github.com/hyperjump/manabi/pkg/utils"
)

// OutputFormat selects how command results are rendered.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat maps a flag value to an OutputFormat, defaulting to text.
func ParseOutputFormat(s string) OutputFormat {
	if strings.EqualFold(s, string(OutputJSON)) {
		return OutputJSON
	}
	return OutputText
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d results for %q in %dms\n\n",
		response.Total, response.Query, response.QueryTime)
	for _, result := range response.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f (keyword: %.4f, semantic: %.4f)\n",
			result.Rank, result.Score, result.KeywordScore, result.SemanticScore)
		fmt.Fprintf(w, "ID: %d\n", result.Document.ID)
		if result.Document.Title != "" {
			fmt.Fprintf(w, "Title: %s\n", result.Document.Title)
		}
		if result.Document.ClusterID != models.Unclustered {
			fmt.Fprintf(w, "Cluster: %d\n", result.Document.ClusterID)
		}
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(result.Document.Content, 200))
	}
	return nil
}

// WriteClusters writes the cluster listing to w in the given format.
func WriteClusters(w io.Writer, clusters []models.Cluster, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{
			"clusters": clusters,
			"total":    len(clusters),
		})
	}
	fmt.Fprintf(w, "\n%d clusters\n\n", len(clusters))
	for _, c := range clusters {
		fmt.Fprintf(w, "[%d] %s (%d documents, %s)\n", c.ID, c.Name, c.DocCount, c.SkillLevel)
		if len(c.PrimaryConcepts) > 0 {
			fmt.Fprintf(w, "    concepts: %s\n", strings.Join(c.PrimaryConcepts, ", "))
		}
	}
	return nil
}

// WriteIngestResult writes the outcome of a single ingest to w.
func WriteIngestResult(w io.Writer, result *models.IngestResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, result)
	}
	if result.Deduplicated {
		fmt.Fprintf(w, "Duplicate content, already stored as document %d\n", result.DocID)
		return nil
	}
	fmt.Fprintf(w, "Ingested document %d", result.DocID)
	switch {
	case result.ClusterID == models.Unclustered:
		fmt.Fprintf(w, " (unclustered)\n")
	case result.ClusterCreated:
		fmt.Fprintf(w, " into new cluster %d\n", result.ClusterID)
	default:
		fmt.Fprintf(w, " into cluster %d\n", result.ClusterID)
	}
	return nil
}

// Status is the summary printed by the status command.
type Status struct {
	Documents int64 `json:"documents"`
	Clusters  int64 `json:"clusters"`
}

// WriteStatus writes the corpus summary to w.
func WriteStatus(w io.Writer, status Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	fmt.Fprintf(w, "Documents: %d\nClusters:  %d\n", status.Documents, status.Clusters)
	return nil
}
