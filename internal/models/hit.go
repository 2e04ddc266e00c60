// ABOUTME: RetrievedHit is one ranked result of a similarity query
// ABOUTME: Ephemeral per query; consumed by the evidence gate and prompt construction
package models

import (
	"encoding/json"
	"math"
)

// RetrievedHit is a ranked chunk returned by the vector index.
// Distance is NaN when the index returned no usable distance.
type RetrievedHit struct {
	Rank     int           `json:"rank" yaml:"rank"`
	ChunkID  string        `json:"chunk_id" yaml:"chunk_id"`
	Distance float64       `json:"distance" yaml:"distance"`
	Text     string        `json:"text" yaml:"text"`
	Metadata ChunkMetadata `json:"metadata" yaml:"metadata"`
}

// HasDistance reports whether the hit carries a usable distance
func (h RetrievedHit) HasDistance() bool {
	return !math.IsNaN(h.Distance)
}

// MarshalJSON renders a missing distance as null
func (h RetrievedHit) MarshalJSON() ([]byte, error) {
	type alias RetrievedHit
	out := struct {
		alias
		Distance *float64 `json:"distance"`
	}{alias: alias(h)}
	if h.HasDistance() {
		d := h.Distance
		out.Distance = &d
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts null for a missing distance
func (h *RetrievedHit) UnmarshalJSON(data []byte) error {
	type alias RetrievedHit
	in := struct {
		*alias
		Distance *float64 `json:"distance"`
	}{alias: (*alias)(h)}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.Distance == nil {
		h.Distance = math.NaN()
	} else {
		h.Distance = *in.Distance
	}
	return nil
}
