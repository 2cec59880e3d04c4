// Package consensus aggregates repeated, possibly conflicting per-sentence
// annotations into a single label vector, author span and agreement ratio.
package consensus

import (
	"strconv"
	"strings"
)

// Config holds the completion criteria for a sentence.
type Config struct {
	// ConsensusThreshold is the minimum agreement ratio for a sentence to be
	// considered labeled.
	ConsensusThreshold float64
	// CountThreshold is the minimum number of counted votes for a sentence to
	// be considered labeled.
	CountThreshold int
}

// DefaultConfig returns the production completion criteria.
func DefaultConfig() Config {
	return Config{ConsensusThreshold: 0.75, CountThreshold: 4}
}

// Vote is one annotator's answer for a sentence: a per-token label vector and
// the absolute token indices of the speaker span. An empty label vector marks
// a skip and never takes part in voting.
type Vote struct {
	Labels  []int
	Authors []int
	Admin   bool
}

// Outcome is the aggregated result for one sentence. When Admin is set the
// outcome was asserted by an admin vote and voting was skipped entirely.
type Outcome struct {
	Labels  []int
	Authors []int
	Ratio   float64
	Votes   int
	Admin   bool
}

// ValidLabels reports whether a label vector is well formed: every entry is 0
// or 1 and the 1s form at most one contiguous run. Two disjoint quote spans
// within one vector are invalid.
func ValidLabels(labels []int) bool {
	seenOne := false
	runClosed := false
	for _, l := range labels {
		if l != 0 && l != 1 {
			return false
		}
		if l == 1 {
			if runClosed {
				return false
			}
			seenOne = true
		} else if seenOne {
			runClosed = true
		}
	}
	return true
}

// Aggregate combines the votes for one sentence. The first admin vote in the
// input asserts the outcome with ratio 1; an admin skip carries no labels and
// asserts nothing. Otherwise the consensus label is
// the most frequent distinct label vector and, independently, the consensus
// author span is the most frequent distinct author span; ties go to the
// value seen first. Skips and invalid label vectors are not counted. With no
// countable votes the outcome is empty with ratio 0.
//
// Callers must pass votes in a stable order (ascending row id) so that the
// tie-break is deterministic.
func Aggregate(votes []Vote) Outcome {
	for _, v := range votes {
		if v.Admin && len(v.Labels) > 0 {
			return Outcome{Labels: v.Labels, Authors: v.Authors, Ratio: 1, Votes: len(votes), Admin: true}
		}
	}

	var counted []Vote
	for _, v := range votes {
		if len(v.Labels) == 0 || !ValidLabels(v.Labels) {
			continue
		}
		counted = append(counted, v)
	}
	if len(counted) == 0 {
		return Outcome{}
	}

	labels, labelVotes := plurality(counted, func(v Vote) []int { return v.Labels })
	authors, authorVotes := plurality(counted, func(v Vote) []int { return v.Authors })

	return Outcome{
		Labels:  labels,
		Authors: authors,
		Ratio:   float64(labelVotes+authorVotes) / float64(2*len(counted)),
		Votes:   len(counted),
	}
}

// Reached reports whether an outcome satisfies the completion criteria.
func (c Config) Reached(o Outcome) bool {
	if o.Admin {
		return true
	}
	return o.Votes >= c.CountThreshold && o.Ratio >= c.ConsensusThreshold
}

// plurality returns the most frequent distinct value and its count,
// preferring the value seen first on ties.
func plurality(votes []Vote, field func(Vote) []int) ([]int, int) {
	counts := make(map[string]int, len(votes))
	var order []string
	values := make(map[string][]int, len(votes))

	for _, v := range votes {
		k := key(field(v))
		if _, ok := counts[k]; !ok {
			order = append(order, k)
			values[k] = field(v)
		}
		counts[k]++
	}

	best := order[0]
	for _, k := range order[1:] {
		if counts[k] > counts[best] {
			best = k
		}
	}
	return values[best], counts[best]
}

func key(xs []int) string {
	var b strings.Builder
	for i, x := range xs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(x))
	}
	return b.String()
}
