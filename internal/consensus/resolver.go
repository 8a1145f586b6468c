// Package consensus combines per-method bubble intensities into a final
// per-question answer with a confidence score.
package consensus

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"omr-grader/internal/config"
	"omr-grader/internal/intensity"
)

// State is the terminal resolution of one question. Every question passes
// through unseen → analyzed → resolved exactly once per request; a resolved
// answer is never retried or amended.
type State int

const (
	StateAnswered State = iota
	StateBlank
	StateMultiple
)

func (s State) String() string {
	switch s {
	case StateAnswered:
		return "ANSWERED"
	case StateBlank:
		return "BLANK"
	case StateMultiple:
		return "MULTIPLE"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON renders the state as its name.
func (s State) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", s.String())), nil
}

// Answer is the immutable output unit for one question.
type Answer struct {
	Question   int     `json:"question"`
	State      State   `json:"state"`
	Option     string  `json:"option,omitempty"`
	Confidence float64 `json:"confidence"`
	Multiple   bool    `json:"multiple,omitempty"`

	// Intensities holds each option's combined intensity; Methods keeps the
	// contributing per-method results for diagnostics.
	Intensities map[string]float64            `json:"intensities,omitempty"`
	Methods     map[string][]intensity.Result `json:"methods,omitempty"`
}

// agreementVarianceCap bounds the inter-method variance below which the
// confidence boost applies.
const agreementVarianceCap = 0.05

// multiplePenalty scales confidence down when more than one option crosses
// the detection threshold. Never zero: the winner is still the best guess.
const multiplePenalty = 0.6

// blankConfidenceCap bounds how confident a BLANK resolution can be. An
// empty bubble proves only absence of signal, not absence of intent.
const blankConfidenceCap = 0.3

// Combine folds one bubble's per-method results into a combined intensity
// and a confidence. The intensity is the weighted sum and is what threshold
// comparisons use; the confidence additionally earns a modest boost when the
// methods agree, so agreement raises trust without moving decision
// boundaries.
func Combine(results []intensity.Result, weights map[string]float64) (combined, confidence float64) {
	if len(results) == 0 {
		return 0, 0
	}

	vals := make([]float64, 0, len(results))
	for _, r := range results {
		combined += weights[r.Method] * r.Intensity
		vals = append(vals, r.Intensity)
	}
	if combined > 1 {
		combined = 1
	}

	confidence = combined
	if len(vals) > 1 {
		if variance := stat.Variance(vals, nil); variance < agreementVarianceCap {
			confidence *= 1 + 0.1*(1-variance/agreementVarianceCap)
			if confidence > 1 {
				confidence = 1
			}
		}
	}
	return combined, confidence
}

// Resolve picks a question's answer from its per-option method results.
// Options accrue weighted votes for each vote tier their combined intensity
// crosses; the most-voted option wins, ties broken by raw intensity. A winner
// below the applicable detection threshold resolves BLANK; a second option
// over the threshold keeps the winner but flags MULTIPLE with reduced
// confidence.
func Resolve(question, section int, perOption map[string][]intensity.Result, cfg config.DetectionConfig) Answer {
	letters := make([]string, 0, len(perOption))
	for letter := range perOption {
		letters = append(letters, letter)
	}
	sort.Strings(letters)

	combined := make(map[string]float64, len(letters))
	confidences := make(map[string]float64, len(letters))
	votes := make(map[string]float64, len(letters))
	for _, letter := range letters {
		c, conf := Combine(perOption[letter], cfg.MethodWeights)
		combined[letter] = c
		confidences[letter] = conf
		votes[letter] = voteScore(c, cfg.Votes)
	}

	winner := ""
	for _, letter := range letters {
		if winner == "" ||
			votes[letter] > votes[winner] ||
			(votes[letter] == votes[winner] && combined[letter] > combined[winner]) {
			winner = letter
		}
	}

	answer := Answer{
		Question:    question,
		Intensities: combined,
		Methods:     perOption,
	}
	if winner == "" {
		answer.State = StateBlank
		answer.Confidence = blankConfidenceCap
		return answer
	}

	threshold := cfg.SectionThreshold(section)
	winnerIntensity := combined[winner]

	// Inclusive: exactly at the threshold counts as filled.
	if winnerIntensity < threshold {
		answer.State = StateBlank
		answer.Confidence = blankConfidenceCap * (threshold - winnerIntensity) / threshold
		return answer
	}

	over := 0
	for _, letter := range letters {
		if letter != winner && combined[letter] >= threshold {
			over++
		}
	}

	answer.Option = winner
	if over > 0 {
		answer.State = StateMultiple
		answer.Multiple = true
		answer.Confidence = confidences[winner] * multiplePenalty
		if answer.Confidence <= 0 {
			answer.Confidence = 0.05
		}
		return answer
	}

	answer.State = StateAnswered
	answer.Confidence = confidences[winner]
	return answer
}

// voteScore maps a combined intensity to its weighted vote count.
func voteScore(combined float64, tiers config.VoteThresholds) float64 {
	switch {
	case combined >= tiers.High:
		return 3
	case combined >= tiers.Med:
		return 2
	case combined >= tiers.Low:
		return 1
	default:
		return 0
	}
}
