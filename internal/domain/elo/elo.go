// Package elo computes pairwise Elo rating updates.
//
// Ratings follow the logistic model with a 400 point spread: a competitor
// rated 400 points above its opponent is expected to win ten times as often.
// Every answer is a decisive match, so scores are 0 or 1; there are no draws.
package elo

import (
	"fmt"
	"math"
)

// Spread is the rating difference that gives 10-to-1 odds.
const Spread = 400

// Match scores.
const (
	Loss float64 = 0
	Win  float64 = 1
)

// Expected returns the expected score of a competitor rated ratingA against
// one rated ratingB.
func Expected(ratingA, ratingB float64) float64 {
	return 1 / (1 + math.Pow(10, (ratingB-ratingA)/Spread))
}

// Probability returns the chance that subject beats opponent on the natural
// logistic curve e^x / (1 + e^x) with x = (subject - opponent) / Spread.
// It is flatter than Expected and is used for difficulty estimates, not for
// rating updates.
func Probability(subject, opponent float64) float64 {
	x := (subject - opponent) / Spread
	// 1/(1+e^-x) equals e^x/(1+e^x) without overflowing for large x.
	return 1 / (1 + math.Exp(-x))
}

// Score maps an answer to the user's match score.
func Score(isCorrect bool) float64 {
	if isCorrect {
		return Win
	}
	return Loss
}

// Update returns the ratings of A and B after a match in which A scored
// scoreA. Each side moves by its own k-factor. Results are rounded to the
// nearest integer, halves away from zero.
func Update(ratingA, ratingB, scoreA, kFactorA, kFactorB float64) (float64, float64, error) {
	if err := ValidateRating(ratingA); err != nil {
		return 0, 0, err
	}
	if err := ValidateRating(ratingB); err != nil {
		return 0, 0, err
	}
	if scoreA != Win && scoreA != Loss {
		return 0, 0, fmt.Errorf("%w: %v is not 0 or 1", ErrInvalidScore, scoreA)
	}
	if err := ValidateKFactor(kFactorA); err != nil {
		return 0, 0, err
	}
	if err := ValidateKFactor(kFactorB); err != nil {
		return 0, 0, err
	}

	expectedA := Expected(ratingA, ratingB)
	// Derived rather than recomputed so the two expectations sum to exactly 1.
	expectedB := 1 - expectedA

	newA := math.Round(ratingA + kFactorA*(scoreA-expectedA))
	newB := math.Round(ratingB + kFactorB*((1-scoreA)-expectedB))
	return newA, newB, nil
}

// ValidateRating reports ErrInvalidRating for NaN and infinite ratings.
func ValidateRating(r float64) error {
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidRating, r)
	}
	return nil
}

// ValidateKFactor reports ErrInvalidKFactor unless k is finite and positive.
func ValidateKFactor(k float64) error {
	if math.IsNaN(k) || math.IsInf(k, 0) || k <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidKFactor, k)
	}
	return nil
}
