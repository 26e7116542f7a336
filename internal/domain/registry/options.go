package registry

// Defaults taken from the most complete revision of the rating rules.
const (
	DefaultUserKFactor      = 24
	DefaultFlashcardKFactor = 32
	DefaultInitialRating    = 1500
)

// Option applies a configuration option to the Registry.
type Option func(*Registry)

// WithUserKFactor sets the k-factor given to the user on creation.
func WithUserKFactor(k float64) Option {
	return func(r *Registry) {
		if k > 0 {
			r.userKFactor = k
		}
	}
}

// WithFlashcardKFactor sets the k-factor given to new flashcards.
func WithFlashcardKFactor(k float64) Option {
	return func(r *Registry) {
		if k > 0 {
			r.flashcardKFactor = k
		}
	}
}

// WithInitialRating sets the rating of newly created competitors.
func WithInitialRating(rating float64) Option {
	return func(r *Registry) {
		r.initialRating = rating
	}
}
