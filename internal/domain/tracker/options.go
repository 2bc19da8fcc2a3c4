package tracker

// Option applies a configuration option to the Tracker.
type Option func(*Tracker)

// WithMaxDisappeared sets how many consecutive unmatched frames a track
// survives. A track is evicted once its missed counter exceeds this value.
func WithMaxDisappeared(frames int) Option {
	return func(t *Tracker) {
		if frames >= 0 {
			t.maxDisappeared = frames
		}
	}
}

// WithMaxDistance sets the largest centroid distance, in pixels, at which a
// detection can still be assigned to a track.
func WithMaxDistance(distance float64) Option {
	return func(t *Tracker) {
		if distance > 0 {
			t.maxDistance = distance
		}
	}
}

// WithMatcher replaces the assignment strategy.
func WithMatcher(m Matcher) Option {
	return func(t *Tracker) {
		if m != nil {
			t.matcher = m
		}
	}
}
