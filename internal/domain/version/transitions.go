package version

var transitions = map[Status][]Status{
	StatusDraft:     {StatusPreview, StatusPublished},
	StatusPreview:   {StatusPublished},
	StatusPublished: {StatusArchived},
}

// ValidateTransition returns a *TransitionError unless from may move to to.
func ValidateTransition(from, to Status) error {
	for _, next := range transitions[from] {
		if next == to {
			return nil
		}
	}
	return &TransitionError{From: from, To: to}
}
