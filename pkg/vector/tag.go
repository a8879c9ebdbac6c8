package vector

import "fmt"

// Tag names which vector of an owner is meant. The set is closed.
type Tag string

const (
	// TagFull is the vector of the owner's full text.
	TagFull Tag = "full"

	// TagSummary is the vector of the owner's summary.
	TagSummary Tag = "summary"
)

// Tags lists every valid tag.
var Tags = []Tag{TagFull, TagSummary}

// Valid reports whether t is a known tag.
func (t Tag) Valid() bool {
	return t == TagFull || t == TagSummary
}

func (t Tag) String() string {
	return string(t)
}

// ParseTag converts s into a Tag. An empty string yields TagFull.
func ParseTag(s string) (Tag, error) {
	if s == "" {
		return TagFull, nil
	}
	t := Tag(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidTag, s)
	}
	return t, nil
}
