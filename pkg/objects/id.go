package objects

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// NewObjectToken is the sentinel callers pass instead of an identifier when
// they want one minted for them.
const NewObjectToken = "NEW"

// sequenceDigits is the zero-padded width of the sequence part
const sequenceDigits = 6

// ParsedID is a decomposed object identifier
type ParsedID struct {
	Prefix   string
	Sequence int64
	// Version is set when IsDraft is false
	Version int64
	IsDraft bool
}

// FormatDraftID builds a draft table identifier
func FormatDraftID(prefix string, sequence int64) string {
	return fmt.Sprintf("%s_%0*d/DRAFT", prefix, sequenceDigits, sequence)
}

// FormatPublishedID builds a published table identifier
func FormatPublishedID(prefix string, sequence, version int64) string {
	return fmt.Sprintf("%s_%0*d/%d", prefix, sequenceDigits, sequence, version)
}

// ParseObjectID decomposes an identifier. Both the bare form
// (BCO_000001/DRAFT) and the URI form (https://host/BCO_000001/DRAFT) are
// accepted; the URI's scheme and host are discarded.
func ParseObjectID(id string) (ParsedID, error) {
	path := id
	if strings.Contains(id, "://") {
		u, err := url.Parse(id)
		if err != nil {
			return ParsedID{}, fmt.Errorf("%w: %s", ErrInvalidID, id)
		}
		path = strings.TrimPrefix(u.Path, "/")
	}

	parts := strings.Split(path, "/")
	if len(parts) != 2 {
		return ParsedID{}, fmt.Errorf("%w: %s", ErrInvalidID, id)
	}

	prefix, sequence, err := parseName(parts[0])
	if err != nil {
		return ParsedID{}, fmt.Errorf("%w: %s", ErrInvalidID, id)
	}

	parsed := ParsedID{Prefix: prefix, Sequence: sequence}
	if parts[1] == "DRAFT" {
		parsed.IsDraft = true
		return parsed, nil
	}
	version, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || version < 1 {
		return ParsedID{}, fmt.Errorf("%w: %s", ErrInvalidID, id)
	}
	parsed.Version = version
	return parsed, nil
}

// ValidateFormat reports whether the identifier is the NEW sentinel or a
// well-formed draft or published identifier.
func ValidateFormat(id string) error {
	if id == NewObjectToken {
		return nil
	}
	_, err := ParseObjectID(id)
	return err
}

// parseName splits PREFIX_NNNNNN into its prefix and sequence
func parseName(name string) (string, int64, error) {
	i := strings.LastIndex(name, "_")
	if i <= 0 || i == len(name)-1 {
		return "", 0, ErrInvalidID
	}
	prefix, digits := name[:i], name[i+1:]
	for _, c := range prefix {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return "", 0, ErrInvalidID
		}
	}
	sequence, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || sequence < 1 {
		return "", 0, ErrInvalidID
	}
	return prefix, sequence, nil
}
