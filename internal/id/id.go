// Package id generates and validates the TypeID identifiers used for diary
// entries and users ("entry_01h2xcejqtf2nbrexx3vqjhp41").
package id

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in an id.
type Prefix string

const (
	PrefixEntry Prefix = "entry"
	PrefixUser  Prefix = "user"
)

// New generates a new K-sortable id with the given prefix.
// It panics if prefix is not a valid TypeID prefix.
func New(prefix Prefix) string {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return tid.String()
}

// Parse validates s and checks that it carries the expected prefix. The
// canonical string form is returned.
func Parse(s string, expected Prefix) (string, error) {
	if s == "" {
		return "", fmt.Errorf("id: parse %q: empty string", s)
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("id: parse %q: %w", s, err)
	}
	if Prefix(tid.Prefix()) != expected {
		return "", fmt.Errorf("id: expected prefix %q, got %q", expected, tid.Prefix())
	}
	return tid.String(), nil
}

// NewEntryID generates a new diary entry id.
func NewEntryID() string { return New(PrefixEntry) }

// NewUserID generates a new user id.
func NewUserID() string { return New(PrefixUser) }

// ParseEntryID parses a diary entry id.
func ParseEntryID(s string) (string, error) { return Parse(s, PrefixEntry) }
