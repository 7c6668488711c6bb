package billing

import "strings"

// Source is one billing account queried independently.
type Source struct {
	Key         string
	Credential  string
	Destination string
}

// NewSource validates and constructs a Source.
func NewSource(key, credential, destination string) (Source, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Source{}, ErrEmptySourceKey
	}
	return Source{
		Key:         key,
		Credential:  strings.TrimSpace(credential),
		Destination: strings.TrimSpace(destination),
	}, nil
}

// HasCredential reports whether the source can be queried.
func (s Source) HasCredential() bool {
	return s.Credential != ""
}
