package state

import (
	"errors"
	"fmt"
	"strings"

	"github.com/churn-dev/churn/internal/types"
)

// FindLoop resolves a full loop id or a unique id prefix to its stored
// state. Ambiguous prefixes are an error rather than a guess.
func FindLoop(s Store, idOrPrefix string) (*types.LoopState, error) {
	st, err := s.Load(idOrPrefix)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	all, err := s.List()
	if err != nil {
		return nil, err
	}
	var matches []*types.LoopState
	for _, candidate := range all {
		if strings.HasPrefix(candidate.ID, idOrPrefix) {
			matches = append(matches, candidate)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("loop %s: %w", idOrPrefix, ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		ids := make([]string, len(matches))
		for i, m := range matches {
			ids[i] = m.ID
		}
		return nil, fmt.Errorf("loop id prefix %q is ambiguous: matches %s",
			idOrPrefix, strings.Join(ids, ", "))
	}
}
