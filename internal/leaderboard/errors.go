package leaderboard

import (
	"errors"
	"fmt"
)

// ErrIncompleteProfile means the account's in-game progression is not
// publicly visible, so the profile payload lacks the progression
// components. Terminal for that player and user-facing, not a bug.
var ErrIncompleteProfile = errors.New("account progression is not public")

// NormalizationError reports a malformed or unexpected payload shape
// encountered while flattening raw Bungie data into a PlayerRecord. It
// aborts that player's refresh without aborting the batch.
type NormalizationError struct {
	Field  string
	Detail string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %s: %s", e.Field, e.Detail)
}
