package bungie

import (
	"context"
	"fmt"
)

// Membership identifies a Destiny account on a single platform.
type Membership struct {
	MembershipID      string `json:"membershipId"`
	MembershipType    int    `json:"membershipType"`
	CrossSaveOverride int    `json:"crossSaveOverride"`
	DisplayName       string `json:"displayName"`
}

type bungieNameSearch struct {
	DisplayName     string `json:"displayName"`
	DisplayNameCode string `json:"displayNameCode"`
}

// ResolveIdentity looks up the Destiny memberships for a Bungie name
// (displayName#code) across all platforms and selects the player's
// primary one.
func (c *Client) ResolveIdentity(ctx context.Context, displayName, code string) (*Membership, error) {
	endpoint := fmt.Sprintf("%s/Destiny2/SearchDestinyPlayerByBungieName/-1/", c.platformBaseURL)

	var memberships []Membership
	body := bungieNameSearch{DisplayName: displayName, DisplayNameCode: code}
	if err := c.post(ctx, endpoint, body, &memberships); err != nil {
		return nil, &FetchError{Stage: "identity", Err: err}
	}

	if len(memberships) == 0 {
		return nil, ErrIdentityNotFound
	}

	primary := selectPrimaryMembership(memberships)
	return &primary, nil
}

// selectPrimaryMembership applies cross-save resolution: when a player has
// several linked platform memberships, the entry whose crossSaveOverride
// matches its own membershipType is the designated primary. Without an
// override the first entry returned wins.
func selectPrimaryMembership(memberships []Membership) Membership {
	if len(memberships) == 1 {
		return memberships[0]
	}
	for _, m := range memberships {
		if m.CrossSaveOverride != 0 && m.CrossSaveOverride == m.MembershipType {
			return m
		}
	}
	return memberships[0]
}
