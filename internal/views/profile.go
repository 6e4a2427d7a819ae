package views

import (
	"context"
	"strings"

	"github.com/atinyakov/staffonic/internal/identity"
	"github.com/atinyakov/staffonic/internal/models"
	"github.com/atinyakov/staffonic/internal/session"
)

// ProfileEditor updates the identity profile.
type ProfileEditor interface {
	UpdateProfile(ctx context.Context, p identity.Profile) (models.Identity, error)
}

// StateSource is the resolver as seen by views.
type StateSource interface {
	Current() session.State
	Refresh(ctx context.Context) error
}

// Profile is the signed-in user's own page.
type Profile struct {
	DisplayName string       `json:"displayName"`
	Email       string       `json:"email"`
	PhotoURL    string       `json:"photoURL"`
	User        *models.User `json:"user,omitempty"`
}

// CurrentProfile builds the profile page from the resolver state.
func CurrentProfile(src StateSource) (Profile, error) {
	st := src.Current()
	if !st.SignedIn() {
		return Profile{}, fail("load profile", identity.ErrNoSession)
	}
	return Profile{
		DisplayName: st.Identity.DisplayName,
		Email:       st.Identity.Email,
		PhotoURL:    st.Identity.PhotoURL,
		User:        st.User,
	}, nil
}

// UpdateProfile changes display name and photo, then refreshes the resolver.
func UpdateProfile(ctx context.Context, ed ProfileEditor, src StateSource, name, photoURL string) (Profile, error) {
	const op = "update profile"

	name = strings.TrimSpace(name)
	if name == "" {
		return Profile{}, invalid(op, "name is required")
	}
	id, err := ed.UpdateProfile(ctx, identity.Profile{DisplayName: name, PhotoURL: strings.TrimSpace(photoURL)})
	if err != nil {
		return Profile{}, fail(op, err)
	}
	// the poller retries on failure
	_ = src.Refresh(ctx)

	return Profile{
		DisplayName: id.DisplayName,
		Email:       id.Email,
		PhotoURL:    id.PhotoURL,
		User:        src.Current().User,
	}, nil
}
