package store

// User is the only persisted entity. A user carries local credentials
// (username + password material), a google id, or both. Unset optional
// fields are empty strings / nil slices and stored as NULL.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username,omitempty"`
	PasswordHash []byte `json:"-"`
	PasswordSalt []byte `json:"-"`
	GoogleID     string `json:"google_id,omitempty"`
	Name         string `json:"name,omitempty"`
	Secret       string `json:"secret,omitempty"`
}

// DisplayName is what the secrets page shows next to a shared secret.
func (u *User) DisplayName() string {
	switch {
	case u.Username != "":
		return u.Username
	case u.Name != "":
		return u.Name
	default:
		return "Anonymous"
	}
}

type Session struct {
	ID        string `json:"id"`
	UserID    int64  `json:"user_id"`
	ExpiresAt int64  `json:"expires_at"`
}
