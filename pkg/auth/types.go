package auth

import "maps"

// User is the cached profile returned by the Auth Service.
// The cache can go stale; it is refreshed on login and verify only.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name,omitempty"`
	Role        string `json:"role,omitempty"`
	PlanTier    string `json:"planTier,omitempty"`
	IPAddress   string `json:"ipAddress,omitempty"`
	LastLoginIP string `json:"lastLoginIp,omitempty"`
	Avatar      string `json:"avatar,omitempty"`

	// Attributes carries profile fields this package does not model.
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Clone returns a deep copy of the user. A nil receiver returns nil.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Attributes = maps.Clone(u.Attributes)
	return &c
}

// HasRole reports whether the user carries the given role.
func (u *User) HasRole(role string) bool {
	return u != nil && role != "" && u.Role == role
}

// UserPatch is a partial update to a User. Nil fields are left untouched.
type UserPatch struct {
	Email       *string
	Name        *string
	Role        *string
	PlanTier    *string
	IPAddress   *string
	LastLoginIP *string
	Avatar      *string

	// Attributes are merged key by key; a nil value deletes the key.
	Attributes map[string]any
}

// Apply returns a copy of u with the patch merged in.
func (u *User) Apply(p UserPatch) *User {
	if u == nil {
		return nil
	}
	out := u.Clone()
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&out.Email, p.Email)
	set(&out.Name, p.Name)
	set(&out.Role, p.Role)
	set(&out.PlanTier, p.PlanTier)
	set(&out.IPAddress, p.IPAddress)
	set(&out.LastLoginIP, p.LastLoginIP)
	set(&out.Avatar, p.Avatar)

	for k, v := range p.Attributes {
		if v == nil {
			delete(out.Attributes, k)
			continue
		}
		if out.Attributes == nil {
			out.Attributes = make(map[string]any, len(p.Attributes))
		}
		out.Attributes[k] = v
	}
	return out
}

// Session is the persisted authentication state of one client.
type Session struct {
	SessionToken  string
	RefreshToken  string
	User          *User
	Authenticated bool
}

// HasToken reports whether a session token is present.
func (s Session) HasToken() bool {
	return s.SessionToken != ""
}

// Tokens is the credential pair issued by login and refresh.
type Tokens struct {
	SessionToken string `json:"sessionToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}
