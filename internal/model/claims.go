package model

// Claims are the identity and role facts carried inside a signed token.
// Role and LDAP stay authoritative until the token is re-issued; they are
// not re-checked against the users table on every request.
type Claims struct {
    ID       uint64 `json:"id"`
    Username string `json:"username"`
    Role     Role   `json:"role"`
    LDAP     bool   `json:"ldap"`
}

// UserProfile is the display subset of a user that clients keep next to
// their token.  It is a cache of the claims, replaced wholesale on login.
type UserProfile struct {
    ID       uint64 `json:"id"`
    Username string `json:"username"`
    FullName string `json:"full_name"`
    Email    string `json:"email"`
    Role     Role   `json:"role"`
    LDAP     bool   `json:"ldap"`
}
