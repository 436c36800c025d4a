package model

import "time"

// User represents an account row as stored in the `users` table.  Each
// field corresponds to a column.  Handlers never return this struct
// directly; they project it into a UserProfile.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Username     – unique login name.
//  FullName     – display name.
//  Email        – contact address.
//  PasswordHash – bcrypt hashed password.
//  Role         – privilege level (admin, manager or user).
//  LDAP         – account is backed by the directory rather than a local password policy.
//  IsActive     – whether the account may log in.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
    ID           uint64    // users.id
    Username     string    // users.username
    FullName     string    // users.full_name
    Email        string    // users.email
    PasswordHash string    // users.password_hash
    Role         Role      // users.role
    LDAP         bool      // users.ldap
    IsActive     bool      // users.is_active
    CreatedAt    time.Time // users.created_at
    UpdatedAt    time.Time // users.updated_at
}

// Profile projects the row into the display-oriented profile cached by
// clients next to their token.
func (u User) Profile() UserProfile {
    return UserProfile{
        ID:       u.ID,
        Username: u.Username,
        FullName: u.FullName,
        Email:    u.Email,
        Role:     u.Role,
        LDAP:     u.LDAP,
    }
}

// Claims projects the row into the identity facts embedded in a token.
func (u User) Claims() Claims {
    return Claims{
        ID:       u.ID,
        Username: u.Username,
        Role:     u.Role,
        LDAP:     u.LDAP,
    }
}
