package domain

// Roles understood by the console. The backend currently issues only "admin".
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)

// User is the operator account returned by the auth endpoints.
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
	// Timestamps are kept as sent; the backend emits both RFC3339 and date-only forms.
	CreatedAt string  `json:"created_at"`
	LastLogin *string `json:"last_login,omitempty"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// IsOperator reports whether the user may drive listeners.
func (u *User) IsOperator() bool {
	return u != nil && (u.Role == RoleOperator || u.Role == RoleAdmin)
}
