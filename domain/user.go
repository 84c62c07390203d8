package domain

// User is an externally managed identity. The core reads the collection but
// never mutates it.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Nickname string `json:"nickname,omitempty"`
}
