package employee

// Person is an active employee as seen by the payroll engine. It is resolved once at the
// data-fetch boundary and treated as read-only afterwards.
type Person struct {
	ID         string
	BusinessID string
	// UserID links the employee to the POS system user; orders are attributed through it.
	UserID     *string
	FullName   string
	PostID     string
	PostName   string
	CategoryID string
	// CategoryName is only used for report rendering.
	CategoryName string
}

// HasUser reports whether orders can be attributed to the person.
func (p Person) HasUser() bool {
	return p.UserID != nil && *p.UserID != ""
}
