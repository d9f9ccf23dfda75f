package models

// PersonRole disambiguates rows of the movies_persons join table.
type PersonRole string

// Person roles
const (
	RoleDirector PersonRole = "director"
	RoleCast     PersonRole = "cast"
)

// Valid reports whether r is a known role.
func (r PersonRole) Valid() bool {
	return r == RoleDirector || r == RoleCast
}

// Person is someone credited on a movie, either as director or cast.
type Person struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Genre is a movie genre.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}
