package role

import "sort"

// Name is one of the fixed role labels a user can hold.
type Name string

const (
	Student   Name = "STUDENT"
	Professor Name = "PROFESSOR"
	Admin     Name = "ADMIN"
)

func (n Name) Valid() bool {
	switch n {
	case Student, Professor, Admin:
		return true
	}
	return false
}

// Assignable lists the roles offered to clients when creating users.
func Assignable() []Name {
	return []Name{Student, Professor}
}

// Set is the capability set of a single user, computed once per request.
type Set map[Name]struct{}

func NewSet(names ...Name) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// ParseSet builds a Set from raw role names, dropping unknown labels.
func ParseSet(raw []string) Set {
	s := make(Set, len(raw))
	for _, r := range raw {
		if n := Name(r); n.Valid() {
			s[n] = struct{}{}
		}
	}
	return s
}

func (s Set) Has(n Name) bool {
	_, ok := s[n]
	return ok
}

func (s Set) HasAny(names ...Name) bool {
	for _, n := range names {
		if s.Has(n) {
			return true
		}
	}
	return false
}

func (s Set) IsAdmin() bool {
	return s.Has(Admin)
}

// IsOnlyStudent reports a student that holds no privileged role alongside.
func (s Set) IsOnlyStudent() bool {
	return s.Has(Student) && !s.HasAny(Professor, Admin)
}

// Names returns the held roles in a stable order.
func (s Set) Names() []Name {
	out := make([]Name, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s Set) Strings() []string {
	names := s.Names()
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return out
}
