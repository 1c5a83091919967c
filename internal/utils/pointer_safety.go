package utils

// Value dereferences v, returning the zero value for a nil pointer. Used
// when reading optional wire fields such as token response members.
func Value[T any](v *T) T {
	if v == nil {
		return *new(T)
	}
	return *v
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
