package helpers

// PtrOf returns a pointer to a copy of t.
//
// Example:
//
//	cfg.Temperature = helpers.PtrOf(0.0)
func PtrOf[T any](t T) *T { return &t }
