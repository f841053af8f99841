package safety

// Secret wraps a credential-bearing value so it is stored in full but can
// only reach a tool-facing projection through Mask, never accidentally via
// a struct literal copy or a naive JSON marshal of the underlying type.
type Secret[T comparable] struct {
	value T
}

// NewSecret wraps value.
func NewSecret[T comparable](value T) Secret[T] {
	return Secret[T]{value: value}
}

// Reveal returns the plaintext value. Callers must only invoke this from a
// dedicated reveal tool (requiresApproval=true, confirm-gated per the
// confirm-literal gate).
func (s Secret[T]) Reveal() T {
	return s.value
}

// Present reports whether the wrapped value is non-zero.
func (s Secret[T]) Present() bool {
	var zeroT T
	return s.value != zeroT
}

// Masked is the tool-facing projection of a Secret: every "get"/"list" tool
// returns this instead of the plaintext, replacing the credential with a
// masked/present pair.
type Masked struct {
	Masked  bool `json:"masked"`
	Present bool `json:"present"`
}

// Mask projects a Secret into its masked wire representation.
func Mask[T comparable](s Secret[T]) Masked {
	return Masked{Masked: true, Present: s.Present()}
}
