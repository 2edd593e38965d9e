package model

// Secret wraps an optional environment value so default formatting can
// never leak it. A present value renders as <redacted>, an absent one as
// <unset>; only Expose returns the plaintext.
type Secret struct {
	value   string
	present bool
}

// NewSecret wraps a present value.
func NewSecret(value string) Secret {
	return Secret{value: value, present: true}
}

// UnsetSecret represents an absent value (the variable is removed).
func UnsetSecret() Secret {
	return Secret{}
}

// Present reports whether a value exists at all.
func (s Secret) Present() bool {
	return s.present
}

// Expose returns the plaintext value. Call it only at the point the
// variable is applied to the live process environment.
func (s Secret) Expose() (string, bool) {
	return s.value, s.present
}

func (s Secret) String() string {
	if !s.present {
		return "<unset>"
	}
	return "<redacted>"
}

// GoString keeps %#v output redacted as well.
func (s Secret) GoString() string {
	return "model.Secret(" + s.String() + ")"
}
