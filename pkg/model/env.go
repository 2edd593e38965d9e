package model

// EnvVar is a single environment override: set Name to the secret's
// value, or unset it when the secret is absent.
type EnvVar struct {
	Name  string
	Value Secret
}

// Set builds an override that sets name to value.
func Set(name, value string) EnvVar {
	return EnvVar{Name: name, Value: NewSecret(value)}
}

// Unset builds an override that removes name.
func Unset(name string) EnvVar {
	return EnvVar{Name: name, Value: UnsetSecret()}
}

func (v EnvVar) String() string {
	return v.Name + "=" + v.Value.String()
}
