package environment

const (
	tactEnvPrefix = "TACT_"
)

// WithTactPrefix namespaces an environment variable name under the tact
// prefix, e.g. "MAXIMUM_NUMBER_WORKERS" -> "TACT_MAXIMUM_NUMBER_WORKERS".
func WithTactPrefix(variable string) string {
	return tactEnvPrefix + variable
}
