package config

import "time"

// CIEnvVar marks a continuous-integration run when set to "true".
const CIEnvVar = "CONTINUOUS_INTEGRATION"

// ResolveVars returns the template variables for a run: manifest vars,
// with ci_vars layered on top when getenv(CIEnvVar) is "true".
func (m *Manifest) ResolveVars(getenv func(string) string) map[string]string {
	vars := make(map[string]string, len(m.Vars)+len(m.CIVars))
	for k, v := range m.Vars {
		vars[k] = v
	}
	if getenv != nil && getenv(CIEnvVar) == "true" {
		for k, v := range m.CIVars {
			vars[k] = v
		}
	}
	return vars
}

// KillGraceDuration parses kill_grace; zero means the registry default.
func (d Defaults) KillGraceDuration() (time.Duration, error) {
	return parseDuration(d.KillGrace)
}

// CallbackTimeoutDuration parses callback_timeout; zero means the
// coordinator default.
func (d Defaults) CallbackTimeoutDuration() (time.Duration, error) {
	return parseDuration(d.CallbackTimeout)
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
