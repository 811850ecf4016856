package dispatch

import (
	"fmt"
	"sort"

	"devrun.dev/internal/config"
)

// ResolveParams applies parameter defaults and checks that every required
// parameter is present. Unknown parameters are rejected.
func ResolveParams(cmd config.Command, params map[string]string) (map[string]string, error) {
	result := make(map[string]string, len(cmd.Parameters))

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := cmd.Parameters[name]; !ok {
			return nil, fmt.Errorf("unknown parameter --%s", name)
		}
		result[name] = params[name]
	}

	for name, param := range cmd.Parameters {
		if _, exists := result[name]; !exists && param.Default != nil {
			result[name] = *param.Default
		}
	}

	var missing []string
	for name, param := range cmd.Parameters {
		if _, ok := result[name]; !ok && param.Required {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("required parameter --%s is missing", missing[0])
	}

	return result, nil
}
