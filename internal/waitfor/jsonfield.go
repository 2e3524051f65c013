package waitfor

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// WithJSONField requires some line of the output to be valid JSON
// whose field at path equals want. The path uses gjson syntax, so
// nested fields ("server.status") and array elements ("ports.0") work.
// Non-JSON lines are skipped, which lets the condition coexist with
// ordinary log output on the same stream.
func WithJSONField(path, want string) Option {
	name := fmt.Sprintf("json field %s=%q", path, want)
	return WithPredicate(name, func(buffer string) bool {
		for _, line := range strings.Split(buffer, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || !gjson.Valid(line) {
				continue
			}
			if v := gjson.Get(line, path); v.Exists() && v.String() == want {
				return true
			}
		}
		return false
	})
}
