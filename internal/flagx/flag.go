// Package flagx extracts a subset of flags from an argument list so that
// configuration loading can coexist with the CLI command tree parsing the
// same os.Args.
package flagx

import (
	"flag"
	"io"
	"strings"
)

// FilterArgs returns the elements of args that belong to allowed flags,
// keeping their values. Both "-f value" and "-f=value" forms are recognized;
// a separate value is taken only when the next argument is not itself a flag.
// The result is never nil.
func FilterArgs(args []string, allowed []string) []string {
	set := make(map[string]struct{}, len(allowed))
	for _, f := range allowed {
		set[f] = struct{}{}
	}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, ok := strings.Cut(arg, "="); ok && strings.HasPrefix(arg, "-") {
			if _, keep := set[name]; keep {
				out = append(out, arg)
			}
			continue
		}

		if _, keep := set[arg]; !keep {
			continue
		}
		out = append(out, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			out = append(out, args[i+1])
			i++
		}
	}
	return out
}

// ConfigFile returns the JSON config path passed via -c or -config, or ""
// when neither is present.
func ConfigFile(args []string) string {
	var path string

	fs := flag.NewFlagSet("config-file", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"-c", "-config", "--config"}))

	return path
}
