// Package flagx lets packages parse their own command-line flags without
// tripping over flags owned by other packages: argv is filtered down to an
// allowed set before being handed to a flag.FlagSet.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs returns the subset of args belonging to allowedFlags, in their
// original order. Recognized token shapes are "-f value", a bare "-f", and
// "-f=value"; the equals form matters because the flag package accepts it
// from users even where the help text only shows the spaced form.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]bool, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = true
	}

	kept := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case allowed[flagName(arg)] && strings.Contains(arg, "="):
			kept = append(kept, arg)
		case allowed[arg]:
			kept = append(kept, arg)
			// A following token that starts with "-" is the next flag, not
			// this one's value.
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				i++
				kept = append(kept, args[i])
			}
		}
	}
	return kept
}

// flagName strips the "=value" part of a token, if any.
func flagName(arg string) string {
	return strings.SplitN(arg, "=", 2)[0]
}

// JsonConfigFlags extracts the config file path given via -c or -config.
// Absent flags yield ""; when both are present the last one wins.
func JsonConfigFlags() string {
	var config string

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.StringVar(&config, "config", "", "Path to config file")
	fs.StringVar(&config, "c", "", "Path to config file (short)")
	_ = fs.Parse(FilterArgs(os.Args[1:], []string{"-c", "-config"}))

	return config
}
