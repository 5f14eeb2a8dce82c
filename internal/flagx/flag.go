// Package flagx lets each binary's config layer parse only the flags it
// owns out of os.Args, so the JSON path flag and the per-binary flags can be
// read in separate passes.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs keeps only the allowed flags and their values. Both "-f value"
// and "-f=value" forms are recognised; a following token that starts with
// '-' is never taken as a value.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, ok := strings.Cut(arg, "="); ok && strings.HasPrefix(arg, "-") {
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}
	return filtered
}

// Parse defines flags with define and parses the matching subset of
// os.Args. Unparseable values panic, as configuration errors are fatal at
// startup.
func Parse(name string, define func(fs *flag.FlagSet)) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	define(fs)

	var names []string
	fs.VisitAll(func(f *flag.Flag) { names = append(names, "-"+f.Name) })

	if err := fs.Parse(FilterArgs(os.Args[1:], names)); err != nil {
		panic(err)
	}
}

// ConfigPath returns the JSON config file given with -c or -config, or "".
func ConfigPath() string {
	var config string

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.StringVar(&config, "config", "", "Path to config file")
	fs.StringVar(&config, "c", "", "Path to config file (short)")
	_ = fs.Parse(FilterArgs(os.Args[1:], []string{"-c", "-config"}))

	return config
}
