// SPDX-License-Identifier: MPL-2.0

package task

import (
	"strings"
)

// ParseInvocation parses "name[:arg,key=value,...]" against reg.
//
// Bare values are positional and fill the task's declared arguments in
// order; key=value pairs name an argument directly. A backslash escapes the
// next character, so "msg=a\,b" passes "a,b". Declared defaults fill
// arguments that were not given.
func ParseInvocation(reg *Registry, input string) (*Call, error) {
	name, rest, hasArgs := cutUnescaped(input, ':')
	name = unescape(strings.TrimSpace(name))
	if name == "" {
		return nil, &InvalidInvocationError{Input: input, Reason: "empty task name"}
	}

	t, err := reg.Lookup(name)
	if err != nil {
		return nil, err
	}

	args := Args{}
	if hasArgs && rest != "" {
		positional := 0
		for _, part := range splitUnescaped(rest, ',') {
			key, value, named := cutUnescaped(part, '=')
			if !named {
				if positional >= len(t.Args) {
					return nil, &InvalidInvocationError{Input: input, Reason: "too many positional arguments"}
				}
				key, value = t.Args[positional].Name, part
				positional++
			} else {
				key = unescape(strings.TrimSpace(key))
				if _, ok := t.Arg(key); !ok {
					return nil, &UnknownArgError{Task: t.Name, Arg: key}
				}
			}
			if _, dup := args[key]; dup {
				return nil, &InvalidInvocationError{Input: input, Reason: "argument " + key + " given twice"}
			}
			args[key] = unescape(value)
		}
	}

	for _, a := range t.Args {
		if _, ok := args[a.Name]; ok {
			continue
		}
		if !a.HasDefault {
			return nil, &MissingArgError{Task: t.Name, Arg: a.Name}
		}
		args[a.Name] = a.Default
	}

	return NewCall(t, args), nil
}

// cutUnescaped splits s around the first sep not preceded by a backslash.
func cutUnescaped(s string, sep byte) (before, after string, found bool) {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case sep:
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}

// splitUnescaped splits s on every sep not preceded by a backslash.
func splitUnescaped(s string, sep byte) []string {
	var parts []string
	for {
		before, after, found := cutUnescaped(s, sep)
		parts = append(parts, before)
		if !found {
			return parts
		}
		s = after
	}
}

// unescape drops the backslash from every escape sequence.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// escapeArg is the inverse of unescape for the separators ParseInvocation uses.
func escapeArg(s string) string {
	return strings.NewReplacer(`\`, `\\`, `,`, `\,`, `=`, `\=`, `:`, `\:`).Replace(s)
}
