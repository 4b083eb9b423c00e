// Package cmn provides common constants, types, and utilities shared by all
// SpinelDB packages.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package cmn

import (
	"regexp"
	"strings"
)

// CompileGlob converts a Redis-style glob pattern (*, ?, [class], \x) into an
// anchored regular expression. Character classes pass through unescaped,
// including a leading '^' negation.
func CompileGlob(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.Grow(len(pattern) * 2)
	sb.WriteByte('^')
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteByte('.')
		case '[':
			sb.WriteByte('[')
			if i+1 < len(pattern) && pattern[i+1] == '^' {
				sb.WriteByte('^')
				i++
			}
			for i++; i < len(pattern); i++ {
				if pattern[i] == ']' {
					break
				}
				sb.WriteByte(pattern[i])
			}
			sb.WriteByte(']')
		case '\\':
			if i+1 < len(pattern) {
				i++
				sb.WriteString(regexp.QuoteMeta(string(pattern[i])))
			}
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	sb.WriteByte('$')
	return regexp.Compile(sb.String())
}

// GlobMatch is a convenience wrapper for one-shot matching; malformed
// patterns match nothing.
func GlobMatch(pattern, s string) bool {
	re, err := CompileGlob(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}
