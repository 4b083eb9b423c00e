// Package cmn provides common constants, types, and utilities.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package cmn

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompileGlob(t *testing.T) {
	tests := []struct {
		pattern string
		subject string
		match   bool
	}{
		{"*", "anything", true},
		{"*", "", true},
		{"user:*", "user:42", true},
		{"user:*", "users:42", false},
		{"h?llo", "hello", true},
		{"h?llo", "hallo", true},
		{"h?llo", "hllo", false},
		{"h[ae]llo", "hello", true},
		{"h[ae]llo", "hallo", true},
		{"h[ae]llo", "hillo", false},
		{"h[^e]llo", "hallo", true},
		{"h[^e]llo", "hello", false},
		{`h\*llo`, "h*llo", true},
		{`h\*llo`, "hxllo", false},
		{"key.1", "key.1", true},
		{"key.1", "keyx1", false}, // dot is literal, not regex any
		{"", "", true},
		{"", "x", false},
	}
	for _, tc := range tests {
		re, err := CompileGlob(tc.pattern)
		require.NoError(t, err, "pattern %q", tc.pattern)
		require.Equal(t, tc.match, re.MatchString(tc.subject),
			"pattern %q vs %q", tc.pattern, tc.subject)
	}
}

func TestGlobMatchAnchored(t *testing.T) {
	// Patterns must match the whole subject, never a substring.
	require.False(t, GlobMatch("foo", "foobar"))
	require.False(t, GlobMatch("bar", "foobar"))
	require.True(t, GlobMatch("foo*", "foobar"))
}

func TestErrWireFormats(t *testing.T) {
	require.Equal(t, "WRONGTYPE Operation against a key holding the wrong kind of value", ErrWrongType.Wire())
	require.Equal(t, "NOAUTH Authentication required", ErrAuthRequired.Wire())
	require.Equal(t, "MOVED 3999 10.0.0.2:7878", ErrMoved(3999, "10.0.0.2:7878").Wire())
	require.Equal(t, "ASK 42 10.0.0.3:7878", ErrAsk(42, "10.0.0.3:7878").Wire())
	require.Equal(t, "CROSSSLOT Keys in request don't hash to the same slot", ErrCrossSlot.Wire())
	require.Equal(t, "ERR wrong number of arguments for 'get' command", ErrWrongArgCount("get").Wire())
	require.Equal(t, "OOM command not allowed when used memory > 'maxmemory'", ErrMaxMemory.Wire())
	require.Equal(t, "ERR internal server error", ErrInternal("secret detail").Wire(),
		"internal detail never reaches the wire")
	require.True(t, IsKind(ErrWrongType, KindWrongType))
	require.False(t, IsKind(ErrWrongType, KindSyntax))
}
