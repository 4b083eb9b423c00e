// Package resp implements the RESP wire protocol.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package resp

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeWireFormats(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		want string
	}{
		{"simple", Simple("OK"), "+OK\r\n"},
		{"error", Err("ERR boom"), "-ERR boom\r\n"},
		{"integer", Int(1), ":1\r\n"},
		{"negative integer", Int(-2), ":-2\r\n"},
		{"bulk", BulkString("bar"), "$3\r\nbar\r\n"},
		{"empty bulk", Bulk([]byte{}), "$0\r\n\r\n"},
		{"null", Null(), "$-1\r\n"},
		{"null array", NullArray(), "*-1\r\n"},
		{"array", Arr(Int(1), Int(2)), "*2\r\n:1\r\n:2\r\n"},
		{"nested", Arr(BulkString("q"), BulkString("hello")), "*2\r\n$1\r\nq\r\n$5\r\nhello\r\n"},
		{"multi", Multi(Simple("a"), Simple("b")), "+a\r\n+b\r\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, string(Encode(tc.in)))
		})
	}
}

func TestReadValueRoundTrip(t *testing.T) {
	vals := []Value{
		Simple("PONG"),
		Err("WRONGTYPE Operation against a key holding the wrong kind of value"),
		Int(42),
		BulkString("payload with\r\nbinary\x00bytes"),
		Null(),
		NullArray(),
		Arr(BulkString("a"), Int(7), Arr(Null())),
	}
	for _, v := range vals {
		r := NewReader(bytes.NewReader(Encode(v)))
		got, err := r.ReadValue()
		require.NoError(t, err)
		require.Equal(t, Encode(v), Encode(got))
	}
}

func TestReadCommand(t *testing.T) {
	wire := "*3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n"
	r := NewReader(bytes.NewReader([]byte(wire)))
	args, err := r.ReadCommand()
	require.NoError(t, err)
	require.Len(t, args, 3)
	require.Equal(t, "SET", string(args[0]))
	require.Equal(t, "foo", string(args[1]))
	require.Equal(t, "bar", string(args[2]))
}

func TestReadCommandRejectsGarbage(t *testing.T) {
	for _, wire := range []string{
		"*0\r\n",                  // empty request
		":5\r\n",                  // not an array
		"*1\r\n:5\r\n",            // non-bulk element
		"*1\r\n$3\r\nab\r\r",      // broken CRLF
		"!weird\r\n",              // unknown marker
	} {
		r := NewReader(bytes.NewReader([]byte(wire)))
		_, err := r.ReadCommand()
		require.Error(t, err, "wire %q", wire)
	}
}

func TestWriterFlush(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Write(Simple("OK")))
	require.NoError(t, w.Flush())
	require.Equal(t, "+OK\r\n", buf.String())
}
