// Package command implements the typed command surface: parsing RESP
// argument vectors into closed-world command values, the lock planner
// binding, and per-command execution against the sharded keyspace.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package command

import (
	"math"
	"strconv"
	"strings"

	"github.com/spineldb/spineldb/cmn"
	"github.com/spineldb/spineldb/resp"
)

func parseInt(b []byte) (int64, error) {
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, cmn.ErrNotAnInteger
	}
	return n, nil
}

func parseFloat(b []byte) (float64, error) {
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil || math.IsNaN(f) {
		return 0, cmn.ErrNotAFloat
	}
	return f, nil
}

// formatFloat renders scores and INCRBYFLOAT results the way the wire
// protocol expects: no exponent, no trailing zeros.
func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e17 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func eqFold(b []byte, s string) bool { return strings.EqualFold(string(b), s) }

func toStrings(args [][]byte) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = string(a)
	}
	return out
}

// bulkArray renders a list of byte strings as an Array of Bulk Strings.
func bulkArray(items [][]byte) resp.Value {
	arr := make([]resp.Value, len(items))
	for i, it := range items {
		arr[i] = resp.Bulk(it)
	}
	return resp.ArrV(arr)
}

func stringArray(items []string) resp.Value {
	arr := make([]resp.Value, len(items))
	for i, it := range items {
		arr[i] = resp.BulkString(it)
	}
	return resp.ArrV(arr)
}

// normalizeRange converts a possibly-negative [start, stop] request against a
// collection of length n into concrete bounds; ok=false means empty.
func normalizeRange(start, stop, n int64) (int64, int64, bool) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop || start >= n {
		return 0, 0, false
	}
	return start, stop, true
}

// timeoutSeconds parses the trailing timeout of blocking commands; zero
// means block indefinitely and a negative value is rejected.
func timeoutSeconds(b []byte) (float64, error) {
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return 0, cmn.NewErr(cmn.KindNotAFloat, "timeout is not a float or out of range")
	}
	if f < 0 {
		return 0, cmn.NewErr(cmn.KindInvalidRequest, "timeout is negative")
	}
	return f, nil
}
