// Command spineldb-cli is an interactive RESP client with line editing and
// history, in the spirit of redis-cli.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package main

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/pflag"

	"github.com/spineldb/spineldb/resp"
)

func main() {
	addr := pflag.String("addr", "127.0.0.1:7878", "server address")
	pflag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot connect to %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()
	r := resp.NewReader(conn)
	w := resp.NewWriter(conn)

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	prompt := *addr + "> "
	for {
		input, err := line.Prompt(prompt)
		if err != nil {
			fmt.Println()
			return
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)
		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			return
		}

		parts := splitArgs(input)
		frames := make([]resp.Value, len(parts))
		for i, p := range parts {
			frames[i] = resp.BulkString(p)
		}
		if err := w.Write(resp.ArrV(frames)); err != nil {
			fmt.Fprintf(os.Stderr, "write: %v\n", err)
			return
		}
		if err := w.Flush(); err != nil {
			fmt.Fprintf(os.Stderr, "flush: %v\n", err)
			return
		}
		reply, err := r.ReadValue()
		if err != nil {
			fmt.Fprintf(os.Stderr, "read: %v\n", err)
			return
		}
		printValue(reply, 0)
	}
}

// splitArgs honors double-quoted arguments with backslash escapes.
func splitArgs(s string) []string {
	var out []string
	var cur strings.Builder
	inQuote := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && inQuote && i+1 < len(s):
			i++
			cur.WriteByte(s[i])
		case c == '"':
			inQuote = !inQuote
		case c == ' ' && !inQuote:
			if cur.Len() > 0 {
				out = append(out, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteByte(c)
		}
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

func printValue(v resp.Value, depth int) {
	indent := strings.Repeat("  ", depth)
	switch v.Kind {
	case resp.KindSimple:
		fmt.Printf("%s%s\n", indent, v.Str)
	case resp.KindError:
		fmt.Printf("%s(error) %s\n", indent, v.Str)
	case resp.KindInteger:
		fmt.Printf("%s(integer) %d\n", indent, v.Int)
	case resp.KindBulk:
		fmt.Printf("%s%s\n", indent, strconv.Quote(string(v.Bulk)))
	case resp.KindNull:
		fmt.Printf("%s(nil)\n", indent)
	case resp.KindNullArray:
		fmt.Printf("%s(nil)\n", indent)
	case resp.KindArray:
		if len(v.Array) == 0 {
			fmt.Printf("%s(empty array)\n", indent)
			return
		}
		for i, el := range v.Array {
			fmt.Printf("%s%d)", indent, i+1)
			printValue(el, depth+1)
		}
	}
}
