// Package command implements the typed command surface: parsing RESP
// argument vectors into closed-world command values, the lock planner
// binding, and per-command execution against the sharded keyspace.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package command

import (
	"math"
	"strings"

	"github.com/spineldb/spineldb/cmn"
	"github.com/spineldb/spineldb/resp"
	"github.com/spineldb/spineldb/store"
)

func init() {
	register("zadd", parseZAdd)
	register("zrem", parseZRem)
	register("zscore", parseZScore)
	register("zcard", parseZCard)
	register("zcount", parseZCount)
	register("zlexcount", parseZLexCount)
	register("zincrby", parseZIncrBy)
	register("zrange", parseZRange(false))
	register("zrevrange", parseZRange(true))
	register("zrangebyscore", parseZRangeByScore)
	register("zrangebylex", parseZRangeByLex)
	register("zpopmin", parseZPop(true))
	register("zpopmax", parseZPop(false))
	register("zremrangebyscore", parseZRemRangeByScore)
	register("zremrangebylex", parseZRemRangeByLex)
	register("zremrangebyrank", parseZRemRangeByRank)
	register("zinterstore", parseZStore("zinterstore"))
	register("zunionstore", parseZStore("zunionstore"))
}

//
// range bound parsing
//

type scoreBound struct {
	val  float64
	excl bool
}

func parseScoreBound(b []byte) (scoreBound, error) {
	s := strings.ToLower(string(b))
	excl := false
	if strings.HasPrefix(s, "(") {
		excl = true
		s = s[1:]
	}
	switch s {
	case "-inf":
		return scoreBound{val: math.Inf(-1), excl: excl}, nil
	case "+inf", "inf":
		return scoreBound{val: math.Inf(1), excl: excl}, nil
	}
	f, err := parseFloat([]byte(s))
	if err != nil {
		return scoreBound{}, cmn.NewErr(cmn.KindNotAFloat, "min or max is not a float")
	}
	return scoreBound{val: f, excl: excl}, nil
}

func (sb scoreBound) admitsMin(score float64) bool {
	if sb.excl {
		return score > sb.val
	}
	return score >= sb.val
}

func (sb scoreBound) admitsMax(score float64) bool {
	if sb.excl {
		return score < sb.val
	}
	return score <= sb.val
}

type lexBound struct {
	val      string
	excl     bool
	infinite bool // "-" for min, "+" for max
}

func parseLexBound(b []byte) (lexBound, error) {
	s := string(b)
	switch s {
	case "-", "+":
		return lexBound{infinite: true}, nil
	}
	switch {
	case strings.HasPrefix(s, "["):
		return lexBound{val: s[1:]}, nil
	case strings.HasPrefix(s, "("):
		return lexBound{val: s[1:], excl: true}, nil
	default:
		return lexBound{}, cmn.NewErr(cmn.KindInvalidRequest, "min or max not valid string range item")
	}
}

func (lb lexBound) admitsMin(m string) bool {
	if lb.infinite {
		return true
	}
	if lb.excl {
		return m > lb.val
	}
	return m >= lb.val
}

func (lb lexBound) admitsMax(m string) bool {
	if lb.infinite {
		return true
	}
	if lb.excl {
		return m < lb.val
	}
	return m <= lb.val
}

// withScores renders entries, optionally interleaving scores.
func withScores(entries []store.ZSetEntry, scores bool) resp.Value {
	out := make([]resp.Value, 0, len(entries)*2)
	for _, en := range entries {
		out = append(out, resp.BulkString(en.Member))
		if scores {
			out = append(out, resp.BulkString(formatFloat(en.Score)))
		}
	}
	return resp.ArrV(out)
}

//
// ZADD
//

type zaddCmd struct {
	base
	entries []store.ZSetEntry
	cond    setCondition
	ch      bool
	incr    bool
}

func parseZAdd(args [][]byte) (Command, error) {
	if len(args) < 3 {
		return nil, cmn.ErrWrongArgCount("zadd")
	}
	c := &zaddCmd{base: mkBase("zadd", cmn.FlagWrite|cmn.FlagDenyOOM, string(args[0]))}
	i := 1
	for ; i < len(args); i++ {
		switch {
		case eqFold(args[i], "nx"):
			if c.cond != condAlways {
				return nil, cmn.ErrSyntax
			}
			c.cond = condIfNotExists
		case eqFold(args[i], "xx"):
			if c.cond != condAlways {
				return nil, cmn.ErrSyntax
			}
			c.cond = condIfExists
		case eqFold(args[i], "ch"):
			c.ch = true
		case eqFold(args[i], "incr"):
			c.incr = true
		default:
			goto members
		}
	}
members:
	rest := args[i:]
	if len(rest) == 0 || len(rest)%2 != 0 {
		return nil, cmn.ErrSyntax
	}
	if c.incr && len(rest) != 2 {
		return nil, cmn.NewErr(cmn.KindInvalidRequest, "INCR option supports a single increment-element pair")
	}
	for j := 0; j < len(rest); j += 2 {
		score, err := parseFloat(rest[j])
		if err != nil {
			return nil, err
		}
		c.entries = append(c.entries, store.ZSetEntry{Member: string(rest[j+1]), Score: score})
	}
	return c, nil
}

func (c *zaddCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	key := c.keys[0]
	sc, e, err := ctx.lookup(key, store.KindZSet)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if e == nil {
		if c.cond == condIfExists {
			if c.incr {
				return resp.Null(), store.DidNotWrite(), nil
			}
			return resp.Int(0), store.DidNotWrite(), nil
		}
		e, _ = sc.GetOrInsertWith(key, ctx.Now, store.NewZSet)
	}
	oldSize := e.Size
	added, changed := int64(0), int64(0)
	var incrResult float64
	for _, en := range c.entries {
		cur, exists := e.Data.ZSet.Score(en.Member)
		if (c.cond == condIfNotExists && exists) || (c.cond == condIfExists && !exists) {
			if c.incr {
				return resp.Null(), store.DidNotWrite(), nil
			}
			continue
		}
		score := en.Score
		if c.incr {
			score += cur
			incrResult = score
		}
		if e.Data.ZSet.Add(en.Member, score) {
			added++
		} else if score != cur {
			changed++
		}
	}
	if added+changed == 0 {
		if c.incr {
			return resp.BulkString(formatFloat(incrResult)), store.DidNotWrite(), nil
		}
		return resp.Int(0), store.DidNotWrite(), nil
	}
	sc.Bump(key, e, oldSize)
	if c.incr {
		return resp.BulkString(formatFloat(incrResult)), store.Wrote(1), nil
	}
	if c.ch {
		return resp.Int(added + changed), store.Wrote(1), nil
	}
	return resp.Int(added), store.Wrote(1), nil
}

//
// ZREM / ZSCORE / ZCARD
//

type zremCmd struct {
	base
	members []string
}

func parseZRem(args [][]byte) (Command, error) {
	if len(args) < 2 {
		return nil, cmn.ErrWrongArgCount("zrem")
	}
	return &zremCmd{base: mkBase("zrem", cmn.FlagWrite, string(args[0])), members: toStrings(args[1:])}, nil
}

func (c *zremCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	key := c.keys[0]
	sc, e, err := ctx.lookup(key, store.KindZSet)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if e == nil {
		return resp.Int(0), store.DidNotWrite(), nil
	}
	oldSize := e.Size
	removed := int64(0)
	for _, m := range c.members {
		if e.Data.ZSet.Remove(m) {
			removed++
		}
	}
	if removed == 0 {
		return resp.Int(0), store.DidNotWrite(), nil
	}
	outcome := store.Wrote(1)
	if e.Data.ZSet.Len() == 0 {
		sc.Pop(key)
		outcome = store.Deleted(1)
	} else {
		sc.Bump(key, e, oldSize)
	}
	return resp.Int(removed), outcome, nil
}

type zscoreCmd struct {
	base
	member string
}

func parseZScore(args [][]byte) (Command, error) {
	if len(args) != 2 {
		return nil, cmn.ErrWrongArgCount("zscore")
	}
	return &zscoreCmd{base: mkBase("zscore", cmn.FlagReadonly, string(args[0])), member: string(args[1])}, nil
}

func (c *zscoreCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	_, e, err := ctx.lookup(c.keys[0], store.KindZSet)
	if err != nil || e == nil {
		return resp.Null(), store.DidNotWrite(), err
	}
	score, ok := e.Data.ZSet.Score(c.member)
	if !ok {
		return resp.Null(), store.DidNotWrite(), nil
	}
	return resp.BulkString(formatFloat(score)), store.DidNotWrite(), nil
}

type zcardCmd struct{ base }

func parseZCard(args [][]byte) (Command, error) {
	if len(args) != 1 {
		return nil, cmn.ErrWrongArgCount("zcard")
	}
	return &zcardCmd{mkBase("zcard", cmn.FlagReadonly, string(args[0]))}, nil
}

func (c *zcardCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	_, e, err := ctx.lookup(c.keys[0], store.KindZSet)
	if err != nil || e == nil {
		return resp.Int(0), store.DidNotWrite(), err
	}
	return resp.Int(int64(e.Data.ZSet.Len())), store.DidNotWrite(), nil
}

//
// ZCOUNT / ZLEXCOUNT
//

type zcountCmd struct {
	base
	min, max scoreBound
}

func parseZCount(args [][]byte) (Command, error) {
	if len(args) != 3 {
		return nil, cmn.ErrWrongArgCount("zcount")
	}
	min, err := parseScoreBound(args[1])
	if err != nil {
		return nil, err
	}
	max, err := parseScoreBound(args[2])
	if err != nil {
		return nil, err
	}
	return &zcountCmd{base: mkBase("zcount", cmn.FlagReadonly, string(args[0])), min: min, max: max}, nil
}

func (c *zcountCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	_, e, err := ctx.lookup(c.keys[0], store.KindZSet)
	if err != nil || e == nil {
		return resp.Int(0), store.DidNotWrite(), err
	}
	n := int64(0)
	for _, en := range e.Data.ZSet.Entries() {
		if c.min.admitsMin(en.Score) && c.max.admitsMax(en.Score) {
			n++
		}
	}
	return resp.Int(n), store.DidNotWrite(), nil
}

type zlexcountCmd struct {
	base
	min, max lexBound
}

func parseZLexCount(args [][]byte) (Command, error) {
	if len(args) != 3 {
		return nil, cmn.ErrWrongArgCount("zlexcount")
	}
	min, err := parseLexBound(args[1])
	if err != nil {
		return nil, err
	}
	max, err := parseLexBound(args[2])
	if err != nil {
		return nil, err
	}
	return &zlexcountCmd{base: mkBase("zlexcount", cmn.FlagReadonly, string(args[0])), min: min, max: max}, nil
}

func (c *zlexcountCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	_, e, err := ctx.lookup(c.keys[0], store.KindZSet)
	if err != nil || e == nil {
		return resp.Int(0), store.DidNotWrite(), err
	}
	n := int64(0)
	for _, en := range e.Data.ZSet.Entries() {
		if c.min.admitsMin(en.Member) && c.max.admitsMax(en.Member) {
			n++
		}
	}
	return resp.Int(n), store.DidNotWrite(), nil
}

//
// ZINCRBY
//

type zincrbyCmd struct {
	base
	member string
	delta  float64
}

func parseZIncrBy(args [][]byte) (Command, error) {
	if len(args) != 3 {
		return nil, cmn.ErrWrongArgCount("zincrby")
	}
	f, err := parseFloat(args[1])
	if err != nil {
		return nil, err
	}
	return &zincrbyCmd{
		base:   mkBase("zincrby", cmn.FlagWrite|cmn.FlagDenyOOM, string(args[0])),
		delta:  f,
		member: string(args[2]),
	}, nil
}

func (c *zincrbyCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	key := c.keys[0]
	sc, e, err := ctx.lookup(key, store.KindZSet)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if e == nil {
		e, _ = sc.GetOrInsertWith(key, ctx.Now, store.NewZSet)
	}
	cur, _ := e.Data.ZSet.Score(c.member)
	next := cur + c.delta
	if math.IsNaN(next) {
		return resp.Value{}, store.DidNotWrite(), cmn.ErrNotAFloat
	}
	oldSize := e.Size
	e.Data.ZSet.Add(c.member, next)
	sc.Bump(key, e, oldSize)
	return resp.BulkString(formatFloat(next)), store.Wrote(1), nil
}

//
// ZRANGE / ZREVRANGE
//

type zrangeCmd struct {
	base
	start, stop int64
	rev         bool
	scores      bool
}

func parseZRange(rev bool) parseFn {
	name := "zrange"
	if rev {
		name = "zrevrange"
	}
	return func(args [][]byte) (Command, error) {
		if len(args) < 3 || len(args) > 4 {
			return nil, cmn.ErrWrongArgCount(name)
		}
		start, err := parseInt(args[1])
		if err != nil {
			return nil, err
		}
		stop, err := parseInt(args[2])
		if err != nil {
			return nil, err
		}
		c := &zrangeCmd{base: mkBase(name, cmn.FlagReadonly, string(args[0])), start: start, stop: stop, rev: rev}
		if len(args) == 4 {
			if !eqFold(args[3], "withscores") {
				return nil, cmn.ErrSyntax
			}
			c.scores = true
		}
		return c, nil
	}
}

func (c *zrangeCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	_, e, err := ctx.lookup(c.keys[0], store.KindZSet)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if e == nil {
		return resp.Arr(), store.DidNotWrite(), nil
	}
	entries := e.Data.ZSet.Entries()
	if c.rev {
		for l, r := 0, len(entries)-1; l < r; l, r = l+1, r-1 {
			entries[l], entries[r] = entries[r], entries[l]
		}
	}
	start, stop, ok := normalizeRange(c.start, c.stop, int64(len(entries)))
	if !ok {
		return resp.Arr(), store.DidNotWrite(), nil
	}
	return withScores(entries[start:stop+1], c.scores), store.DidNotWrite(), nil
}

//
// ZRANGEBYSCORE / ZRANGEBYLEX
//

type zrangeByScoreCmd struct {
	base
	min, max      scoreBound
	offset, count int64
	scores        bool
	hasLimit      bool
}

func parseZRangeByScore(args [][]byte) (Command, error) {
	if len(args) < 3 {
		return nil, cmn.ErrWrongArgCount("zrangebyscore")
	}
	min, err := parseScoreBound(args[1])
	if err != nil {
		return nil, err
	}
	max, err := parseScoreBound(args[2])
	if err != nil {
		return nil, err
	}
	c := &zrangeByScoreCmd{base: mkBase("zrangebyscore", cmn.FlagReadonly, string(args[0])), min: min, max: max}
	for i := 3; i < len(args); i++ {
		switch {
		case eqFold(args[i], "withscores"):
			c.scores = true
		case eqFold(args[i], "limit"):
			if i+2 >= len(args) {
				return nil, cmn.ErrSyntax
			}
			off, err := parseInt(args[i+1])
			if err != nil {
				return nil, err
			}
			cnt, err := parseInt(args[i+2])
			if err != nil {
				return nil, err
			}
			c.offset, c.count, c.hasLimit = off, cnt, true
			i += 2
		default:
			return nil, cmn.ErrSyntax
		}
	}
	return c, nil
}

func (c *zrangeByScoreCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	_, e, err := ctx.lookup(c.keys[0], store.KindZSet)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if e == nil {
		return resp.Arr(), store.DidNotWrite(), nil
	}
	var picked []store.ZSetEntry
	for _, en := range e.Data.ZSet.Entries() {
		if c.min.admitsMin(en.Score) && c.max.admitsMax(en.Score) {
			picked = append(picked, en)
		}
	}
	picked = applyLimit(picked, c.hasLimit, c.offset, c.count)
	return withScores(picked, c.scores), store.DidNotWrite(), nil
}

func applyLimit(entries []store.ZSetEntry, has bool, offset, count int64) []store.ZSetEntry {
	if !has {
		return entries
	}
	if offset < 0 || offset >= int64(len(entries)) {
		return nil
	}
	entries = entries[offset:]
	if count >= 0 && count < int64(len(entries)) {
		entries = entries[:count]
	}
	return entries
}

type zrangeByLexCmd struct {
	base
	min, max lexBound
}

func parseZRangeByLex(args [][]byte) (Command, error) {
	if len(args) != 3 {
		return nil, cmn.ErrWrongArgCount("zrangebylex")
	}
	min, err := parseLexBound(args[1])
	if err != nil {
		return nil, err
	}
	max, err := parseLexBound(args[2])
	if err != nil {
		return nil, err
	}
	return &zrangeByLexCmd{base: mkBase("zrangebylex", cmn.FlagReadonly, string(args[0])), min: min, max: max}, nil
}

func (c *zrangeByLexCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	_, e, err := ctx.lookup(c.keys[0], store.KindZSet)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if e == nil {
		return resp.Arr(), store.DidNotWrite(), nil
	}
	var picked []store.ZSetEntry
	for _, en := range e.Data.ZSet.Entries() {
		if c.min.admitsMin(en.Member) && c.max.admitsMax(en.Member) {
			picked = append(picked, en)
		}
	}
	return withScores(picked, false), store.DidNotWrite(), nil
}

//
// ZPOPMIN / ZPOPMAX
//

type zpopCmd struct {
	base
	count int64
	min   bool
}

func parseZPop(min bool) parseFn {
	name := "zpopmax"
	if min {
		name = "zpopmin"
	}
	return func(args [][]byte) (Command, error) {
		if len(args) < 1 || len(args) > 2 {
			return nil, cmn.ErrWrongArgCount(name)
		}
		c := &zpopCmd{base: mkBase(name, cmn.FlagWrite, string(args[0])), min: min, count: 1}
		if len(args) == 2 {
			n, err := parseInt(args[1])
			if err != nil || n < 0 {
				return nil, cmn.ErrNotAnInteger
			}
			c.count = n
		}
		return c, nil
	}
}

func (c *zpopCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	key := c.keys[0]
	sc, e, err := ctx.lookup(key, store.KindZSet)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if e == nil {
		return resp.Arr(), store.DidNotWrite(), nil
	}
	entries := e.Data.ZSet.Entries()
	if !c.min {
		for l, r := 0, len(entries)-1; l < r; l, r = l+1, r-1 {
			entries[l], entries[r] = entries[r], entries[l]
		}
	}
	n := c.count
	if n > int64(len(entries)) {
		n = int64(len(entries))
	}
	popped := entries[:n]
	oldSize := e.Size
	for _, en := range popped {
		e.Data.ZSet.Remove(en.Member)
	}
	outcome := store.DidNotWrite()
	if len(popped) > 0 {
		outcome = store.Wrote(1)
		if e.Data.ZSet.Len() == 0 {
			sc.Pop(key)
			outcome = store.Deleted(1)
		} else {
			sc.Bump(key, e, oldSize)
		}
	}
	return withScores(popped, true), outcome, nil
}

//
// ZREMRANGEBY{SCORE,LEX,RANK}
//

type zremrangeCmd struct {
	base
	mode        string // score | lex | rank
	minS, maxS  scoreBound
	minL, maxL  lexBound
	start, stop int64
}

func parseZRemRangeByScore(args [][]byte) (Command, error) {
	if len(args) != 3 {
		return nil, cmn.ErrWrongArgCount("zremrangebyscore")
	}
	min, err := parseScoreBound(args[1])
	if err != nil {
		return nil, err
	}
	max, err := parseScoreBound(args[2])
	if err != nil {
		return nil, err
	}
	return &zremrangeCmd{base: mkBase("zremrangebyscore", cmn.FlagWrite, string(args[0])), mode: "score", minS: min, maxS: max}, nil
}

func parseZRemRangeByLex(args [][]byte) (Command, error) {
	if len(args) != 3 {
		return nil, cmn.ErrWrongArgCount("zremrangebylex")
	}
	min, err := parseLexBound(args[1])
	if err != nil {
		return nil, err
	}
	max, err := parseLexBound(args[2])
	if err != nil {
		return nil, err
	}
	return &zremrangeCmd{base: mkBase("zremrangebylex", cmn.FlagWrite, string(args[0])), mode: "lex", minL: min, maxL: max}, nil
}

func parseZRemRangeByRank(args [][]byte) (Command, error) {
	if len(args) != 3 {
		return nil, cmn.ErrWrongArgCount("zremrangebyrank")
	}
	start, err := parseInt(args[1])
	if err != nil {
		return nil, err
	}
	stop, err := parseInt(args[2])
	if err != nil {
		return nil, err
	}
	return &zremrangeCmd{base: mkBase("zremrangebyrank", cmn.FlagWrite, string(args[0])), mode: "rank", start: start, stop: stop}, nil
}

func (c *zremrangeCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	key := c.keys[0]
	sc, e, err := ctx.lookup(key, store.KindZSet)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if e == nil {
		return resp.Int(0), store.DidNotWrite(), nil
	}
	entries := e.Data.ZSet.Entries()
	var doomed []string
	switch c.mode {
	case "score":
		for _, en := range entries {
			if c.minS.admitsMin(en.Score) && c.maxS.admitsMax(en.Score) {
				doomed = append(doomed, en.Member)
			}
		}
	case "lex":
		for _, en := range entries {
			if c.minL.admitsMin(en.Member) && c.maxL.admitsMax(en.Member) {
				doomed = append(doomed, en.Member)
			}
		}
	default:
		start, stop, ok := normalizeRange(c.start, c.stop, int64(len(entries)))
		if ok {
			for _, en := range entries[start : stop+1] {
				doomed = append(doomed, en.Member)
			}
		}
	}
	if len(doomed) == 0 {
		return resp.Int(0), store.DidNotWrite(), nil
	}
	oldSize := e.Size
	for _, m := range doomed {
		e.Data.ZSet.Remove(m)
	}
	outcome := store.Wrote(1)
	if e.Data.ZSet.Len() == 0 {
		sc.Pop(key)
		outcome = store.Deleted(1)
	} else {
		sc.Bump(key, e, oldSize)
	}
	return resp.Int(int64(len(doomed))), outcome, nil
}

//
// ZINTERSTORE / ZUNIONSTORE
//

type zstoreCmd struct {
	base
	weights   []float64
	aggregate string // sum | min | max
	numKeys   int
}

func parseZStore(name string) parseFn {
	return func(args [][]byte) (Command, error) {
		if len(args) < 3 {
			return nil, cmn.ErrWrongArgCount(name)
		}
		numKeys64, err := parseInt(args[1])
		if err != nil {
			return nil, err
		}
		numKeys := int(numKeys64)
		if numKeys <= 0 || len(args) < 2+numKeys {
			return nil, cmn.ErrSyntax
		}
		keys := append([]string{string(args[0])}, toStrings(args[2:2+numKeys])...)
		c := &zstoreCmd{
			base:      mkBase(name, cmn.FlagWrite|cmn.FlagDenyOOM|cmn.FlagMovableKeys, keys...),
			aggregate: "sum",
			numKeys:   numKeys,
		}
		for i := 2 + numKeys; i < len(args); i++ {
			switch {
			case eqFold(args[i], "weights"):
				if i+numKeys >= len(args) {
					return nil, cmn.ErrSyntax
				}
				for j := 0; j < numKeys; j++ {
					w, err := parseFloat(args[i+1+j])
					if err != nil {
						return nil, cmn.NewErr(cmn.KindNotAFloat, "weight value is not a float")
					}
					c.weights = append(c.weights, w)
				}
				i += numKeys
			case eqFold(args[i], "aggregate"):
				if i+1 >= len(args) {
					return nil, cmn.ErrSyntax
				}
				agg := strings.ToLower(string(args[i+1]))
				switch agg {
				case "sum", "min", "max":
					c.aggregate = agg
				default:
					return nil, cmn.ErrSyntax
				}
				i++
			default:
				return nil, cmn.ErrSyntax
			}
		}
		return c, nil
	}
}

func (c *zstoreCmd) weight(i int) float64 {
	if i < len(c.weights) {
		return c.weights[i]
	}
	return 1
}

// sourceScores loads one source key as member->score; plain sets count each
// member with score 1.
func (c *zstoreCmd) sourceScores(ctx *Context, key string) (map[string]float64, error) {
	sc := ctx.Locks.CacheFor(key)
	e := sc.Get(key, ctx.Now)
	if e == nil {
		return nil, nil
	}
	switch e.Data.Kind {
	case store.KindZSet:
		out := make(map[string]float64, e.Data.ZSet.Len())
		for _, en := range e.Data.ZSet.Entries() {
			out[en.Member] = en.Score
		}
		return out, nil
	case store.KindSet:
		out := make(map[string]float64, len(e.Data.Set))
		for m := range e.Data.Set {
			out[m] = 1
		}
		return out, nil
	default:
		return nil, cmn.ErrWrongType
	}
}

func (c *zstoreCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	dst, srcs := c.keys[0], c.keys[1:]
	inter := c.name == "zinterstore"
	acc := make(map[string]float64)
	seen := make(map[string]int)
	for i, key := range srcs {
		scores, err := c.sourceScores(ctx, key)
		if err != nil {
			return resp.Value{}, store.DidNotWrite(), err
		}
		w := c.weight(i)
		for m, s := range scores {
			ws := s * w
			cur, ok := acc[m]
			if !ok {
				acc[m] = ws
			} else {
				switch c.aggregate {
				case "min":
					if ws < cur {
						acc[m] = ws
					}
				case "max":
					if ws > cur {
						acc[m] = ws
					}
				default:
					acc[m] = cur + ws
				}
			}
			seen[m]++
		}
	}
	if inter {
		for m, n := range seen {
			if n != len(srcs) {
				delete(acc, m)
			}
		}
	}
	sc := ctx.Locks.CacheFor(dst)
	old := sc.Get(dst, ctx.Now)
	if len(acc) == 0 {
		outcome := store.DidNotWrite()
		if sc.Pop(dst) != nil {
			outcome = store.Deleted(1)
		}
		return resp.Int(0), outcome, nil
	}
	v := store.NewZSet()
	for m, s := range acc {
		v.Data.ZSet.Add(m, s)
	}
	v.Touch()
	if old != nil {
		v.Version = old.Version + 1
	}
	sc.Put(dst, v)
	return resp.Int(int64(len(acc))), store.Wrote(1), nil
}
