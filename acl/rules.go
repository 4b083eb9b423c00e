// Package acl implements the access-control enforcer: static command and
// category rules, glob-compiled key and channel patterns, and dynamic
// argument-based conditions.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package acl

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/spineldb/spineldb/cmn"
)

type cmdRuleKind int

const (
	ruleAllow cmdRuleKind = iota
	ruleDeny
	ruleAllowCategory
	ruleDenyCategory
	ruleAll
)

type (
	commandRule struct {
		name  string
		flags cmn.CommandFlags
		kind  cmdRuleKind
	}

	patternRule struct {
		re    *regexp.Regexp
		allow bool
		all   bool
	}

	conditionTarget struct {
		kind  targetKind
		index int
	}

	condition struct {
		target  conditionTarget
		op      operatorKind
		operand string
		argc    int
		onMatch []commandRule
	}

	// parsedRule is the compiled form of one named rule from the config.
	parsedRule struct {
		name       string
		commands   []commandRule
		keys       []patternRule
		channels   []patternRule
		conditions []condition
	}
)

type targetKind int

const (
	targetKey targetKind = iota
	targetArg
	targetCommand
)

type operatorKind int

const (
	opStartsWith operatorKind = iota
	opEquals
	opIsNumber
	opArgcLessThan
	opArgcGreaterThan
)

// parseCommandRule parses "+get", "-set", "+@write", "-@admin", "+@all".
// A bare name defaults to allow.
func parseCommandRule(s string) commandRule {
	switch {
	case strings.HasPrefix(s, "+@"):
		cat := s[2:]
		if strings.EqualFold(cat, "all") {
			return commandRule{kind: ruleAll}
		}
		return commandRule{kind: ruleAllowCategory, flags: cmn.CategoryFlags(strings.ToLower(cat))}
	case strings.HasPrefix(s, "-@"):
		return commandRule{kind: ruleDenyCategory, flags: cmn.CategoryFlags(strings.ToLower(s[2:]))}
	case strings.HasPrefix(s, "+"):
		return commandRule{kind: ruleAllow, name: strings.ToLower(s[1:])}
	case strings.HasPrefix(s, "-"):
		return commandRule{kind: ruleDeny, name: strings.ToLower(s[1:])}
	default:
		return commandRule{kind: ruleAllow, name: strings.ToLower(s)}
	}
}

// parsePatternRule parses "~pat" (allow) / "-pat" (deny) / "allkeys" style
// catch-alls. Invalid glob patterns are logged and skipped.
func parsePatternRule(s, allowPrefix, catchAll string) (patternRule, bool) {
	if strings.EqualFold(s, catchAll) {
		return patternRule{all: true}, true
	}
	var pat string
	var allow bool
	switch {
	case strings.HasPrefix(s, allowPrefix):
		pat, allow = s[len(allowPrefix):], true
	case strings.HasPrefix(s, "-"):
		pat, allow = s[1:], false
	default:
		return patternRule{}, false
	}
	re, err := cmn.CompileGlob(pat)
	if err != nil {
		log.Warn().Str("pattern", s).Err(err).Msg("invalid acl pattern, skipped")
		return patternRule{}, false
	}
	return patternRule{re: re, allow: allow}, true
}

func parseCondition(c cmn.AclConditionConfig) (condition, bool) {
	var cond condition
	switch {
	case c.Target == "command":
		cond.target = conditionTarget{kind: targetCommand}
	case strings.HasPrefix(c.Target, "key:"):
		i, err := strconv.Atoi(c.Target[len("key:"):])
		if err != nil {
			return condition{}, false
		}
		cond.target = conditionTarget{kind: targetKey, index: i}
	case strings.HasPrefix(c.Target, "arg:"):
		i, err := strconv.Atoi(c.Target[len("arg:"):])
		if err != nil {
			return condition{}, false
		}
		cond.target = conditionTarget{kind: targetArg, index: i}
	default:
		return condition{}, false
	}
	switch c.Operator {
	case "starts_with":
		cond.op, cond.operand = opStartsWith, c.Operand
	case "equals":
		cond.op, cond.operand = opEquals, c.Operand
	case "is_number":
		cond.op = opIsNumber
	case "argc_less_than", "argc_greater_than":
		n, err := strconv.Atoi(c.Operand)
		if err != nil {
			return condition{}, false
		}
		cond.argc = n
		if c.Operator == "argc_less_than" {
			cond.op = opArgcLessThan
		} else {
			cond.op = opArgcGreaterThan
		}
	default:
		return condition{}, false
	}
	for _, r := range c.Result {
		cond.onMatch = append(cond.onMatch, parseCommandRule(r))
	}
	return cond, true
}

// compileRule builds a parsedRule from its config form.
func compileRule(rc cmn.AclRuleConfig) parsedRule {
	pr := parsedRule{name: rc.Name}
	for _, s := range rc.Commands {
		pr.commands = append(pr.commands, parseCommandRule(s))
	}
	for _, s := range rc.Keys {
		if r, ok := parsePatternRule(s, "~", "allkeys"); ok {
			pr.keys = append(pr.keys, r)
		}
	}
	for _, s := range rc.Channels {
		if r, ok := parsePatternRule(s, "&", "allchannels"); ok {
			pr.channels = append(pr.channels, r)
		}
	}
	for _, c := range rc.Conditions {
		if cond, ok := parseCondition(c); ok {
			pr.conditions = append(pr.conditions, cond)
		} else {
			log.Warn().Str("rule", rc.Name).Str("target", c.Target).Msg("invalid acl condition, skipped")
		}
	}
	return pr
}
