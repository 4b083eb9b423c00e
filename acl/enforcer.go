// Package acl implements the access-control enforcer: static command and
// category rules, glob-compiled key and channel patterns, and dynamic
// argument-based conditions.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package acl

import (
	"strconv"
	"strings"

	"github.com/spineldb/spineldb/cmn"
)

// User is an authenticated principal: a name, a password, and the rule names
// it references. Order of listing matters for verdict evaluation.
type User struct {
	Name     string
	Password string
	Rules    []string
}

// Enforcer evaluates permissions against an immutable compiled rule set.
// Instances are never mutated after construction; updates swap in a fresh
// Enforcer through the Store.
type Enforcer struct {
	rules   map[string]parsedRule
	users   map[string]*User
	enabled bool
}

func NewEnforcer(cfg *cmn.AclConfig) *Enforcer {
	e := &Enforcer{
		enabled: cfg.Enabled,
		rules:   make(map[string]parsedRule, len(cfg.Rules)),
		users:   make(map[string]*User, len(cfg.Users)),
	}
	for _, rc := range cfg.Rules {
		e.rules[rc.Name] = compileRule(rc)
	}
	for _, uc := range cfg.Users {
		e.users[uc.Name] = &User{Name: uc.Name, Password: uc.Password, Rules: uc.Rules}
	}
	return e
}

func (e *Enforcer) Enabled() bool { return e.enabled }

// LookupUser resolves a user by name.
func (e *Enforcer) LookupUser(name string) *User { return e.users[name] }

// Users returns every configured user name.
func (e *Enforcer) Users() []string {
	out := make([]string, 0, len(e.users))
	for n := range e.users {
		out = append(out, n)
	}
	return out
}

// CheckPermission is the pre-dispatch gate. rawArgs is the full argument
// vector excluding the command name.
func (e *Enforcer) CheckPermission(user *User, rawArgs [][]byte, cmdName string,
	flags cmn.CommandFlags, keys, channels []string) bool {
	if !e.enabled {
		return true
	}
	// AUTH must pass before any authentication exists.
	if user == nil {
		return strings.EqualFold(cmdName, "AUTH")
	}

	userRules := make([]*parsedRule, 0, len(user.Rules))
	for _, name := range user.Rules {
		if r, ok := e.rules[name]; ok {
			rc := r
			userRules = append(userRules, &rc)
		}
	}

	verdict, terminal := staticVerdict(userRules, cmdName, flags)
	if terminal {
		return false
	}
	verdict, terminal = conditionVerdict(userRules, rawArgs, keys, cmdName, flags, verdict)
	if terminal || !verdict {
		return false
	}
	if !patternsAllow(collectPatterns(userRules, false), keys) {
		return false
	}
	return patternsAllow(collectPatterns(userRules, true), channels)
}

// staticVerdict scans command rules in listing order from a default-deny
// verdict. A matching deny is terminal.
func staticVerdict(rules []*parsedRule, cmdName string, flags cmn.CommandFlags) (verdict, terminal bool) {
	lower := strings.ToLower(cmdName)
	for _, rule := range rules {
		for _, cr := range rule.commands {
			switch cr.kind {
			case ruleAll:
				verdict = true
			case ruleAllow:
				if cr.name == lower {
					verdict = true
				}
			case ruleAllowCategory:
				if cr.flags != 0 && flags.Contains(cr.flags) {
					verdict = true
				}
			case ruleDeny:
				if cr.name == lower {
					return false, true
				}
			case ruleDenyCategory:
				if cr.flags != 0 && flags.Contains(cr.flags) {
					return false, true
				}
			}
		}
	}
	return verdict, false
}

// conditionVerdict applies every matching dynamic condition's result rules to
// the running verdict; a deny remains terminal.
func conditionVerdict(rules []*parsedRule, rawArgs [][]byte, keys []string,
	cmdName string, flags cmn.CommandFlags, verdict bool) (bool, bool) {
	lower := strings.ToLower(cmdName)
	for _, rule := range rules {
		for ci := range rule.conditions {
			cond := &rule.conditions[ci]
			if !cond.evaluate(rawArgs, keys) {
				continue
			}
			for _, action := range cond.onMatch {
				switch action.kind {
				case ruleAll, ruleAllow, ruleAllowCategory:
					verdict = true
				case ruleDeny:
					if action.name == lower {
						return false, true
					}
				case ruleDenyCategory:
					if action.flags != 0 && flags.Contains(action.flags) {
						return false, true
					}
				}
			}
		}
	}
	return verdict, false
}

func (c *condition) evaluate(rawArgs [][]byte, keys []string) bool {
	var subject string
	switch c.target.kind {
	case targetKey:
		if c.target.index < len(keys) {
			subject = keys[c.target.index]
		}
	case targetArg:
		if c.target.index < len(rawArgs) {
			subject = string(rawArgs[c.target.index])
		}
	case targetCommand:
		// Argc operators only; the subject stays empty.
	}
	switch c.op {
	case opStartsWith:
		return strings.HasPrefix(subject, c.operand)
	case opEquals:
		return subject == c.operand
	case opIsNumber:
		_, err := strconv.ParseFloat(subject, 64)
		return err == nil
	case opArgcLessThan:
		return len(rawArgs)+1 < c.argc
	case opArgcGreaterThan:
		return len(rawArgs)+1 > c.argc
	}
	return false
}

func collectPatterns(rules []*parsedRule, channels bool) []patternRule {
	var out []patternRule
	for _, r := range rules {
		if channels {
			out = append(out, r.channels...)
		} else {
			out = append(out, r.keys...)
		}
	}
	return out
}

// patternsAllow requires every subject to match an allow pattern and no deny
// pattern; a catch-all rule grants everything.
func patternsAllow(patterns []patternRule, subjects []string) bool {
	if len(subjects) == 0 {
		return true
	}
	for _, p := range patterns {
		if p.all {
			return true
		}
	}
	for _, s := range subjects {
		allowed := false
		for _, p := range patterns {
			if p.re == nil || !p.re.MatchString(s) {
				continue
			}
			if p.allow {
				allowed = true
			} else {
				return false
			}
		}
		if !allowed {
			return false
		}
	}
	return true
}
