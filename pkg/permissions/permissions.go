// Package permissions parses the nested per-application permission payload
// stored on role definitions and flattens it into scoped, dotted
// operation-level strings ("app.module.operation").
package permissions

import (
	"encoding/json"
	"slices"
	"strings"
)

// Tree is the parsed form of a role's nested permission payload:
// {applicationCode: {moduleCode: [operationCode]}}. A Tree is only ever
// obtained through Parse, so consumers can tell "parsed" from "unparseable"
// instead of guessing at the shape of loose data.
type Tree struct {
	apps map[string]json.RawMessage
}

// Parse decodes a raw permission payload. The second return value is false
// for absent, empty, or malformed input — the unparseable branch. Parse
// never returns an error: imperfect upstream data must not take down reads
// that only need the payload incidentally.
func Parse(raw []byte) (Tree, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return Tree{}, false
	}

	var apps map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &apps); err != nil {
		return Tree{}, false
	}
	return Tree{apps: apps}, true
}

// Flatten emits every operation under appCode as "app.module.operation".
// Only the sub-object at appCode is consulted; other top-level application
// keys never leak in. Module values that are not lists are skipped, list
// elements that are not strings are skipped. No de-duplication: duplicates
// in the source payload are tolerated by consumers. Modules are visited in
// sorted key order so output is deterministic; within a module the source
// list order is preserved.
func (t Tree) Flatten(appCode string) []string {
	appCode = strings.TrimSpace(appCode)
	if appCode == "" || t.apps == nil {
		return []string{}
	}

	sub, ok := t.apps[appCode]
	if !ok {
		return []string{}
	}

	var modules map[string]json.RawMessage
	if err := json.Unmarshal(sub, &modules); err != nil {
		return []string{}
	}

	moduleCodes := make([]string, 0, len(modules))
	for moduleCode := range modules {
		moduleCodes = append(moduleCodes, moduleCode)
	}
	slices.Sort(moduleCodes)

	out := []string{}
	for _, moduleCode := range moduleCodes {
		var ops []any
		if err := json.Unmarshal(modules[moduleCode], &ops); err != nil {
			continue
		}
		for _, op := range ops {
			s, ok := op.(string)
			if !ok {
				continue
			}
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			out = append(out, appCode+"."+moduleCode+"."+s)
		}
	}
	return out
}

// FlattenRaw is the one-shot form: parse then flatten, with the unparseable
// branch collapsing to an empty list.
func FlattenRaw(raw []byte, appCode string) []string {
	tree, ok := Parse(raw)
	if !ok {
		return []string{}
	}
	return tree.Flatten(appCode)
}
