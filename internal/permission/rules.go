package permission

import (
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// fileRule is one entry in the on-disk settings-rule file. The spec treats
// full settings-file loading as an external contract (§1); this is the
// minimal shape the engine itself needs: a tool-name pattern plus a verdict.
type fileRule struct {
	Tool    string `yaml:"tool"`
	Decison string `yaml:"decision"` // "allow" | "deny"
}

type ruleFile struct {
	Rules []fileRule `yaml:"rules"`
}

// FileRuleChecker is the default RuleChecker implementation: a YAML file of
// simple tool-name-match rules, plus a runtime-only "always allow" set
// installed by AllowAlways (added atomically, never persisted back to
// disk — it lives only for the process lifetime of the owning session).
type FileRuleChecker struct {
	mu      sync.RWMutex
	rules   []fileRule
	runtime map[string]bool
}

// LoadFileRuleChecker reads path (if it exists) as YAML; a missing file is
// not an error — it just means no rules are configured.
func LoadFileRuleChecker(path string) (*FileRuleChecker, error) {
	c := &FileRuleChecker{runtime: make(map[string]bool)}
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, err
	}

	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, err
	}
	c.rules = rf.Rules
	return c, nil
}

func (c *FileRuleChecker) Check(toolName string, _ map[string]any) RuleResult {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.runtime[toolName] {
		return RuleResult{Decision: DecisionAllow, Rule: "runtime:always-allow:" + toolName}
	}

	for _, r := range c.rules {
		if matchTool(r.Tool, toolName) {
			switch strings.ToLower(r.Decison) {
			case "allow":
				return RuleResult{Decision: DecisionAllow, Rule: r.Tool}
			case "deny":
				return RuleResult{Decision: DecisionDeny, Rule: r.Tool}
			}
		}
	}
	return RuleResult{Decision: DecisionAsk}
}

func (c *FileRuleChecker) AllowAlways(toolName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runtime[toolName] = true
}

func matchTool(pattern, name string) bool {
	if pattern == name {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(name, strings.TrimSuffix(pattern, "*"))
	}
	return false
}

// Wire option ids (spec §6) — must match exactly.
const (
	OptionAllowAlways = "allow_always"
	OptionAllowOnce   = "allow_once"
	OptionRejectOnce  = "reject_once"
)

// OutcomeFromOptionID maps a selected wire option id back to an Outcome,
// or OutcomeCancelled if no option was selected (the Client dismissed the
// prompt without choosing).
func OutcomeFromOptionID(optionID string, selected bool) Outcome {
	if !selected {
		return OutcomeCancelled
	}
	switch optionID {
	case OptionAllowAlways:
		return OutcomeAllowAlways
	case OptionAllowOnce:
		return OutcomeAllowOnce
	case OptionRejectOnce:
		return OutcomeRejected
	default:
		return OutcomeCancelled
	}
}
