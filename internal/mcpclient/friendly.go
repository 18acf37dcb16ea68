package mcpclient

// friendlyNames maps a small set of well-known (server, tool) pairs to a
// canonical name usable in permission rules (spec §4.4; recovered feature,
// SPEC_FULL §C, pattern from original_source/src/mcp/registry.rs). Unknown
// pairs return no friendly name; the embedded tool server then checks
// permission under the full mcp__<server>__<tool> name, which no mode
// auto-approves (Open Question decision in DESIGN.md).
var friendlyNames = map[string]map[string]string{
	"web-fetch": {
		"webReader": "WebFetch",
		"fetch":     "WebFetch",
	},
	"web-search": {
		"search": "WebSearch",
	},
}

// FriendlyName returns the canonical permission-rule name for (server,
// tool), and whether one is known.
func FriendlyName(serverName, toolName string) (string, bool) {
	table, ok := friendlyNames[serverName]
	if !ok {
		return "", false
	}
	name, ok := table[toolName]
	return name, ok
}
