package agent

// registry is the set of coding-agent CLIs FTL knows how to drive inside
// a sandbox.
var registry = map[string]Agent{
	ClaudeCode.Name: ClaudeCode,
	Codex.Name:      Codex,
	Aider.Name:      Aider,
	Kiro.Name:       Kiro,
}

// Get looks up a registered agent by name.
func Get(name string) (Agent, bool) {
	a, ok := registry[name]
	return a, ok
}

// Names returns the registered agent names, for error messages and the
// setup wizard's prompt.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	return names
}
