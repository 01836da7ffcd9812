package diffengine

import (
	"fmt"
	"regexp"
	"strings"
)

// patternRules catches credentials that slipped past the shadow-swap layer
// entirely, e.g. ones hardcoded by the agent rather than read from the
// environment.
var patternRules = []struct {
	name string
	re   *regexp.Regexp
}{
	{"hardcoded shadow placeholder", regexp.MustCompile(`ftl_shadow_[a-z0-9_]+_[0-9a-f]{16}`)},
	{"AWS access key ID", regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)},
	{"AWS secret access key", regexp.MustCompile(`(?i)aws_secret_access_key\s*[=:]\s*['"]?[A-Za-z0-9/+=]{40}['"]?`)},
	{"private key block", regexp.MustCompile(`-----BEGIN (RSA |EC |OPENSSH )?PRIVATE KEY-----`)},
	{"generic API key assignment", regexp.MustCompile(`(?i)(api[_-]?key|secret|token|password)\s*[=:]\s*['"][A-Za-z0-9_\-./+]{16,}['"]`)},
	{"Slack token", regexp.MustCompile(`\bxox[baprs]-[0-9A-Za-z-]{10,}\b`)},
	{"GitHub token", regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36,}\b`)},
}

// Finding is one credential-leak hit inside a changed file.
type Finding struct {
	Path string
	Line int
	Rule string
	Text string
}

// Lint scans the inserted lines of changes for credential material: a raw
// value that was supposed to stay behind a shadow placeholder, a shadow
// placeholder written into the code, or a pattern that matches a
// well-known secret format outright.
func Lint(changes []FileChange, realSecrets []string) []Finding {
	var findings []Finding

	cleanedSecrets := make([]string, 0, len(realSecrets))
	for _, s := range realSecrets {
		if strings.TrimSpace(s) != "" {
			cleanedSecrets = append(cleanedSecrets, s)
		}
	}

	for _, c := range changes {
		if c.Binary {
			continue
		}
		lineNo := 0
		for _, h := range c.Hunks {
			lineNo = h.NewStart
			for _, l := range h.Lines {
				if l.Type != OpInsert {
					if l.Type == OpEqual {
						lineNo++
					}
					continue
				}

				for _, secret := range cleanedSecrets {
					if strings.Contains(l.Text, secret) {
						findings = append(findings, Finding{
							Path: c.Path, Line: lineNo, Rule: "real credential value",
							Text: redact(l.Text),
						})
					}
				}
				for _, rule := range patternRules {
					if rule.re.MatchString(l.Text) {
						findings = append(findings, Finding{
							Path: c.Path, Line: lineNo, Rule: rule.name,
							Text: redact(l.Text),
						})
					}
				}
				lineNo++
			}
		}
	}

	return findings
}

func redact(line string) string {
	if len(line) > 120 {
		line = line[:120] + "..."
	}
	return fmt.Sprintf("%q", line)
}
