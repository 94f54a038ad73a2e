package security

import (
	"regexp"

	"github.com/coshell-dev/coshell"
)

// secretPatterns catch credential material leaking into a backend reply
// destined for the terminal (§4.3 item 2), grounded on awesh's
// sensitive_data_filter.py.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(password|passwd|pwd)\s*[:=]\s*['"]?\S{4,}`),
	regexp.MustCompile(`(?i)(secret|api[_-]?key|access[_-]?key)\s*[:=]\s*['"]?[A-Za-z0-9/+=_-]{12,}`),
	regexp.MustCompile(`-----BEGIN\s+(RSA\s+|OPENSSH\s+|EC\s+|DSA\s+)?PRIVATE\s+KEY-----`),
	regexp.MustCompile(`(?i)aws_secret_access_key\s*[:=]`),
}

// checkReplyCommand reuses the command-policy pattern classes: a
// backend suggestion that would itself be blocked as a command is blocked
// as a reply too.
func (p *Policy) checkReplyCommand(cmd string) (string, bool) {
	if reason, blocked := p.matchRegex(cmd); blocked {
		return reason, true
	}
	return p.matchStructural(cmd)
}

// CheckReply applies the response policy to a `cmd:`/`edit:` payload
// already parsed off the wire. command is non-empty only for a `cmd:`
// reply; text is the full text of either reply kind and is always
// scanned for secrets.
func (p *Policy) CheckReply(command, text string) coshell.SecurityVerdict {
	for _, re := range secretPatterns {
		if re.MatchString(text) {
			return coshell.Block("secret-exposure")
		}
	}
	if command != "" {
		if reason, blocked := p.checkReplyCommand(command); blocked {
			return coshell.Block(reason)
		}
	}
	return coshell.Allow("")
}
