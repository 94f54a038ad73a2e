package frontend

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/coshell-dev/coshell"
	"github.com/jellydator/ttlcache/v3"
)

// promptCacheTTL bounds how long cwd-derived decorations (git branch) are
// reused before being recomputed, per §4.4 "Status rendering".
const promptCacheTTL = 5 * time.Second

// backendGlyph renders the backend health emoji vocabulary from §4.4: a
// distinct glyph per AI status, plus one for "not running at all".
func backendGlyph(running bool, status coshell.AIStatus) string {
	if !running {
		return "🚫"
	}
	switch status {
	case coshell.AIStatusLoading:
		return "🤖"
	case coshell.AIStatusReady:
		return "🧠"
	case coshell.AIStatusFailed:
		return "💀"
	default:
		return "💀"
	}
}

// securityGlyph renders the middleware health emoji vocabulary from §4.4.
func securityGlyph(started, responsive bool) string {
	if !started {
		return "⛔"
	}
	if !responsive {
		return "🔓"
	}
	return "🔒"
}

// gitBranchCache shells out to report the current branch for cwd, caching
// the result per absolute path with a TTL so repeated prompts in the same
// directory don't re-fork git — the same cache shape as the teacher's
// per-directory context cache, scaled down to one string.
type gitBranchCache struct {
	cache *ttlcache.Cache[string, string]
}

func newGitBranchCache() *gitBranchCache {
	c := ttlcache.New[string, string](
		ttlcache.WithTTL[string, string](promptCacheTTL),
		ttlcache.WithDisableTouchOnHit[string, string](),
	)
	go c.Start()
	return &gitBranchCache{cache: c}
}

func (c *gitBranchCache) Branch(cwd string) string {
	if item := c.cache.Get(cwd); item != nil {
		return item.Value()
	}

	cmd := exec.Command("git", "-C", cwd, "rev-parse", "--abbrev-ref", "HEAD")
	out, err := cmd.Output()
	branch := ""
	if err == nil {
		branch = strings.TrimSpace(string(out))
	}

	c.cache.Set(cwd, branch, ttlcache.DefaultTTL)
	return branch
}

func (c *gitBranchCache) Close() {
	c.cache.Stop()
}

// Prompt renders the coshell prompt line: cwd, optional git branch, and the
// two health glyphs, matching the decoration density of the teacher's
// status line without its verbose per-check logging.
type Prompt struct {
	branches *gitBranchCache
}

// NewPrompt constructs a Prompt with its own branch cache.
func NewPrompt() *Prompt {
	return &Prompt{branches: newGitBranchCache()}
}

// Close stops the prompt's background cache-expiration goroutine.
func (p *Prompt) Close() {
	p.branches.Close()
}

// PromptState carries the live inputs needed to render one prompt line.
type PromptState struct {
	Cwd                string
	BackendRunning     bool
	BackendStatus      coshell.AIStatus
	SecurityStarted    bool
	SecurityResponsive bool
}

// Render builds the prompt string shown before each ReadLine call.
func (p *Prompt) Render(s PromptState) string {
	var sb strings.Builder
	sb.WriteString(backendGlyph(s.BackendRunning, s.BackendStatus))
	sb.WriteByte(' ')
	sb.WriteString(securityGlyph(s.SecurityStarted, s.SecurityResponsive))
	sb.WriteByte(' ')

	cwd := shortenHome(s.Cwd)
	sb.WriteString(cwd)

	if branch := p.branches.Branch(s.Cwd); branch != "" {
		fmt.Fprintf(&sb, " (%s)", branch)
	}
	sb.WriteString(" $ ")
	return sb.String()
}

func shortenHome(cwd string) string {
	home, err := os.UserHomeDir()
	if err == nil && home != "" && strings.HasPrefix(cwd, home) {
		return "~" + strings.TrimPrefix(cwd, home)
	}
	return cwd
}
