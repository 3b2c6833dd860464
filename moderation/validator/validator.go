// Package validator implements the static, pattern-based risk scorer run over
// message, author, and attachment structure before any content rewriting.
// Each check may escalate the risk level; it never downgrades.
package validator

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/sentry-moderation/sentry/moderation"
	"github.com/sentry-moderation/sentry/moderation/countstore"
	"github.com/sentry-moderation/sentry/moderation/keyword"
)

// Result is the transient outcome of one validation pass.
type Result struct {
	Valid            bool
	Errors           []string
	Risk             moderation.RiskLevel
	SanitizedContent string
}

type Config struct {
	MaxContentLength  int
	MaxURLCount       int
	MaxAttachmentSize int64
	MaxUsernameLength int
	MaxDuplicates     int // identical messages per identity per minute
}

func DefaultConfig() Config {
	return Config{
		MaxContentLength:  4000,
		MaxURLCount:       5,
		MaxAttachmentSize: 25 << 20,
		MaxUsernameLength: 40,
		MaxDuplicates:     3,
	}
}

type Validator struct {
	logger *slog.Logger
	counts countstore.CountStore
	cfg    Config
}

func New(logger *slog.Logger, counts countstore.CountStore, cfg Config) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{logger: logger, counts: counts, cfg: cfg}
}

var (
	injectionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<\s*script`),
		regexp.MustCompile(`(?i)javascript\s*:`),
		regexp.MustCompile(`(?i)on(load|click|error|mouseover)\s*=`),
		regexp.MustCompile(`(?i)(union|select|insert|drop|delete)\s+(all\s+)?(from|into|table)`),
		regexp.MustCompile("[;&|`]\\s*(rm|curl|wget|nc|bash|sh)\\s"),
		regexp.MustCompile(`\.\./\.\./`),
	}
	zeroWidthChars   = []rune{'\u200B', '\u200C', '\u200D', '\u2060', '\uFEFF'}
	shortenerDomains = []string{"bit.ly", "tinyurl.com", "goo.gl", "t.co", "is.gd", "ow.ly", "buff.ly"}
	dangerousExts    = []string{".exe", ".scr", ".bat", ".cmd", ".com", ".pif", ".vbs", ".js", ".jar", ".msi", ".dll", ".ps1"}
	execQueryParams  = []string{"cmd", "exec", "eval", "run", "script"}
	ipHostRegex      = regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}$`)
	htmlTagRegex     = regexp.MustCompile(`<[^>]+>`)
)

// Validate runs all checks. The returned risk level is the monotonic maximum
// across every check; the returned sanitized content is a shallow cleanup
// only (whitespace, zero-width, HTML tags) distinct from the sanitizer's deep
// rewrite pass.
func (v *Validator) Validate(ctx context.Context, msg *moderation.Message) Result {
	res := Result{Valid: true, Risk: moderation.RiskLow}

	v.checkStructural(msg, &res)
	v.checkContent(msg.Content, &res)
	v.checkURLs(msg.Content, &res)
	v.checkAttachments(msg, &res)
	v.checkAuthor(msg, &res)
	v.checkDuplicates(ctx, msg, &res)

	res.SanitizedContent = shallowSanitize(msg.Content)
	if len(res.Errors) > 0 {
		res.Valid = false
	}
	if res.Risk >= moderation.RiskHigh {
		highRiskCount.Inc()
	}
	return res
}

func (r *Result) flag(risk moderation.RiskLevel, format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Risk = r.Risk.Escalate(risk)
}

func (v *Validator) checkStructural(msg *moderation.Message, res *Result) {
	content := msg.Content
	if content == "" && len(msg.Attachments) == 0 {
		res.flag(moderation.RiskMedium, "empty message with no attachments")
		return
	}
	if len(content) > v.cfg.MaxContentLength {
		res.flag(moderation.RiskMedium, "content length %d exceeds maximum %d", len(content), v.cfg.MaxContentLength)
	}
	// short messages that are mostly symbols are a common probe pattern
	if len(content) > 0 && len(content) < 12 {
		symbols := 0
		for _, r := range content {
			if !unicode.IsLetter(r) && !unicode.IsNumber(r) && !unicode.IsSpace(r) {
				symbols++
			}
		}
		if float64(symbols)/float64(len([]rune(content))) > 0.6 {
			res.flag(moderation.RiskMedium, "short symbol-heavy content")
		}
	}
}

func (v *Validator) checkContent(content string, res *Result) {
	if content == "" {
		return
	}
	for _, re := range injectionPatterns {
		if re.MatchString(content) {
			res.flag(moderation.RiskHigh, "content matches injection pattern %q", re.String())
			break
		}
	}

	runes := []rune(content)
	var special, whitespace int
	var prev rune
	run, maxRun := 1, 1
	for _, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsNumber(r) && !unicode.IsSpace(r) {
			special++
		}
		if unicode.IsSpace(r) {
			whitespace++
		}
		if r == prev {
			run++
			if run > maxRun {
				maxRun = run
			}
		} else {
			run = 1
			prev = r
		}
	}
	if len(runes) >= 20 {
		if ratio := float64(special) / float64(len(runes)); ratio > 0.5 {
			res.flag(moderation.RiskMedium, "special character ratio %.2f", ratio)
		}
		if ratio := float64(whitespace) / float64(len(runes)); ratio > 0.6 {
			res.flag(moderation.RiskMedium, "excessive whitespace ratio %.2f", ratio)
		}
	}
	if maxRun > 20 {
		res.flag(moderation.RiskMedium, "repeated character run of length %d", maxRun)
	}
	for _, zw := range zeroWidthChars {
		if strings.ContainsRune(content, zw) {
			res.flag(moderation.RiskHigh, "content contains zero-width characters")
			break
		}
	}
}

func (v *Validator) checkURLs(content string, res *Result) {
	urls := keyword.ExtractTextURLs(content)
	if len(urls) == 0 {
		return
	}
	if len(urls) > v.cfg.MaxURLCount {
		res.flag(moderation.RiskHigh, "message contains %d URLs (max %d)", len(urls), v.cfg.MaxURLCount)
	}
	for _, raw := range urls {
		withScheme := raw
		if !strings.Contains(withScheme, "://") {
			withScheme = "https://" + withScheme
		}
		u, err := url.Parse(withScheme)
		if err != nil {
			continue
		}
		host := strings.ToLower(u.Hostname())
		if ipHostRegex.MatchString(host) {
			res.flag(moderation.RiskHigh, "URL with IP-literal host: %s", host)
		}
		for _, d := range shortenerDomains {
			if host == d {
				res.flag(moderation.RiskMedium, "URL shortener domain: %s", host)
			}
		}
		q := u.Query()
		for _, p := range execQueryParams {
			if q.Has(p) {
				res.flag(moderation.RiskHigh, "URL with executable query parameter %q", p)
			}
		}
	}
}

func (v *Validator) checkAttachments(msg *moderation.Message, res *Result) {
	for _, a := range msg.Attachments {
		if a.Size > v.cfg.MaxAttachmentSize {
			res.flag(moderation.RiskMedium, "attachment %q exceeds size ceiling", a.Filename)
		}
		lower := strings.ToLower(a.Filename)
		for _, ext := range dangerousExts {
			if strings.HasSuffix(lower, ext) {
				res.flag(moderation.RiskCritical, "attachment %q has dangerous extension %s", a.Filename, ext)
			}
		}
		// "invoice.pdf.exe" style multi-extension names
		if strings.Count(lower, ".") > 1 {
			parts := strings.Split(lower, ".")
			for _, mid := range parts[1 : len(parts)-1] {
				if len(mid) >= 2 && len(mid) <= 4 {
					res.flag(moderation.RiskHigh, "attachment %q has multiple extensions", a.Filename)
					break
				}
			}
		}
	}
}

func (v *Validator) checkAuthor(msg *moderation.Message, res *Result) {
	name := msg.AuthorName
	if len(name) > v.cfg.MaxUsernameLength {
		res.flag(moderation.RiskMedium, "username length %d exceeds %d", len(name), v.cfg.MaxUsernameLength)
	}
	var anomalous int
	for _, r := range name {
		if unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Cf, r) {
			anomalous++
		}
	}
	if anomalous > 2 {
		res.flag(moderation.RiskMedium, "username contains unicode anomalies")
	}
	if msg.AuthorIsBot && !msg.AuthorVerifiedBot {
		res.flag(moderation.RiskHigh, "message from unverified bot account")
	}
}

// checkDuplicates counts identical message bodies per identity per minute.
// These counters are intentionally independent of the rate limiter's: they
// catch copy-paste spam rather than flooding.
func (v *Validator) checkDuplicates(ctx context.Context, msg *moderation.Message, res *Result) {
	if v.counts == nil || msg.Content == "" {
		return
	}
	hash := keyword.HashOfString(msg.Content)
	key := msg.AuthorID + "/" + hash
	count, err := v.counts.GetCount(ctx, "dupes", key, countstore.PeriodMinute)
	if err != nil {
		v.logger.Error("duplicate counter read failed", "err", err)
		return
	}
	if err := v.counts.Increment(ctx, "dupes", key, countstore.PeriodMinute); err != nil {
		v.logger.Error("duplicate counter increment failed", "err", err)
		return
	}
	if count+1 > v.cfg.MaxDuplicates {
		res.flag(moderation.RiskHigh, "identical message repeated %d times within a minute", count+1)
	}
}

// shallowSanitize strips zero-width characters, HTML tags, and collapses
// whitespace. The deep rewrite pass lives in the sanitizer package.
func shallowSanitize(content string) string {
	out := content
	for _, zw := range zeroWidthChars {
		out = strings.ReplaceAll(out, string(zw), "")
	}
	out = htmlTagRegex.ReplaceAllString(out, "")
	out = strings.Join(strings.Fields(out), " ")
	return out
}
