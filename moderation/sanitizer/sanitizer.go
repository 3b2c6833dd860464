// Package sanitizer implements the deep, ordered content-rewrite pass. Each
// stage may mutate the content, escalate the risk level (monotonic max), and
// append to the blocked-elements and modifications lists. A failing stage
// trips an aggressive emergency sanitizer rather than surfacing an error.
package sanitizer

import (
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sentry-moderation/sentry/moderation"
	"github.com/sentry-moderation/sentry/moderation/keyword"
)

// Result is the transient outcome of one sanitization pass.
type Result struct {
	Content              string
	Risk                 moderation.RiskLevel
	BlockedElements      []string
	ModificationsApplied []string
}

type Config struct {
	MaxLength      int
	AllowedTags    []string
	AllowedDomains []string // empty means any domain not otherwise blocked
}

func DefaultConfig() Config {
	return Config{
		MaxLength:   2000,
		AllowedTags: []string{"b", "i", "u", "em", "strong", "code", "pre"},
	}
}

type Sanitizer struct {
	logger *slog.Logger
	cfg    Config
}

func New(logger *slog.Logger, cfg Config) *Sanitizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sanitizer{logger: logger, cfg: cfg}
}

type state struct {
	content string
	res     *Result
}

func (st *state) block(risk moderation.RiskLevel, element string) {
	st.res.BlockedElements = append(st.res.BlockedElements, element)
	st.res.Risk = st.res.Risk.Escalate(risk)
}

func (st *state) modified(name string) {
	st.res.ModificationsApplied = append(st.res.ModificationsApplied, name)
}

type stage struct {
	name string
	fn   func(*state) error
}

// Sanitize runs the ordered rewrite pipeline. Stage order is load-bearing:
// injection markers must be placed before tags are stripped, normalization
// must precede URL parsing, and escaping runs last.
func (s *Sanitizer) Sanitize(content string) Result {
	res := Result{Risk: moderation.RiskLow}
	st := &state{content: content, res: &res}

	stages := []stage{
		{"injection_prevention", s.preventInjection},
		{"html_stripping", s.stripHTML},
		{"unicode_normalization", s.normalizeUnicode},
		{"url_sanitization", s.sanitizeURLs},
		{"spam_filtering", s.filterSpam},
		{"length_enforcement", s.enforceLength},
		{"final_escape", s.finalEscape},
	}

	for _, sg := range stages {
		if err := s.runStage(sg, st); err != nil {
			s.logger.Error("sanitizer stage failed, applying emergency sanitizer", "stage", sg.name, "err", err)
			emergencyCount.Inc()
			st.content = emergencySanitize(content)
			res.Risk = res.Risk.Escalate(moderation.RiskHigh)
			st.modified("emergency_sanitizer")
			break
		}
	}

	res.Content = st.content
	return res
}

// runStage converts a stage panic into an error so one misbehaving rewrite
// cannot take down the pipeline.
func (s *Sanitizer) runStage(sg stage, st *state) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage panic: %v", r)
		}
	}()
	return sg.fn(st)
}

var (
	xssPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<\s*script[^>]*>.*?<\s*/\s*script\s*>`),
		regexp.MustCompile(`(?i)<\s*script[^>]*>`),
		regexp.MustCompile(`(?i)javascript\s*:`),
		regexp.MustCompile(`(?i)on(load|click|error|mouseover|focus)\s*=`),
	}
	sqlPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(union|select|insert|drop|delete|update)\s+(all\s+)?(from|into|table|set)\s`),
		regexp.MustCompile(`(?i)'\s*(or|and)\s+'?\d+'?\s*=\s*'?\d`),
	}
	cmdPatterns = []*regexp.Regexp{
		regexp.MustCompile("[;&|`$]\\s*(rm|curl|wget|nc|bash|sh|powershell)\\b"),
	}
	traversalPattern = regexp.MustCompile(`\.\.[/\\]`)

	dangerousTagRegex = regexp.MustCompile(`(?i)<\s*/?\s*(script|iframe|object|embed|form|style|link|meta)[^>]*>`)
	anyTagRegex       = regexp.MustCompile(`<\s*(/?)\s*([a-zA-Z][a-zA-Z0-9]*)[^>]*>`)

	zeroWidthAndControl = runes.Predicate(func(r rune) bool {
		switch r {
		case '\u200B', '\u200C', '\u200D', '\u2060', '\uFEFF':
			return true
		}
		return unicode.Is(unicode.Cc, r) && r != '\n' && r != '\t'
	})

	shortenerDomains = []string{"bit.ly", "tinyurl.com", "goo.gl", "t.co", "is.gd", "ow.ly", "buff.ly"}
	ipHostRegex      = regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}$`)
	execQueryParams  = []string{"cmd", "exec", "eval", "run", "script"}

	whitespaceRuns = regexp.MustCompile(`[ \t]{3,}`)
)

// collapseCharRuns shortens any run of 8+ identical runes down to 3.
func collapseCharRuns(s string) (string, bool) {
	runes := []rune(s)
	var out []rune
	collapsed := false
	for i := 0; i < len(runes); {
		j := i
		for j < len(runes) && runes[j] == runes[i] {
			j++
		}
		if j-i >= 8 {
			out = append(out, runes[i], runes[i], runes[i])
			collapsed = true
		} else {
			out = append(out, runes[i:j]...)
		}
		i = j
	}
	if !collapsed {
		return s, false
	}
	return string(out), true
}

func (s *Sanitizer) preventInjection(st *state) error {
	apply := func(patterns []*regexp.Regexp, marker, element string, risk moderation.RiskLevel) {
		for _, re := range patterns {
			if re.MatchString(st.content) {
				st.content = re.ReplaceAllString(st.content, marker)
				st.block(risk, element)
				st.modified("injection_prevention")
			}
		}
	}
	apply(xssPatterns, "[blocked:xss]", "xss_pattern", moderation.RiskCritical)
	apply(sqlPatterns, "[blocked:sql]", "sql_injection_pattern", moderation.RiskHigh)
	apply(cmdPatterns, "[blocked:cmd]", "command_injection_pattern", moderation.RiskHigh)
	if traversalPattern.MatchString(st.content) {
		st.content = traversalPattern.ReplaceAllString(st.content, "[blocked:path]")
		st.block(moderation.RiskHigh, "path_traversal_pattern")
		st.modified("injection_prevention")
	}
	return nil
}

func (s *Sanitizer) stripHTML(st *state) error {
	if dangerousTagRegex.MatchString(st.content) {
		st.content = dangerousTagRegex.ReplaceAllString(st.content, "")
		st.block(moderation.RiskHigh, "dangerous_html_tag")
		st.modified("html_stripping")
	}
	allowed := make(map[string]bool, len(s.cfg.AllowedTags))
	for _, t := range s.cfg.AllowedTags {
		allowed[strings.ToLower(t)] = true
	}
	stripped := false
	st.content = anyTagRegex.ReplaceAllStringFunc(st.content, func(tag string) string {
		m := anyTagRegex.FindStringSubmatch(tag)
		if m != nil && allowed[strings.ToLower(m[2])] {
			// allowed tags are kept but attributes are dropped
			return "<" + m[1] + strings.ToLower(m[2]) + ">"
		}
		stripped = true
		return ""
	})
	if stripped {
		st.modified("html_stripping")
	}
	return nil
}

func (s *Sanitizer) normalizeUnicode(st *state) error {
	normFunc := transform.Chain(runes.Remove(zeroWidthAndControl), norm.NFC)
	out, _, err := transform.String(normFunc, st.content)
	if err != nil {
		return fmt.Errorf("unicode normalization: %w", err)
	}
	if out != st.content {
		st.content = out
		st.modified("unicode_normalization")
	}
	return nil
}

func (s *Sanitizer) sanitizeURLs(st *state) error {
	for _, raw := range keyword.ExtractTextURLs(st.content) {
		withScheme := raw
		if !strings.Contains(withScheme, "://") {
			withScheme = "https://" + withScheme
		}
		u, err := url.Parse(withScheme)
		if err != nil {
			continue
		}
		host := strings.ToLower(u.Hostname())

		blocked := ""
		if ipHostRegex.MatchString(host) {
			blocked = "ip_literal_url"
		}
		for _, d := range shortenerDomains {
			if host == d {
				blocked = "url_shortener"
			}
		}
		if blocked == "" && len(s.cfg.AllowedDomains) > 0 {
			ok := false
			for _, d := range s.cfg.AllowedDomains {
				if host == d || strings.HasSuffix(host, "."+d) {
					ok = true
					break
				}
			}
			if !ok {
				blocked = "disallowed_domain"
			}
		}
		if blocked == "" {
			q := u.Query()
			for _, p := range execQueryParams {
				if q.Has(p) {
					blocked = "executable_query_parameter"
					break
				}
			}
		}
		if blocked != "" {
			st.content = strings.ReplaceAll(st.content, raw, "[blocked:url]")
			st.block(moderation.RiskHigh, blocked)
			st.modified("url_sanitization")
		}
	}
	return nil
}

func (s *Sanitizer) filterSpam(st *state) error {
	if whitespaceRuns.MatchString(st.content) {
		st.content = whitespaceRuns.ReplaceAllString(st.content, " ")
		st.modified("spam_filtering")
	}
	if collapsed, ok := collapseCharRuns(st.content); ok {
		st.content = collapsed
		st.block(moderation.RiskMedium, "repeated_character_run")
		st.modified("spam_filtering")
	}
	runes := []rune(st.content)
	if len(runes) >= 20 {
		special := 0
		for _, r := range runes {
			if !unicode.IsLetter(r) && !unicode.IsNumber(r) && !unicode.IsSpace(r) {
				special++
			}
		}
		if float64(special)/float64(len(runes)) > 0.5 {
			st.block(moderation.RiskMedium, "high_special_character_ratio")
		}
	}
	return nil
}

func (s *Sanitizer) enforceLength(st *state) error {
	if runes := []rune(st.content); s.cfg.MaxLength > 0 && len(runes) > s.cfg.MaxLength {
		st.content = string(runes[:s.cfg.MaxLength])
		st.block(moderation.RiskMedium, "length_exceeded")
		st.modified("length_enforcement")
	}
	return nil
}

func (s *Sanitizer) finalEscape(st *state) error {
	out := strings.ReplaceAll(st.content, "\x00", "")
	out = html.EscapeString(out)
	if out != st.content {
		st.modified("final_escape")
	}
	st.content = out
	return nil
}

var emergencyAllowed = regexp.MustCompile(`[^a-zA-Z0-9 .,!?'-]`)

// emergencySanitize strips content down to alphanumerics and basic
// punctuation with a hard 500-character cap. Used when a rewrite stage fails.
func emergencySanitize(content string) string {
	out := emergencyAllowed.ReplaceAllString(content, "")
	if len(out) > 500 {
		out = out[:500]
	}
	return out
}
