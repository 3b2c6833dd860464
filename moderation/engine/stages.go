package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/sentry-moderation/sentry/moderation"
	"github.com/sentry-moderation/sentry/moderation/analysis"
)

// securityStage runs rate limiting, input validation, and (for high-risk
// input) deep sanitization. Each violation maps independently to an action
// which is executed immediately.
type securityStage struct {
	deps Deps
}

func (s *securityStage) Name() string { return "security" }

func (s *securityStage) Evaluate(ctx context.Context, sc *StageContext) (*moderation.Decision, error) {
	msg := sc.Msg

	// rate limit first: cheapest, and a flooding user should not get free
	// content analysis
	rl := s.deps.RateLimiter.Check(ctx, msg.AuthorID, msg.ChannelID)
	if !rl.Allowed {
		action := rl.PenaltyLevel.Action()
		dec := &moderation.Decision{
			Action:        action,
			DetectionType: moderation.DetectionSecurity,
			RuleTriggered: strptr("rate_limit"),
			Confidence:    map[string]float64{"rate_limit": 1.0},
			Reasoning:     rl.Reason,
		}
		s.execute(ctx, dec, msg)
		return dec, nil
	}

	val := s.deps.Validator.Validate(ctx, msg)
	if val.Risk == moderation.RiskCritical {
		dec := &moderation.Decision{
			Action:        moderation.ActionDeleteWarn,
			DetectionType: moderation.DetectionSecurity,
			RuleTriggered: strptr("input_validation"),
			Confidence:    map[string]float64{"validation": 1.0},
			Reasoning:     strings.Join(val.Errors, "; "),
		}
		s.execute(ctx, dec, msg)
		return dec, nil
	}

	// deep sanitization runs only when validation flagged high risk; the
	// sanitizer report then decides the action
	if val.Risk == moderation.RiskHigh {
		san := s.deps.Sanitizer.Sanitize(msg.Content)
		action := moderation.ActionMask
		if san.Risk == moderation.RiskCritical {
			action = moderation.ActionDeleteWarn
		}
		dec := &moderation.Decision{
			Action:        action,
			DetectionType: moderation.DetectionSecurity,
			RuleTriggered: strptr("content_sanitization"),
			Confidence:    map[string]float64{"sanitization": 1.0},
			Reasoning:     fmt.Sprintf("validation: %s; blocked elements: %s", strings.Join(val.Errors, "; "), strings.Join(san.BlockedElements, ", ")),
		}
		s.execute(ctx, dec, msg)
		return dec, nil
	}
	return nil, nil
}

func (s *securityStage) execute(ctx context.Context, dec *moderation.Decision, msg *moderation.Message) {
	res := s.deps.Executor.Execute(ctx, dec.Action, msg, dec.Reasoning)
	dec.Success = res.Success
	dec.Err = res.Err
}

type fastPassStage struct {
	deps Deps
}

func (s *fastPassStage) Name() string { return "fast_pass" }

func (s *fastPassStage) Evaluate(ctx context.Context, sc *StageContext) (*moderation.Decision, error) {
	out := s.deps.FastPass.Check(sc.Msg)
	if !out.Triggered {
		return nil, nil
	}
	dec := &moderation.Decision{
		Action:        out.Action,
		DetectionType: moderation.DetectionFastPass,
		RuleTriggered: strptr(out.RuleTriggered),
		Confidence:    map[string]float64{"fast_pass": out.Confidence},
		Reasoning:     out.Reason,
	}
	res := s.deps.Executor.Execute(ctx, dec.Action, sc.Msg, dec.Reasoning)
	dec.Success = res.Success
	dec.Err = res.Err
	return dec, nil
}

type aiStage struct {
	deps Deps
}

func (s *aiStage) Name() string { return "ai_analysis" }

func (s *aiStage) Evaluate(ctx context.Context, sc *StageContext) (*moderation.Decision, error) {
	// analysis requires an active policy pack
	if sc.PackID == "" {
		return nil, nil
	}
	rules, err := s.deps.Policies.Rules(ctx, sc.PackID)
	if err != nil {
		return nil, fmt.Errorf("loading rules for analysis: %w", err)
	}

	s.deps.Analyzer.RememberMessage(ctx, sc.Msg)
	res := s.deps.Analyzer.Analyze(ctx, sc.Msg, rules)
	outcome := s.deps.Analyzer.DetermineAction(res, rules, sc.AllowModelSuggested)
	if outcome.Action == moderation.ActionNone {
		return nil, nil
	}

	dec := &moderation.Decision{
		Action:        outcome.Action,
		DetectionType: moderation.DetectionAIAnalysis,
		RuleTriggered: strptr(outcome.RuleTriggered),
		Confidence: map[string]float64{
			"toxicity":   res.Scores.Toxicity,
			"harassment": res.Scores.Harassment,
			"spam":       res.Scores.Spam,
			"grooming":   res.Scores.Grooming,
			"overall":    res.Confidence,
		},
		Reasoning: analysis.GenerateExplanation(res, outcome.Action),
	}
	exec := s.deps.Executor.Execute(ctx, dec.Action, sc.Msg, dec.Reasoning)
	dec.Success = exec.Success
	dec.Err = exec.Err
	return dec, nil
}

func strptr(s string) *string {
	return &s
}
