package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAction(t *testing.T) {
	assert := assert.New(t)

	a, ok := ParseAction("delete_warn")
	assert.True(ok)
	assert.Equal(ActionDeleteWarn, a)

	a, ok = ParseAction("obliterate")
	assert.False(ok)
	assert.Equal(ActionNone, a)

	a, ok = ParseAction("")
	assert.False(ok)
	assert.Equal(ActionNone, a)
}

func TestPenaltyLevelAction(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(ActionNone, PenaltyNone.Action())
	assert.Equal(ActionWarning, PenaltyWarning.Action())
	assert.Equal(ActionTempMute, PenaltyTempMute.Action())
	assert.Equal(ActionTempBan, PenaltyTempBan.Action())
}

func TestRiskEscalateMonotonic(t *testing.T) {
	assert := assert.New(t)

	r := RiskLow
	r = r.Escalate(RiskHigh)
	assert.Equal(RiskHigh, r)

	// escalation never downgrades
	r = r.Escalate(RiskMedium)
	assert.Equal(RiskHigh, r)

	r = r.Escalate(RiskCritical)
	assert.Equal(RiskCritical, r)
}

func TestRiskLevelString(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("low", RiskLow.String())
	assert.Equal("medium", RiskMedium.String())
	assert.Equal("high", RiskHigh.String())
	assert.Equal("critical", RiskCritical.String())
}
