// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package samplernames

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecisionMaker(t *testing.T) {
	cases := []struct {
		name   SamplerName
		want   string
		wantOk bool
	}{
		{Default, "-0", true},
		{AgentRate, "-1", true},
		{Rule, "-3", true},
		{Manual, "-4", true},
		{AppSec, "-5", true},
		{Remote, "-6", true},
		{Unknown, "", false},
	}
	for _, c := range cases {
		got, ok := DecisionMaker(c.name)
		assert.Equal(t, c.wantOk, ok, "DecisionMaker(%v) ok", c.name)
		assert.Equal(t, c.want, got, "DecisionMaker(%v)", c.name)
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "rule", Rule.String())
	assert.Equal(t, "unknown", SamplerName(99).String())
}
