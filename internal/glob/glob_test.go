// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package glob

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	cases := []struct {
		pattern, subj string
		want          bool
	}{
		{"", "anything", true},
		{"*", "anything", true},
		{"web*", "web-server", true},
		{"web*", "worker", false},
		{"*-service", "auth-service", true},
		{"*-service", "auth-service-v2", false},
		{"web-?", "web-1", true},
		{"web-?", "web-12", false},
		{"GET /users/?", "GET /users/1", true},
		{"GET /users/*", "GET /users/1/orders", true},
		{"exact", "exact", true},
		{"exact", "Exact", false},
		{"*a*b*c*", "xaxbxcx", true},
		{"*a*b*c*", "xbxax", false},
		{"?", "", false},
		{"?", "x", true},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Match(c.pattern, c.subj), "Match(%q, %q)", c.pattern, c.subj)
	}
}
