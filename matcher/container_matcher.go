// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package matcher

import (
	"fmt"

	g "github.com/onsi/gomega"
	"github.com/onsi/gomega/types"
)

// HaveContainerNameID succeeds if ACTUAL is a container monitor (or anything
// else with an Info() method returning Name and ID fields) of a container with
// the specified name or ID. Alternatively of a name/ID string, a GomegaMatcher
// can also be specified for matching the name or ID, such as ContainSubstring
// and MatchRegexp.
func HaveContainerNameID(nameorid interface{}) types.GomegaMatcher {
	nameoridMatcher := stringMatcher("nameorid", nameorid)
	return g.SatisfyAny(
		g.HaveField("Info().ID", nameoridMatcher),
		g.HaveField("Info().Name", nameoridMatcher),
	)
}

// BeInState succeeds if ACTUAL is a container monitor (or anything else with
// an Info() method returning a State field) of a container in the specified
// state, such as "running". Alternatively of a state string, a GomegaMatcher
// can also be specified for matching the state.
func BeInState(state interface{}) types.GomegaMatcher {
	stateMatcher := stringMatcher("state", state)
	return g.HaveField("Info().State",
		g.WithTransform(func(actual interface{}) string {
			return fmt.Sprint(actual)
		}, stateMatcher))
}

// HaveKnownGauge succeeds if ACTUAL is a container monitor (or anything else
// with a Stats() method) whose last statistics have the specified gauge field
// known, such as "CPUPercent".
func HaveKnownGauge(gauge string) types.GomegaMatcher {
	return g.HaveField("Stats()."+gauge, g.Not(g.BeNil()))
}

func stringMatcher(argname string, expected interface{}) types.GomegaMatcher {
	switch expected := expected.(type) {
	case string:
		return g.Equal(expected)
	case types.GomegaMatcher:
		return expected
	}
	panic(argname + " argument must be string or GomegaMatcher")
}
