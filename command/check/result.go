package check

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/0xPolygon/router-mesh/checker"
	"github.com/0xPolygon/router-mesh/command/helper"
)

type unreachableChain struct {
	Chain string `json:"chain"`
	Error string `json:"error"`
}

type checkResult struct {
	Clean       bool                `json:"clean"`
	Violations  []checker.Violation `json:"violations"`
	Unreachable []unreachableChain  `json:"unreachable,omitempty"`
}

func newCheckResult(report *checker.Report) *checkResult {
	out := &checkResult{
		Clean:      report.Clean(),
		Violations: report.Violations,
	}

	for _, chain := range report.UnreachableChains() {
		out.Unreachable = append(out.Unreachable, unreachableChain{
			Chain: chain,
			Error: report.Unreachable[chain].Error(),
		})
	}

	return out
}

func (r *checkResult) GetOutput() string {
	var buffer bytes.Buffer

	buffer.WriteString("\n[ROUTER CHECK]\n")

	if r.Clean && len(r.Unreachable) == 0 {
		buffer.WriteString("No drift detected, every chain matches its desired state\n")

		return buffer.String()
	}

	if len(r.Violations) > 0 {
		rows := make([]string, 0, len(r.Violations)+1)
		rows = append(rows, "Chain|Violation|Detail")

		for _, violation := range r.Violations {
			rows = append(rows, fmt.Sprintf("%s|%s|%s",
				violation.Chain, violation.Type, violation.Description))
		}

		buffer.WriteString(helper.FormatList(rows))
		buffer.WriteString("\n")

		for _, violation := range r.Violations {
			if len(violation.EnrollmentDiff) == 0 {
				continue
			}

			buffer.WriteString(fmt.Sprintf("\nEnrollment diff for chain %s:\n", violation.Chain))

			domains := make([]uint32, 0, len(violation.EnrollmentDiff))
			for domain := range violation.EnrollmentDiff {
				domains = append(domains, domain)
			}

			sort.Slice(domains, func(i, j int) bool { return domains[i] < domains[j] })

			diffRows := make([]string, 0, len(domains)+1)
			diffRows = append(diffRows, "Domain|Expected|Actual")

			for _, domain := range domains {
				entry := violation.EnrollmentDiff[domain]
				diffRows = append(diffRows, fmt.Sprintf("%d|%s|%s",
					domain, entry.Expected, entry.Actual))
			}

			buffer.WriteString(helper.FormatList(diffRows))
			buffer.WriteString("\n")
		}
	}

	if len(r.Unreachable) > 0 {
		buffer.WriteString("\nUnreachable chains (not audited):\n")

		rows := make([]string, 0, len(r.Unreachable)+1)
		rows = append(rows, "Chain|Error")

		for _, chain := range r.Unreachable {
			rows = append(rows, fmt.Sprintf("%s|%s", chain.Chain, chain.Error))
		}

		buffer.WriteString(helper.FormatList(rows))
		buffer.WriteString("\n")
	}

	return buffer.String()
}
