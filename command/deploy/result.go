package deploy

import (
	"bytes"
	"fmt"

	"github.com/0xPolygon/router-mesh/command/helper"
	"github.com/0xPolygon/router-mesh/deployer"
	"github.com/0xPolygon/router-mesh/types"
)

type chainStatus struct {
	Chain       string        `json:"chain"`
	Router      types.Bytes32 `json:"router"`
	Deployed    bool          `json:"deployed"`
	Foreign     bool          `json:"foreign"`
	Submissions int           `json:"submissions"`
	SkipReason  string        `json:"skipReason,omitempty"`
	Error       string        `json:"error,omitempty"`
}

type deployResult struct {
	Chains []chainStatus `json:"chains"`
}

func newDeployResult(result *deployer.DeploymentResult) *deployResult {
	out := &deployResult{}

	for _, chainResult := range result.Chains() {
		status := chainStatus{
			Chain:       chainResult.Chain,
			Router:      chainResult.Router,
			Deployed:    chainResult.Deployed,
			Foreign:     chainResult.Foreign,
			Submissions: chainResult.Submissions,
			SkipReason:  chainResult.SkipReason,
		}

		if chainResult.Err != nil {
			status.Error = chainResult.Err.Error()
		}

		out.Chains = append(out.Chains, status)
	}

	return out
}

func (r *deployResult) GetOutput() string {
	var buffer bytes.Buffer

	buffer.WriteString("\n[ROUTER DEPLOYMENT]\n")

	rows := make([]string, 0, len(r.Chains)+1)
	rows = append(rows, "Chain|Router|Status|Writes")

	for _, chain := range r.Chains {
		rows = append(rows, fmt.Sprintf("%s|%s|%s|%d",
			chain.Chain, chain.Router, chain.statusLabel(), chain.Submissions))
	}

	buffer.WriteString(helper.FormatList(rows))
	buffer.WriteString("\n")

	for _, chain := range r.Chains {
		if chain.Error != "" {
			buffer.WriteString(fmt.Sprintf("\nChain %s failed: %s\n", chain.Chain, chain.Error))
		}

		if chain.SkipReason != "" {
			buffer.WriteString(fmt.Sprintf("\nChain %s skipped: %s\n", chain.Chain, chain.SkipReason))
		}
	}

	return buffer.String()
}

func (c *chainStatus) statusLabel() string {
	switch {
	case c.Error != "":
		return "failed"
	case c.Foreign:
		return "foreign"
	case c.SkipReason != "":
		return "skipped"
	case c.Deployed:
		return "deployed"
	default:
		return "converged"
	}
}
