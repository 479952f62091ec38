package deploy

import (
	"github.com/0xPolygon/router-mesh/command/helper"
	"github.com/0xPolygon/router-mesh/deployer"
)

type deployParams struct {
	helper.EngineParams

	artifactsPath string
	policyRaw     string

	policy deployer.WritePolicy
}

func (dp *deployParams) validateFlags() error {
	if err := dp.Validate(); err != nil {
		return err
	}

	// deploy writes, so a missing key fails up front rather than on
	// the first transaction
	if err := dp.RequireSigner(); err != nil {
		return err
	}

	policy, err := deployer.ParseWritePolicy(dp.policyRaw)
	if err != nil {
		return err
	}

	dp.policy = policy

	return nil
}
