package check

import (
	"github.com/0xPolygon/router-mesh/command/helper"
)

type checkParams struct {
	helper.EngineParams

	artifactsPath string
}

func (cp *checkParams) validateFlags() error {
	return cp.Validate()
}
