package deployer

import "fmt"

// WritePolicy decides what happens when the configured signer is not
// the current owner of a router that needs writes.
type WritePolicy string

const (
	// SkipUnauthorized reads the owner first and skips enrollment,
	// infra and ownership writes with a logged notice when the signer
	// is not the owner. The deploy step itself is never gated.
	SkipUnauthorized WritePolicy = "skip-unauthorized"

	// AttemptAll submits writes regardless of ownership and surfaces
	// the resulting revert as a chain error.
	AttemptAll WritePolicy = "attempt-all"
)

func ParseWritePolicy(raw string) (WritePolicy, error) {
	switch WritePolicy(raw) {
	case SkipUnauthorized, AttemptAll:
		return WritePolicy(raw), nil
	default:
		return "", fmt.Errorf("unknown write policy '%s'", raw)
	}
}
