package command

import (
	"github.com/spf13/cobra"
)

// OutputFormatter renders a finished command, either its result or the
// error that replaced it, in the format the invocation selected
type OutputFormatter interface {
	// getErrorOutput renders the recorded error
	getErrorOutput() string

	// getCommandOutput renders the recorded command result
	getCommandOutput() string

	// SetError records the error that ended the command
	SetError(err error)

	// SetCommandResult records the result of a finished command
	SetCommandResult(result CommandResult)

	// WriteOutput emits the rendered result or error
	WriteOutput()
}

// CommandResult is the renderable outcome of one engine command run,
// a deployment summary, a drift report or a version stamp.
type CommandResult interface {
	GetOutput() string
}

func shouldOutputJSON(baseCmd *cobra.Command) bool {
	return baseCmd.Flag(JSONOutputFlag).Changed
}

// InitializeOutputter picks the formatter requested by the --json flag.
func InitializeOutputter(cmd *cobra.Command) OutputFormatter {
	if shouldOutputJSON(cmd) {
		return newJSONOutput()
	}

	return newCLIOutput()
}
