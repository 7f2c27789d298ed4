// Package command defines all commands that can be sent to the application.
// Commands represent user intentions and are processed by the application layer.
package command

// Command is the base interface for all commands.
// Commands are sent from the presentation layer to the application layer.
type Command interface {
	// CommandName returns the name of the command for logging/debugging
	CommandName() string
}

// JobCommand is a command that targets a specific inference job.
type JobCommand interface {
	Command
	// JobID returns the target job ID
	JobID() string
}

// baseJobCommand provides common implementation for job commands.
type baseJobCommand struct {
	jobID string
}

func (c *baseJobCommand) JobID() string {
	return c.jobID
}
