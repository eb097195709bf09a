package ports

// Interactor is the user-facing side of a command. Output goes to the user, not
// the log.
type Interactor interface {
	Output(message string)
	Warning(message string)
	Error(message string, err error)
	// Prompt shows question and returns the user's reply without the line ending
	Prompt(question string) (string, error)
}
