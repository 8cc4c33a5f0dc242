package triage

// Decision tells the engine whether to re-enter the classifier or
// terminate the run.
type Decision int

const (
	Continue Decision = iota
	Halt
)

// Next is the loop controller: a pure function of the run state,
// consulted after every dispatch. It continues exactly while messages
// remain under the cursor.
func Next(s *RunState) Decision {
	if s.Cursor < len(s.Messages) {
		return Continue
	}
	return Halt
}
