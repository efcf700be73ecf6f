package pipeline

// Stage is a step in the life of one compile.
//
//	Pending -> Synthesizing -> Compiling -> Succeeded | Failed
//	Succeeded -> Instantiating -> Ready | Failed
type Stage uint8

const (
	Pending Stage = iota
	Synthesizing
	Compiling
	Succeeded
	Instantiating
	Ready
	Failed
)

var stageNames = [...]string{
	Pending:       "pending",
	Synthesizing:  "synthesizing",
	Compiling:     "compiling",
	Succeeded:     "succeeded",
	Instantiating: "instantiating",
	Ready:         "ready",
	Failed:        "failed",
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}
