package portal

// Phase is the orchestrator lifecycle state. The machine is intentionally
// small; the intended transitions:
//
//	init     -> starting
//	starting -> running | failed
//	running  -> stopping
//	stopping -> stopped
//
// failed and stopped are terminal. A fresh Orchestrator is constructed per
// run (and per test); there is no process-wide reset.
type Phase string

const (
	PhaseInit     Phase = "init"
	PhaseStarting Phase = "starting"
	PhaseRunning  Phase = "running"
	PhaseStopping Phase = "stopping"
	PhaseStopped  Phase = "stopped"
	PhaseFailed   Phase = "failed"
)
