package compliance

// DeniedError carries a deny verdict out of a service call that required the
// gatekeeper to allow the action. Transports render it as 403 with the
// verdict as the body.
type DeniedError struct {
	Action  GateAction
	Verdict Verdict
}

func (e *DeniedError) Error() string {
	return "gatekeeper denied " + string(e.Action) + ": " + e.Verdict.Reason
}
