// Package cdp implements the session engine that drives a single Chrome
// DevTools Protocol conversation with a debuggee: method classification,
// transport, response/event demultiplexing and run-until-quiescent
// execution.
package cdp

// Method classification is purely a function of the CDP method name. None
// of it depends on params or result payloads, so every predicate here is a
// simple set membership check.

// ignorableEvents are events the engine drops without surfacing to the
// caller. Debugger.scriptParsed fires once per module load and is pure
// noise for the run-until-quiescent contract.
var ignorableEvents = map[string]struct{}{
	"Debugger.scriptParsed": {},
}

// pauseMarkers are events that indicate the debuggee has suspended
// execution.
var pauseMarkers = map[string]struct{}{
	"Debugger.paused": {},
}

// resumedMarkers are events that indicate the debuggee has resumed after a
// pause, without terminating.
var resumedMarkers = map[string]struct{}{
	"Debugger.resumed": {},
}

// terminationMarkers are events that indicate the debuggee's execution
// context is gone for good. Either one ends a quiescence wait.
var terminationMarkers = map[string]struct{}{
	"Inspector.detached":                {},
	"Runtime.executionContextDestroyed": {},
}

// resumingCommands are commands that definitely cause the debuggee to run
// until its next pause or termination.
var resumingCommands = map[string]struct{}{
	"Debugger.resume":   {},
	"Debugger.stepInto": {},
	"Debugger.stepOut":  {},
	"Debugger.stepOver": {},
}

// mayRunCommands are commands that might cause the debuggee to run, but
// give no guarantee: the engine must wait for quiescence after issuing one
// the same way it does after a resuming command.
var mayRunCommands = map[string]struct{}{
	"Runtime.runIfWaitingForDebugger": {},
	"Debugger.setSkipAllPauses":       {},
}

// allowedCommands is the closed set of CDP methods a caller may issue
// through execute/execute_batch, absent allow_unknown_command.
var allowedCommands = map[string]struct{}{
	"Debugger.enable":                     {},
	"Runtime.enable":                      {},
	"Network.enable":                      {},
	"HeapProfiler.enable":                 {},
	"Profiler.enable":                     {},
	"Debugger.resume":                     {},
	"Debugger.pause":                      {},
	"Debugger.stepOver":                   {},
	"Debugger.stepInto":                   {},
	"Debugger.stepOut":                    {},
	"Debugger.setBreakpointByUrl":         {},
	"Debugger.setBreakpointOnFunctionCall": {},
	"Debugger.removeBreakpoint":           {},
	"Debugger.setSkipAllPauses":           {},
	"Debugger.setBlackboxPatterns":        {},
	"Debugger.setPauseOnExceptions":       {},
	"Debugger.getScriptSource":            {},
	"Debugger.getStackTrace":              {},
	"Runtime.evaluate":                    {},
	"Debugger.evaluateOnCallFrame":        {},
	"Runtime.callFunctionOn":              {},
	"Runtime.getProperties":               {},
	"Runtime.runIfWaitingForDebugger":     {},
	"HeapProfiler.takeHeapSnapshot":       {},
	"HeapProfiler.startSampling":          {},
	"HeapProfiler.stopSampling":           {},
	"Profiler.start":                      {},
	"Profiler.stop":                       {},
	"Profiler.startPreciseCoverage":       {},
	"Profiler.takePreciseCoverage":        {},
	"Profiler.stopPreciseCoverage":        {},
}

// IsIgnorableEvent reports whether method is an event the engine should
// drop silently instead of enqueueing.
func IsIgnorableEvent(method string) bool {
	_, ok := ignorableEvents[method]
	return ok
}

// IsPauseMarker reports whether method signals the debuggee has suspended.
func IsPauseMarker(method string) bool {
	_, ok := pauseMarkers[method]
	return ok
}

// IsResumedMarker reports whether method signals a resume-without-termination.
func IsResumedMarker(method string) bool {
	_, ok := resumedMarkers[method]
	return ok
}

// IsTerminationMarker reports whether method signals the debuggee's
// execution context is gone.
func IsTerminationMarker(method string) bool {
	_, ok := terminationMarkers[method]
	return ok
}

// IsQuiescencePoint reports whether method is a marker that should end a
// wait_for_quiescence loop: either a pause or a termination.
func IsQuiescencePoint(method string) bool {
	return IsPauseMarker(method) || IsTerminationMarker(method)
}

// IsResumingCommand reports whether method is a command that definitely
// resumes execution.
func IsResumingCommand(method string) bool {
	_, ok := resumingCommands[method]
	return ok
}

// IsMayRunCommand reports whether method is a command that might resume
// execution.
func IsMayRunCommand(method string) bool {
	_, ok := mayRunCommands[method]
	return ok
}

// TriggersQuiescenceWait reports whether issuing method should be followed
// by a wait_for_quiescence call.
func TriggersQuiescenceWait(method string) bool {
	return IsResumingCommand(method) || IsMayRunCommand(method)
}

// IsAllowedCommand reports whether method is in the closed set of commands
// the engine accepts from callers.
func IsAllowedCommand(method string) bool {
	_, ok := allowedCommands[method]
	return ok
}
