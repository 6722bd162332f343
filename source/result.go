package source

// Result is the immutable snapshot of one worker's outcome.
// A new Result replaces the old one on every transition.
type Result[T any] struct {
	InstanceID string `json:"instance_id"`
	Kind       Kind   `json:"kind"`
	State      State  `json:"state"`
	Items      []T    `json:"items,omitempty"`
	Err        *Error `json:"error,omitempty"`
}

// IsTerminal reports whether the worker has nothing left to do.
func (r Result[T]) IsTerminal() bool {
	return r.State.IsTerminal()
}

// Idle returns the initial result of a worker.
func Idle[T any](instanceID string, kind Kind) Result[T] {
	return Result[T]{InstanceID: instanceID, Kind: kind, State: StateIdle}
}

// Working returns the result of a worker that has started.
func (r Result[T]) Working() Result[T] {
	return Result[T]{InstanceID: r.InstanceID, Kind: r.Kind, State: StateWorking}
}

// Disabled returns the result of a worker that was switched off.
func (r Result[T]) Disabled() Result[T] {
	return Result[T]{InstanceID: r.InstanceID, Kind: r.Kind, State: StateDisabled}
}

// Succeeded returns the result of a worker that finished with items.
func (r Result[T]) Succeeded(items []T) Result[T] {
	return Result[T]{InstanceID: r.InstanceID, Kind: r.Kind, State: StateSucceeded, Items: items}
}

// Failed returns the result of a worker that finished with an error.
func (r Result[T]) Failed(err *Error) Result[T] {
	return Result[T]{InstanceID: r.InstanceID, Kind: r.Kind, State: StateFailed, Err: err}
}
