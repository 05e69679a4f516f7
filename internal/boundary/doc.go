// Package boundary dispatches calls to a key provider that lives in a separate
// runtime and only exchanges scalars, strings and byte buffers.
//
// Each runtime is reached through a Runtime adapter. Such runtimes report
// failures through an ambient pending-fault flag, and an uncleared fault poisons
// every later call. The Gateway therefore checks and clears the flag after every
// dispatch and folds the outcome into a Result:
//   - Ok: the call returned a value of the expected shape
//   - RemoteFault: the provider raised; the fault has already been cleared
//   - TransportError: signature mismatch, timeout or a failed call
package boundary
