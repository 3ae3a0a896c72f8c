// Package process hosts long-running subprocesses with piped stdio.
//
// Children run in their own process group. Terminate sends SIGTERM to the
// group and escalates to SIGKILL after the command's grace period; Kill
// goes straight to SIGKILL. The batch pool uses it to run worker processes.
package process
