// SPDX-License-Identifier: MPL-2.0

// Package sshserver serves the operator console over SSH using Wish.
//
// Clients authenticate with a shared token given as the password; public
// keys are refused. A session without a command gets an interactive console.
// A session with a command ("ssh -p 2222 op@host module list") runs that
// one line and exits with status 1 when it fails.
package sshserver
