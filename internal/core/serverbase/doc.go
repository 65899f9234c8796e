// SPDX-License-Identifier: MPL-2.0

// Package serverbase holds the start/stop state machine shared by the
// host's network front ends.
//
// A Base is single-use. Start moves it from created to running through
// starting, Stop moves it to stopped through stopping, and a failure at any
// point parks it in failed.
package serverbase
