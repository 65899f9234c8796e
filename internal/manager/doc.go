// SPDX-License-Identifier: MPL-2.0

// Package manager drives the module lifecycle: ordered loading of
// discovered packages, enable and disable broadcasts, and unloading with
// deterministic cleanup.
//
// Every lifecycle call is serialized by one mutex and reports a Result
// instead of failing the host. Module faults end up in Result.Reason, which
// operator commands print verbatim.
package manager
