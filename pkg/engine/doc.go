// Package engine reconciles the installable units of an IDE installation.
//
// # Overview
//
// A reconciliation run moves the set of installed units towards a requested
// state in four steps:
//
//  1. Parse - every requested identifier is parsed; a malformed one aborts the
//     run before anything external is touched.
//  2. Query - the installed roots are listed through a Querier and parsed with
//     the same rules.
//  3. Plan - Plan computes which installed units conflict with requested ones
//     and derives the uninstall and install sets.
//  4. Apply - every uninstall, then every install, is handed to an Actuator,
//     one at a time.
//
// # Conflicts
//
// An installed unit conflicts with a requested one when the two share a name
// and their first ConflictPrecision version segments but are not identical:
//
//	installed  A/18.12.3
//	requested  A/18.12.4   -> uninstall A/18.12.3, install A/18.12.4
//
// A unit installed with exactly the requested version is left alone.
//
// # Error Classification
//
// Failures are returned as *Error with one of three kinds:
//
//   - KindMalformedUnit: a requested identifier did not parse
//   - KindExternalQuery: the installed units could not be listed or parsed
//   - KindActionExecution: an action failed; Completed lists what ran before it
//
// No action is retried and nothing is rolled back.
package engine
