// Package preflight provides readiness checks for the directories and
// listen address Stagehand depends on.
//
// The daemon runs RunAll before it starts watching and refuses to start when
// a required check fails. The CLI "stagehand status" command runs the same
// directory checks to explain why a daemon is not running.
package preflight
