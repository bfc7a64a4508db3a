// Package cli assembles the aipscan-deploy command tree.
//
// One binary serves every role the deployment takes:
//
//	aipscan-deploy converge          run one convergence against this host
//	aipscan-deploy plan              show which tasks a selection would run
//	aipscan-deploy versions          resolve the component versions a run would install
//	aipscan-deploy runs              list recorded runs from the ledger
//	aipscan-deploy serve             run the agent with the status API
//	aipscan-deploy harness ...       drive scenarios against disposable containers
//
// Commands that act on a host resolve their configuration through the same
// layered loading the agent uses: built-in defaults, the optional file named
// by --config, and AIPSCAN_DEPLOY_* environment variables. Harness commands
// read a scenario file instead; the role configuration they place inside the
// environments is named by the scenario itself.
//
// Logs go to stderr so stdout stays machine-readable: `converge
// --report-json` prints exactly one JSON run report, which is what the
// harness parses out of the container.
package cli
