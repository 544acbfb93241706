// Package linear is a GraphQL client for the Linear issue tracker.
//
// It lists a team's issues in a workflow state, creates issues and moves
// them between states with an optional comment. Workflow-state and label
// names are resolved to IDs through the on-disk cache so repeated commands
// skip the lookup queries.
package linear
