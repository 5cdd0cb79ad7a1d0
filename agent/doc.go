// Package agent contains the runnable agent variants and the builder that
// maps profiles onto them. The package focuses on three concerns:
//
//  1. The closed variant set: ConversationalAgent, RetrievalAgent and
//     ManagerAgent, all satisfying the Agent interface
//  2. Profile-to-variant construction (Builder, ModelFactory)
//  3. The manager's plan-parse-dispatch-aggregate delegation protocol
//     (manager.go, plan.go)
//
// Design principles:
//   - Closed variant set - behavior is selected by the profile's agent kind,
//     validated exhaustively at build time
//   - No hidden recursion - a manager delegates through an injected
//     DispatchFunc instead of calling back into the session layer directly
//   - Partial-failure isolation - one failing delegated task never aborts
//     its siblings or the manager's own reply
//
// Execution Model:
//   - Respond receives the user input plus the session history and returns
//     reply text; history persistence stays with the caller
//   - A manager's Respond performs one planning generation, then dispatches
//     each planned task sequentially in plan order
//
// The package intentionally keeps session persistence, model specifics and
// profile storage in their respective packages to avoid cyclic deps.
package agent
