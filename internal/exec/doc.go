// Package exec dispatches bound tasks as external commands.
//
// The executor treats the external command as an opaque collaborator: it
// passes the rendered command line, the rule's environment overrides,
// and the rule's working directory, and receives back an exit status and
// captured output. All domain semantics beyond "produce the declared
// output given these inputs" belong to the command.
package exec
