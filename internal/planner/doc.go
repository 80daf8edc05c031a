// Package planner handles the planning phase of a render.
//
// The planner turns a validated spec and a dependency-ordered pack set into a
// deterministic RenderPlan. It evaluates `when` conditions, expands loops,
// interpolates and resolves destination paths, and detects destination
// collisions. It never reads or writes the filesystem.
//
// Key responsibilities:
//   - Generate a RenderPlan with tasks in pack, manifest and loop order
//   - Skip descriptors whose condition is false
//   - Confine every destination to the target root
//   - Reject two tasks that resolve to the same destination
//   - Expand hook declarations into shell-quoted command lines
package planner
