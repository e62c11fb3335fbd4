// Package plan turns a parsed class description into an ImportPlan: the
// ordered list of namespaces, types, vtables, base links and method
// bindings to materialize, with every name conflict already resolved.
//
// Planning pipeline:
//  1. Validate the description → input errors refuse the import
//  2. Build the inheritance graph → materialization order
//  3. For each class in order:
//     - Resolve the namespace path segment by segment
//     - Resolve the class type, then one type per vtable
//     - Point base links at the planned base types
//     - Locate each method's function and resolve its new name
//  4. Emit diagnostics (dropped bases, missing functions, renames)
//
// Planning only reads the program database. The plan can be exported as
// YAML for review before anything is written.
package plan
