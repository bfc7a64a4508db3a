// Package system wraps the OS primitives a convergence run drives: package
// manager, service manager, uv tooling, database migrations, user accounts
// and file placement.
//
// # Collaborators
//
//	┌──────────────────┬─────────────────────┬─────────────────────────────────────────┐
//	│ Interface        │ Implementation      │ Backed by                               │
//	├──────────────────┼─────────────────────┼─────────────────────────────────────────┤
//	│ CommandRunner    │ ExecRunner          │ os/exec                                 │
//	│ PackageManager   │ AptPackageManager   │ dpkg-query, apt-get                     │
//	│ ServiceManager   │ SystemdManager      │ systemctl                               │
//	│ UvManager        │ ExecUvManager       │ uv CLI + GitHub release tarballs        │
//	│ MigrationRunner  │ FlaskMigrationRunner│ flask db current / upgrade              │
//	│ StorageRegistrar │ FlaskStorageRegistrar│ application ORM via the venv Python    │
//	│ UserManager      │ ExecUserManager     │ getent, groupadd, useradd               │
//	│ FileManager      │ OSFileManager       │ atomic write + chmod/chown              │
//	└──────────────────┴─────────────────────┴─────────────────────────────────────────┘
//
// # Contract
//
// Every Ensure* operation is an idempotent state assertion: it checks the
// current state first, acts only on divergence, and reports whether a change
// was made. Calling any of them twice in a row with an unchanged target
// state returns false the second time.
//
// CommandRunner returns an error only when a command could not be run at
// all; a non-zero exit is reported through Output.ExitCode so state checks
// can branch on it without unwrapping errors.
//
// Command environments may carry secrets (application environment files are
// passed to migration commands), so command logging covers the program name
// and arguments only, never the environment.
package system
