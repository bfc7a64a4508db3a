// Package render turns a resolved configuration into the set of files a
// convergence run places on the host.
//
// # Artifacts
//
//	┌─────────────────┬────────────────────────────────────────────┬──────┬─────────┬───────────────────────┐
//	│ Name            │ Path                                       │ Mode │ Class   │ Services              │
//	├─────────────────┼────────────────────────────────────────────┼──────┼─────────┼───────────────────────┤
//	│ env-file        │ /etc/aipscan/aipscan.env                   │ 0600 │ restart │ aipscan, aipscan-celery │
//	│ storage-sources │ /etc/aipscan/storage-sources.json          │ 0600 │ reload  │ (none)                │
//	│ web-unit        │ /etc/systemd/system/aipscan.service        │ 0644 │ restart │ aipscan               │
//	│ worker-unit     │ /etc/systemd/system/aipscan-celery.service │ 0644 │ restart │ aipscan-celery        │
//	│ nginx-vhost     │ /etc/nginx/conf.d/aipscan.conf             │ 0644 │ reload  │ nginx                 │
//	└─────────────────┴────────────────────────────────────────────┴──────┴─────────┴───────────────────────┘
//
// The vhost is only rendered when nginx management is enabled.
//
// # Determinism
//
// Rendering is a pure function of the configuration: byte-identical input
// yields byte-identical output. The file placement step compares a SHA-256
// of the rendered content against the bytes on the host, so a re-render of
// unchanged configuration reports no change and triggers no service action.
//
// # Disruption classes
//
// Every artifact declares how disruptive applying a change is. Restart-class
// artifacts are read once at unit start (environment file, unit definitions)
// and need the owning services restarted. Reload-class artifacts are
// re-read on demand; the vhost needs an nginx reload, and the
// storage-source registrations are consumed by the database registration
// step without touching any unit.
package render
