package render

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/rayzilt/aipscan-deploy/internal/config"
	"github.com/rayzilt/aipscan-deploy/internal/models"
)

// Well-known artifact destinations and the units consuming them.
const (
	EnvFilePath        = "/etc/aipscan/aipscan.env"
	StorageSourcesPath = "/etc/aipscan/storage-sources.json"
	WebUnitPath        = "/etc/systemd/system/aipscan.service"
	WorkerUnitPath     = "/etc/systemd/system/aipscan-celery.service"
	NginxVhostPath     = "/etc/nginx/conf.d/aipscan.conf"

	WebService    = "aipscan"
	WorkerService = "aipscan-celery"
	NginxService  = "nginx"
)

// Renderer produces the configuration artifacts for one convergence run as a
// pure function of the role configuration. Byte-identical configuration
// yields byte-identical artifacts.
type Renderer struct {
	cfg *config.Configuration
}

func NewRenderer(cfg *config.Configuration) *Renderer {
	return &Renderer{cfg: cfg}
}

// Artifacts returns every artifact in a fixed order: environment file,
// storage-source registrations, service units, then the vhost when nginx is
// managed.
func (r *Renderer) Artifacts() ([]models.Artifact, error) {
	storage, err := r.StorageSources()
	if err != nil {
		return nil, err
	}
	artifacts := []models.Artifact{r.EnvFile(), storage, r.WebUnit(), r.WorkerUnit()}
	if r.cfg.Nginx.Enabled {
		artifacts = append(artifacts, r.NginxVhost())
	}
	return artifacts, nil
}

// EnvFile renders the application environment file. Both units read it at
// boot, so a content change restarts both.
func (r *Renderer) EnvFile() models.Artifact {
	var b strings.Builder
	fmt.Fprintf(&b, "CELERY_BROKER_URL=%s\n", r.cfg.App.BrokerURL)
	fmt.Fprintf(&b, "CELERY_RESULT_BACKEND=db+%s\n", r.cfg.App.DatabaseURL)
	fmt.Fprintf(&b, "SECRET_KEY=%s\n", r.cfg.App.SecretKey)
	fmt.Fprintf(&b, "SQLALCHEMY_DATABASE_URI=%s\n", r.cfg.App.DatabaseURL)

	return models.Artifact{
		Name:     "env-file",
		Path:     EnvFilePath,
		Content:  []byte(b.String()),
		Mode:     0o600,
		Owner:    r.cfg.App.User,
		Group:    r.cfg.App.Group,
		Class:    models.ArtifactClassRestart,
		Services: []string{WebService, WorkerService},
	}
}

// storageSourceEntry fixes the on-disk field order of one registration.
type storageSourceEntry struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Username string `json:"username"`
	APIKey   string `json:"api_key"`
}

// StorageSources renders the Storage Service registrations consumed by the
// database registration step. No unit reads the file at runtime, so a change
// never disrupts a service.
func (r *Renderer) StorageSources() (models.Artifact, error) {
	entries := make([]storageSourceEntry, 0, len(r.cfg.StorageSources))
	for _, src := range r.cfg.StorageSources {
		entries = append(entries, storageSourceEntry{
			Name:     src.Name,
			URL:      src.URL,
			Username: src.Username,
			APIKey:   src.APIKey,
		})
	}

	content, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return models.Artifact{}, fmt.Errorf("failed to render storage sources: %w", err)
	}

	return models.Artifact{
		Name:    "storage-sources",
		Path:    StorageSourcesPath,
		Content: append(content, '\n'),
		Mode:    0o600,
		Owner:   r.cfg.App.User,
		Group:   r.cfg.App.Group,
		Class:   models.ArtifactClassReload,
	}, nil
}

// WebUnit renders the gunicorn service unit.
func (r *Renderer) WebUnit() models.Artifact {
	content := fmt.Sprintf(`[Unit]
Description=AIPscan web application
After=network.target

[Service]
User=%s
Group=%s
EnvironmentFile=%s
WorkingDirectory=%s
ExecStart=%s --workers %d --bind %s:%d "AIPscan:create_app()"
Restart=on-failure
RestartSec=5

[Install]
WantedBy=multi-user.target
`,
		r.cfg.App.User,
		r.cfg.App.Group,
		EnvFilePath,
		r.cfg.App.InstallDir,
		path.Join(r.cfg.App.VenvDir, "bin", "gunicorn"),
		r.cfg.App.Workers,
		r.cfg.App.Host,
		r.cfg.App.Port,
	)

	return models.Artifact{
		Name:     "web-unit",
		Path:     WebUnitPath,
		Content:  []byte(content),
		Mode:     0o644,
		Owner:    "root",
		Group:    "root",
		Class:    models.ArtifactClassRestart,
		Services: []string{WebService},
	}
}

// WorkerUnit renders the Celery worker service unit.
func (r *Renderer) WorkerUnit() models.Artifact {
	content := fmt.Sprintf(`[Unit]
Description=AIPscan Celery worker
After=network.target aipscan.service

[Service]
User=%s
Group=%s
EnvironmentFile=%s
WorkingDirectory=%s
ExecStart=%s --app AIPscan.worker.celery worker --loglevel info
Restart=on-failure
RestartSec=5

[Install]
WantedBy=multi-user.target
`,
		r.cfg.App.User,
		r.cfg.App.Group,
		EnvFilePath,
		r.cfg.App.InstallDir,
		path.Join(r.cfg.App.VenvDir, "bin", "celery"),
	)

	return models.Artifact{
		Name:     "worker-unit",
		Path:     WorkerUnitPath,
		Content:  []byte(content),
		Mode:     0o644,
		Owner:    "root",
		Group:    "root",
		Class:    models.ArtifactClassRestart,
		Services: []string{WorkerService},
	}
}

// NginxVhost renders the reverse-proxy vhost. Nginx re-reads it on reload,
// so a change never needs a restart.
func (r *Renderer) NginxVhost() models.Artifact {
	content := fmt.Sprintf(`server {
    listen %d;
    server_name %s;

    location / {
        proxy_pass http://%s:%d;
        proxy_set_header Host $host;
        proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
        proxy_set_header X-Forwarded-Proto $scheme;
    }
}
`,
		r.cfg.Nginx.ListenPort,
		r.cfg.Nginx.ServerName,
		r.cfg.App.Host,
		r.cfg.App.Port,
	)

	return models.Artifact{
		Name:     "nginx-vhost",
		Path:     NginxVhostPath,
		Content:  []byte(content),
		Mode:     0o644,
		Owner:    "root",
		Group:    "root",
		Class:    models.ArtifactClassReload,
		Services: []string{NginxService},
	}
}
