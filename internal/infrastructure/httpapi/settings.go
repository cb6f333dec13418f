package httpapi

import (
	"net/http"
)

type interceptorDTO struct {
	Name     string `json:"name"`
	Matching string `json:"matching"`
}

type settingsDTO struct {
	Running              bool             `json:"running"`
	ShowNotifications    bool             `json:"showNotifications"`
	RedactHeaders        []string         `json:"redactHeaders"`
	MaxTransactions      int              `json:"maxTransactions"`
	EnableFloatingButton bool             `json:"enableFloatingButton"`
	NotificationTitle    string           `json:"notificationTitle"`
	MaxBodyBytes         int              `json:"maxBodyBytes"`
	Interceptors         []interceptorDTO `json:"interceptors"`
	MonitorClients       int              `json:"monitorClients"`
}

// handleSettings reports the active configuration and interception variants,
// so a missing capture can be traced to a matcher.
func (d *Deps) handleSettings(w http.ResponseWriter, _ *http.Request) {
	cfg := d.Inspector.Config()
	out := settingsDTO{
		Running:              d.Inspector.Running(),
		ShowNotifications:    cfg.ShowNotifications,
		RedactHeaders:        d.Inspector.RedactedHeaders(),
		MaxTransactions:      cfg.MaxTransactions,
		EnableFloatingButton: cfg.EnableFloatingButton,
		NotificationTitle:    cfg.NotificationTitle,
		MaxBodyBytes:         cfg.MaxBodyBytes,
		Interceptors:         []interceptorDTO{},
	}
	for _, ic := range d.Inspector.Interceptors() {
		out.Interceptors = append(out.Interceptors, interceptorDTO{Name: ic.Name(), Matching: ic.Describe()})
	}
	if d.Monitor != nil {
		out.MonitorClients = d.Monitor.Clients()
	}
	writeJSON(w, http.StatusOK, out)
}
