package config

import "time"

// Registry represents the entire user configuration file. It stores named
// router profiles and application preferences.
type Registry struct {
	Version int                `yaml:"version"`
	Routers map[string]*Router `yaml:"routers,omitempty"` // keyed by profile name
	Default string             `yaml:"default,omitempty"`  // default profile name
}

// Router represents a saved router profile.
//
// Passwords are NEVER stored - they are always prompted from the user or
// supplied through flags/environment.
type Router struct {
	Host     string    `yaml:"host"`                // address or host:port
	Username string    `yaml:"username,omitempty"`  // login username
	LastSeen time.Time `yaml:"last_seen,omitempty"` // last successful connection
}

// DefaultUsername is the factory login username on most firmwares.
const DefaultUsername = "admin"

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version: 1,
		Routers: make(map[string]*Router),
	}
}

// GetRouter retrieves a router profile by name. Returns nil if the profile
// doesn't exist.
func (r *Registry) GetRouter(name string) *Router {
	return r.Routers[name]
}

// SetRouter adds or replaces a router profile.
func (r *Registry) SetRouter(name string, router *Router) {
	if r.Routers == nil {
		r.Routers = make(map[string]*Router)
	}
	if router.Username == "" {
		router.Username = DefaultUsername
	}
	r.Routers[name] = router
	if r.Default == "" {
		r.Default = name
	}
}

// RemoveRouter deletes a router profile. Removing the default profile
// clears the default.
func (r *Registry) RemoveRouter(name string) bool {
	if _, exists := r.Routers[name]; !exists {
		return false
	}
	delete(r.Routers, name)
	if r.Default == name {
		r.Default = ""
	}
	return true
}

// DefaultRouter returns the default profile, or nil when none is set.
func (r *Registry) DefaultRouter() *Router {
	if r.Default == "" {
		return nil
	}
	return r.Routers[r.Default]
}

// TouchRouter updates the last-seen timestamp for a profile after a
// successful connection.
func (r *Registry) TouchRouter(name string) {
	if router, exists := r.Routers[name]; exists {
		router.LastSeen = time.Now()
	}
}
