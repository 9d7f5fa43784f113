// internal/component/registry.go
//
// Component registry (cycle-free).
//
// Each concrete component lives under components/<name> and calls
// component.Register() in an init() function.  cmd/web blank-imports the
// components it wants, calls Init(deps) on each, then lets every component
// add its routes to the one root router.  Components never mount
// sub-routers at "/", so two of them can share the root.

package component

import (
	"fmt"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/yanizio/soundhouse/internal/config"
	"github.com/yanizio/soundhouse/internal/contact"
	"github.com/yanizio/soundhouse/internal/content"
	"github.com/yanizio/soundhouse/internal/middleware"
	"github.com/yanizio/soundhouse/internal/theme"
)

// Deps are the shared resources handed to every component at boot.
type Deps struct {
	Config     *config.Config
	Log        *zap.SugaredLogger
	Content    *content.Store
	Theme      *theme.Theme
	Dispatcher *contact.Dispatcher
	Limiter    middleware.Limiter
}

// Component contract.
//
// Routes registers page and API endpoints directly on r, e.g.
//
//	r.Get("/about", c.about)
//	r.Route("/api/contact", func(api chi.Router) { … })
type Component interface {
	Name() string
	Init(Deps) error
	Routes(r chi.Router)
}

var (
	mu       sync.RWMutex
	registry = map[string]Component{}
)

// Register is invoked from component init() functions.  Registering the
// same name twice panics.
func Register(c Component) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := registry[c.Name()]; dup {
		panic(fmt.Sprintf("component %q registered twice", c.Name()))
	}
	registry[c.Name()] = c
}

// All returns every registered component ordered by name.
func All() []Component {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Component, 0, len(registry))
	for _, c := range registry {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Mount initialises every registered component and adds its routes to r.
func Mount(r chi.Router, deps Deps) error {
	for _, c := range All() {
		if err := c.Init(deps); err != nil {
			return fmt.Errorf("init component %s: %w", c.Name(), err)
		}
		c.Routes(r)
		if deps.Log != nil {
			deps.Log.Infow("component mounted", "component", c.Name())
		}
	}
	return nil
}
