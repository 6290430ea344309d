package routes

import (
	"github.com/go-chi/chi/v5"

	"feed_spider/internal/httpserver/deps"
)

// Registrar mounts one group of endpoints.
type Registrar func(r chi.Router, d deps.Deps)

var registrars []Registrar

// Register is called from the init of each route file.
func Register(reg Registrar) {
	registrars = append(registrars, reg)
}

func RegisterAll(r chi.Router, d deps.Deps) {
	for _, reg := range registrars {
		reg(r, d)
	}
}
