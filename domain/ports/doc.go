// Package ports declares the interfaces the domain depends on. Adapters
// in infrastructure and host implement them; the domain never imports an
// implementation.
package ports
