// Package entities holds the domain types of the plugin subsystem: the
// closed capability set, audit records, resource budgets, manifests, hook
// registrations and health states. Types here carry no enforcement logic;
// enforcement lives in domain/policy and domain/resource.
package entities
