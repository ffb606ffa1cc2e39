// Package infra groups the adapters behind the core contracts: route
// providers, fleet sources, crew transports, metrics sinks, Sentry and the
// zerolog logger. Core packages never import infra.
package infra
