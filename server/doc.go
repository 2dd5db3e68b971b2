// Package server hosts the status service over HTTP on a chi router, with
// request logging, request metrics and an optional Prometheus /metrics route.
package server
