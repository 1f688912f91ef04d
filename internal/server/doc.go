// Package server exposes the campaign snapshot endpoint used by the site's
// funding banner, health checks and the www host redirect.
package server
