// Package fetch retrieves the campaign page with the site's bot identity.
package fetch
