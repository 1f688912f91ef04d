// Package campaign defines the campaign snapshot record served by the site's
// funding endpoint and the default values used when the remote page does not
// yield a field.
package campaign
