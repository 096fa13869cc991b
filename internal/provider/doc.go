// Package provider implements the token refreshers of the third-party
// providers credentials are linked to, and the registry the rotation use case
// looks them up in.
package provider
