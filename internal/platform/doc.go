// Package platform is the content-platform client boundary: item metadata,
// service layer enumeration, and usage series. The Client interface is what
// the validation pipeline consumes; RESTClient is the live implementation
// against the platform's sharing REST API.
package platform
