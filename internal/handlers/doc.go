// Package handlers implements the HTTP API of the converter.
//
// The convert endpoint streams a multipart upload into the uploads area,
// hands it to the conversion orchestrator, and streams the converted file
// back as an attachment. The remaining endpoints expose conversion history,
// quota usage, the converter catalogue, and operational health.
//
// Handlers read the caller from the request context, where the identity
// middleware stores it. Requests that bypass the middleware are treated as
// guests keyed by their remote address.
package handlers
