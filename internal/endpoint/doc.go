// Package endpoint declares API operations as data.
//
// A Definition pairs an HTTP method with a path template such as
// "/v1/projects/[id]/members". Resolving a call substitutes path
// parameters, validates the request with struct tags understood by
// go-playground/validator and encodes it either as a query string (GET and
// DELETE) or as a JSON body. Definitions satisfy apistore.Endpoint.
package endpoint
