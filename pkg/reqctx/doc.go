// Package reqctx carries request-scoped values (request metadata and the
// authenticated caller) through context.Context.
//
// HTTP middleware sets RequestMeta on every request and claims only on
// authenticated ones; services read them through the typed getters.
package reqctx
