package builtins

// The functions in this file back builtins the design notes explicitly
// sanction shipping as named "not implemented" contracts: certificate
// parsing and RSA/EC JWT verification (no x509-chain-verification or
// asymmetric-JWK library is present anywhere in the example pack beyond
// jwx's HMAC path), the net.* inspection builtins (no CIDR/DNS library is
// wired), and a few miscellaneous operations whose real implementation
// depends on the Rego compiler/AST (out of scope per spec.md's
// non-goals). graphql.parse_and_verify is a stub alongside them because
// verifying a GraphQL document needs a key source this host is never
// given. All of these are registered directly via stub(name) in
// catalogue.go; this file exists only to hold the rationale.
