// Package rhokp is a resilient retrieval client for the Red Hat Offline
// Knowledge Portal (OKP), a Solr-backed documentation search service.
//
// A Client turns a free-text question into ranked portal documents and a
// token-bounded, citation-ready context block for a language model. Every
// call goes through query sanitizing, a response cache, a circuit breaker
// and a retry policy before it reaches the backend.
//
// # Basic usage
//
//	client, err := rhokp.New(rhokp.WithBaseURL("https://okp.example.com:8443"))
//	if err != nil { ... }
//	defer client.Close()
//
//	res, err := client.Retrieve(ctx, "install OpenShift",
//	    rhokp.Product("OpenShift Container Platform"),
//	    rhokp.WithRows(5),
//	)
//	fmt.Println(res.Context)
//
// # Errors
//
// Every failure is an *Error tagged with a Kind. Branch with KindOf or IsKind:
//
//	switch rhokp.KindOf(err) {
//	case rhokp.KindValidation: // bad input, nothing was sent
//	case rhokp.KindConnection: // unreachable, unavailable or breaker open
//	case rhokp.KindTimeout:    // connect, read, pool or caller deadline
//	case rhokp.KindResponse:   // unusable payload, see (*Error).Payload
//	}
//
// # Backends
//
// By default the client talks to the portal's Solr handler over HTTP.
// WithLocalIndex serves a JSONL export from an embedded index instead, and
// NewMockBackend returns a scripted backend for dependents' tests.
package rhokp
