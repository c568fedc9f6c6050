// Package mgmtapi is a client for a session-based JSON-over-HTTPS management API.
//
// A Client is built from functional options, logs in to obtain a Session, and then
// issues commands with Call and Query. Commands that start asynchronous tasks can be
// awaited transparently. Server certificates are pinned by SHA-1 fingerprint using
// the trust package; the API port is resolved through the port package.
//
//	c, err := mgmtapi.NewClient(mgmtapi.WithFingerprintFile("fingerprints.json"))
//	s, err := c.Login(ctx, "mgmt.example.com", mgmtapi.Credentials{User: "admin", Password: pw})
//	resp, err := c.Query(ctx, s, "show-hosts", mgmtapi.QueryOptions{})
//	_, err = c.Logout(ctx, s)
//
// Transport failures never surface as Go errors from Call; they are reported as a
// Response with Success false and a classification Code.
package mgmtapi
