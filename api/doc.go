// Package api is the request layer every epoch component goes through.
//
// A single Client owns the base URL, the per-request timeout, the shared
// bearer token and error classification. Controllers and the booking flow
// never talk to net/http directly.
//
// # Usage
//
//	tokens := api.NewTokenHolder("")
//	client, err := api.NewClient(
//		"https://epoch.example.com",
//		tokens,
//		logger,
//		api.WithTimeout(10*time.Second),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	body, err := client.Execute(ctx, api.Request{Path: "/api/eras"})
//
// # Error Handling
//
// Every failure is an *Error carrying a Kind:
//
//   - KindAborted: the caller cancelled the context or the timeout elapsed.
//     The two cases are deliberately indistinguishable.
//   - KindHTTP: a non-2xx response. StatusCode and the parsed (or raw) Body
//     are attached.
//   - KindTransport: no response was received.
//   - KindValidation: a client-side check failed before any request was made.
//   - KindShape: the server answered with JSON the client could not use.
//
// Use the helpers to branch:
//
//	if api.IsAborted(err) {
//		return // superseded, nothing to show
//	}
//	var apiErr *api.Error
//	if errors.As(err, &apiErr) && apiErr.IsUnauthorized() {
//		// prompt for login
//	}
package api
