// Package e2b implements sandbox.Client on top of the E2B REST APIs.
//
// Three HTTP surfaces are used:
//
//   - the control plane (https://api.<domain>, X-API-Key) to create, connect,
//     list and kill sandboxes;
//   - envd inside each sandbox (port 49983, X-Access-Token) for file access;
//   - the code interpreter inside each sandbox (port 49999) which streams
//     execution events as newline-delimited JSON.
//
// Usage:
//
//	client, err := e2b.NewClient(logger, e2b.Config{APIKey: key})
//	h, err := client.Create(ctx, map[string]string{"ownerId": "u1"})
//	exec, err := client.RunCode(ctx, h, "print(1)", "python")
package e2b
