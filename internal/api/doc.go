// Package api hosts the HTTP server, middleware, and REST handlers for
// operator and delivery-collaborator access. Notable routes:
//   - GET /healthz / /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/batch/run to kick off a batch over all auto-send configs.
//   - POST /v1/runs to run the pipeline for one config.
//   - GET /v1/runs/{run_id} to read a run result.
//   - POST /v1/runs/{run_id}/confirm for delivery confirmation.
//   - GET /v1/configs/{config_id}/preview for a side-effect-free fetch.
package api
