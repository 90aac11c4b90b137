// Package reservoir implements level telemetry for a single reservoir sensor.
//
// # Architecture
//
// The sensor reports its level as a 4-20 mA loop current through a remote
// telemetry API. The service is structured into several key packages:
//   - api: authenticated, cached client for the remote telemetry API
//   - trend: filling / draining / stable classification
//   - aggregator: current snapshot and bucketed historical series
//   - scheduler: background polling and fan-out of snapshots
//   - rest: HTTP read API, metrics and websocket endpoint
//   - stream: websocket hub pushing live snapshots
//   - grpc: standard health service following the sensor signal
//   - config: YAML, environment and flag configuration
//   - models: shared data structures
//
// Key Features
//
//   - Caching:
//     Latest readings are reused for 30 seconds and ranges for 60 seconds,
//     which bounds the load on the remote API.
//
//   - Resilience:
//     An expired session is renewed once on HTTP 401. Any other failure is
//     reported as "no data" and never stops the poller.
//
//   - History:
//     Ranges are averaged into minute, hour or day buckets aligned to the
//     site's timezone; gaps stay gaps.
//
// Example Usage
//
//	curl 'localhost:8080/api/v1/history?start=01/03/2024&end=05/03/2024&bucket=hour'
//
// For more information about specific packages, see their respective
// documentation.
package reservoir
