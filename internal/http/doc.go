// Package http provides HTTP handlers and middleware for the proof-of-ship API.
//
// The router exposes the following endpoints:
//   - GET /healthz: liveness probe returning {"status":"ok"}.
//   - GET /commitment: the connected repository and its cutoff rule
//     (`commitmentDTO`). 404 with error_code NO_COMMITMENT before a repository
//     is connected.
//   - PUT /commitment: connects a repository. Body: {"repository","day_of_week",
//     "cutoff_time","timezone","tag_pattern"}. Switching repositories clears the
//     stored week records.
//   - PUT /commitment/cutoff: replaces the cutoff rule. Body: {"day_of_week",
//     "cutoff_time","timezone","tag_pattern"}.
//   - POST /evaluations: runs one evaluation pass and returns the evaluated
//     weeks. Release source failures map to 404 RELEASES_NOT_FOUND, 429
//     RELEASES_RATE_LIMITED or 502 RELEASES_UNAVAILABLE; nothing is written.
//   - GET /scorecard: the current and recent weeks joined with their records,
//     plus a summary of the completed weeks.
//   - PUT /weeks/{week_start}/evidence: attaches an evidence link and note to
//     the week starting at the RFC 3339 instant week_start. Body:
//     {"evidence_url","note"}; blank values clear the field.
//
// Mutating endpoints are wrapped by RequireToken when an API token hash is
// configured. Request/response DTOs live in dto.go so tests and documentation
// share the same ground truth.
package http
