package internal

import "expvar"

var (
	requestsTotal = expvar.NewMap("sechooks_requests_total")
	authFailures  = expvar.NewInt("sechooks_auth_failures_total")
	parseErrors   = expvar.NewInt("sechooks_parse_errors_total")
	findingsTotal = expvar.NewMap("sechooks_findings_total")
	emitErrors    = expvar.NewMap("sechooks_emit_errors_total")
)

func IncRequest(provider string) {
	requestsTotal.Add(provider, 1)
}

func IncAuthFailure() {
	authFailures.Add(1)
}

func IncParseError() {
	parseErrors.Add(1)
}

func IncFinding(category Category) {
	findingsTotal.Add(string(category), 1)
}

func IncEmitError(target string) {
	emitErrors.Add(target, 1)
}
