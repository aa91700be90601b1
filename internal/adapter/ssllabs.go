package adapter

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/clarusrisk/diligence-cli/internal/config"
	"github.com/clarusrisk/diligence-cli/internal/fetcher"
	"github.com/clarusrisk/diligence-cli/internal/model"
)

// SourceSSLLabs identifies the TLS-grade adapter.
const SourceSSLLabs = "ssl_labs"

// SSLLabs grades the company website's TLS deployment via the SSL Labs
// analyze API. Cached assessments are accepted to keep the call cheap; a
// still-running assessment yields unknown rather than blocking the check run.
type SSLLabs struct {
	cfg     config.EndpointConfig
	fetcher fetcher.Fetcher
}

// NewSSLLabs creates the TLS-grade adapter.
func NewSSLLabs(cfg config.EndpointConfig, f fetcher.Fetcher) *SSLLabs {
	return &SSLLabs{cfg: cfg, fetcher: f}
}

func (s *SSLLabs) Name() string { return SourceSSLLabs }

func (s *SSLLabs) Ready(q model.Query) error {
	if q.Website == "" {
		return ErrWebsiteRequired
	}
	return nil
}

type ssllabsReport struct {
	Host      string `json:"host"`
	Status    string `json:"status"`
	Endpoints []struct {
		Grade string `json:"grade"`
	} `json:"endpoints"`
}

func (s *SSLLabs) Fetch(ctx context.Context, q model.Query) (model.CheckResult, error) {
	if !s.cfg.Enabled {
		return Disabled(SourceSSLLabs), nil
	}

	host := DomainFromWebsite(q.Website)
	if host == "" {
		return Unknown(SourceSSLLabs, "domain not provided"), nil
	}

	analyzeURL := s.cfg.Endpoint + "/analyze?" + url.Values{
		"host":      {host},
		"fromCache": {"on"},
		"maxAge":    {"24"},
		"all":       {"done"},
	}.Encode()

	raw, err := s.fetcher.Get(ctx, analyzeURL)
	if err != nil {
		return Failure(SourceSSLLabs, "SSL Labs request failed", err), nil
	}

	var report ssllabsReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return Failure(SourceSSLLabs, "SSL Labs response parse failed", err), nil
	}

	switch report.Status {
	case "READY":
	case "ERROR":
		return Result(SourceSSLLabs, model.StatusError,
			map[string]any{"hostname": host}, "SSL Labs assessment error"), nil
	default:
		// DNS / IN_PROGRESS: assessment still running.
		return Unknown(SourceSSLLabs, "assessment in progress"), nil
	}

	grade := worstGrade(report)
	if grade == "" {
		return Unknown(SourceSSLLabs, "no TLS grade reported"), nil
	}
	data := map[string]any{"hostname": host, "grade": grade}
	if gradeAcceptable(grade) {
		return Result(SourceSSLLabs, model.StatusOK, data, "TLS grade "+grade), nil
	}
	return Result(SourceSSLLabs, model.StatusWarning, data, "weak TLS grade "+grade), nil
}

// worstGrade reports the weakest endpoint grade, since one badly configured
// endpoint is what an attacker would target. Empty when no endpoint carried
// a grade.
func worstGrade(report ssllabsReport) string {
	worst := ""
	for _, ep := range report.Endpoints {
		if ep.Grade == "" {
			continue
		}
		if worst == "" || gradeRank(ep.Grade) > gradeRank(worst) {
			worst = ep.Grade
		}
	}
	return worst
}

func gradeRank(grade string) int {
	letter := grade[:1]
	ranks := map[string]int{"A": 0, "B": 1, "C": 2, "D": 3, "E": 4, "F": 5, "T": 6, "M": 7}
	if r, ok := ranks[letter]; ok {
		return r
	}
	return 8
}

func gradeAcceptable(grade string) bool {
	return strings.HasPrefix(grade, "A") || strings.HasPrefix(grade, "B")
}
