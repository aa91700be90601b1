package adapter

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/clarusrisk/diligence-cli/internal/config"
	"github.com/clarusrisk/diligence-cli/internal/model"
)

// SourceWhois identifies the WHOIS adapter.
const SourceWhois = "whois"

const whoisReadLimit = 1 << 20

// Whois verifies domain registration over the WHOIS protocol (plain text on
// TCP 43). The parser understands the DENIC key:value dialect but degrades to
// a registered/free heuristic for other registries.
type Whois struct {
	cfg    config.WhoisConfig
	dialer *net.Dialer
}

// NewWhois creates the WHOIS adapter.
func NewWhois(cfg config.WhoisConfig) *Whois {
	return &Whois{cfg: cfg, dialer: &net.Dialer{Timeout: 10 * time.Second}}
}

func (w *Whois) Name() string { return SourceWhois }

func (w *Whois) Ready(q model.Query) error {
	if q.Website == "" {
		return ErrWebsiteRequired
	}
	return nil
}

// DomainFromWebsite strips scheme, path and port from a website value,
// leaving the bare registrable name.
func DomainFromWebsite(website string) string {
	s := strings.TrimSpace(strings.ToLower(website))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "www.")
	if i := strings.IndexAny(s, "/:?"); i >= 0 {
		s = s[:i]
	}
	return strings.Trim(s, ".")
}

func (w *Whois) Fetch(ctx context.Context, q model.Query) (model.CheckResult, error) {
	if !w.cfg.Enabled {
		return Disabled(SourceWhois), nil
	}

	domain := DomainFromWebsite(q.Website)
	if domain == "" {
		return Unknown(SourceWhois, "domain not provided"), nil
	}

	raw, err := w.query(ctx, domain)
	if err != nil {
		return Failure(SourceWhois, "whois query failed", err), nil
	}

	fields := parseWhoisFields(raw)
	data := map[string]any{"domain": domain}
	for _, k := range []string{"status", "changed", "registrar", "created"} {
		if v, ok := fields[k]; ok {
			data[k] = v
		}
	}

	if whoisRegistered(raw, fields) {
		return Result(SourceWhois, model.StatusOK, data, "domain registered"), nil
	}
	return Result(SourceWhois, model.StatusWarning, data, "domain not verified"), nil
}

func (w *Whois) query(ctx context.Context, domain string) (string, error) {
	conn, err := w.dialer.DialContext(ctx, "tcp", w.cfg.Server)
	if err != nil {
		return "", eris.Wrapf(err, "adapter: dial %s", w.cfg.Server)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(15 * time.Second))
	}

	request := domain + "\r\n"
	if strings.Contains(w.cfg.Server, "denic") {
		// DENIC requires the query type flag for dotted names.
		request = "-T dn " + domain + "\r\n"
	}
	if _, err := io.WriteString(conn, request); err != nil {
		return "", eris.Wrap(err, "adapter: whois write")
	}

	raw, err := io.ReadAll(io.LimitReader(conn, whoisReadLimit))
	if err != nil {
		return "", eris.Wrap(err, "adapter: whois read")
	}
	return string(raw), nil
}

func parseWhoisFields(raw string) map[string]string {
	fields := make(map[string]string)
	sc := bufio.NewScanner(strings.NewReader(raw))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "%") || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if _, seen := fields[key]; !seen && value != "" {
			fields[key] = value
		}
	}
	return fields
}

// whoisRegistered decides registration from the DENIC status field when
// present, else from whether the registry echoed a domain record at all.
func whoisRegistered(raw string, fields map[string]string) bool {
	if status, ok := fields["status"]; ok {
		status = strings.ToLower(status)
		return status != "free" && status != "invalid"
	}
	lower := strings.ToLower(raw)
	if strings.Contains(lower, "no match") || strings.Contains(lower, "not found") {
		return false
	}
	return strings.Contains(lower, "domain name:") || strings.Contains(lower, "domain:")
}
