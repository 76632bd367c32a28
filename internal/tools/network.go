package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/valkyrieosint/valkyrie-backend/internal/models"
)

// WHOISTool performs WHOIS lookups for domains and IPs over raw port 43,
// following the IANA referral to the authoritative server.
type WHOISTool struct{}

func (t *WHOISTool) Name() string      { return "WHOIS" }
func (t *WHOISTool) Category() string  { return "network" }
func (t *WHOISTool) PremiumOnly() bool { return false }

func whoisQuery(ctx context.Context, server, query string) (string, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(server, "43"))
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	if _, err := fmt.Fprintf(conn, "%s\r\n", query); err != nil {
		return "", err
	}
	body, err := io.ReadAll(conn)
	return string(body), err
}

// whoisFields are the record keys we surface, keyed by their lowercased
// label in the WHOIS response.
var whoisFields = map[string]string{
	"registrar":            "registrar",
	"creation date":        "creation_date",
	"created":              "creation_date",
	"registry expiry date": "expiration_date",
	"expiry date":          "expiration_date",
	"updated date":         "updated_date",
	"name server":          "name_servers",
	"nserver":              "name_servers",
	"registrant organization": "org",
	"org":                     "org",
	"orgname":                 "org",
	"registrant country":      "country",
	"country":                 "country",
	"registrant email":        "emails",
	"dnssec":                  "dnssec",
	"netname":                 "netname",
}

func parseWhois(body string) models.RawData {
	data := models.RawData{}
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "%") || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		val = strings.TrimSpace(val)
		field, ok := whoisFields[strings.ToLower(strings.TrimSpace(key))]
		if !ok || val == "" {
			continue
		}
		// Repeating fields (name servers, emails) accumulate into lists
		if field == "name_servers" || field == "emails" {
			list, _ := data[field].([]string)
			data[field] = append(list, val)
			continue
		}
		if _, exists := data[field]; !exists {
			data[field] = val
		}
	}
	return data
}

func (t *WHOISTool) Run(ctx context.Context, value string) (*Result, error) {
	// IANA tells us which registry is authoritative for the TLD or IP block
	referral, err := whoisQuery(ctx, "whois.iana.org", value)
	if err != nil {
		return nil, fmt.Errorf("whois lookup failed for %s: %w", value, err)
	}

	server := ""
	for _, line := range strings.Split(referral, "\n") {
		if rest, found := strings.CutPrefix(strings.TrimSpace(line), "refer:"); found {
			server = strings.TrimSpace(rest)
			break
		}
	}

	body := referral
	if server != "" {
		if authoritative, err := whoisQuery(ctx, server, value); err == nil && authoritative != "" {
			body = authoritative
		}
	}

	data := parseWhois(body)
	if len(data) == 0 {
		return nil, fmt.Errorf("whois returned no parseable records for %s", value)
	}
	data["query"] = value

	org := "Unknown"
	if s, ok := data["org"].(string); ok {
		org = s
	} else if s, ok := data["netname"].(string); ok {
		org = s
	}
	registrar := "Unknown"
	if s, ok := data["registrar"].(string); ok {
		registrar = s
	}
	creation := "Unknown"
	if s, ok := data["creation_date"].(string); ok {
		creation = s
	}

	return &Result{
		ToolName: t.Name(),
		Category: t.Category(),
		RawData:  data,
		Summary:  fmt.Sprintf("Domain registered by %s via %s, created %s", org, registrar, creation),
		Severity: models.SeverityInfo,
		Tags:     models.Tags{"domain", "whois", "network"},
	}, nil
}

// DNSDumpsterTool enumerates DNS records for a domain using the system
// resolver.
type DNSDumpsterTool struct {
	Resolver *net.Resolver // nil = default resolver
}

func (t *DNSDumpsterTool) Name() string      { return "DNSDumpster" }
func (t *DNSDumpsterTool) Category() string  { return "network" }
func (t *DNSDumpsterTool) PremiumOnly() bool { return false }

func (t *DNSDumpsterTool) resolver() *net.Resolver {
	if t.Resolver != nil {
		return t.Resolver
	}
	return net.DefaultResolver
}

func (t *DNSDumpsterTool) Run(ctx context.Context, value string) (*Result, error) {
	r := t.resolver()
	records := map[string][]string{}

	if ips, err := r.LookupIPAddr(ctx, value); err == nil {
		for _, ip := range ips {
			if ip.IP.To4() != nil {
				records["A"] = append(records["A"], ip.IP.String())
			} else {
				records["AAAA"] = append(records["AAAA"], ip.IP.String())
			}
		}
	} else if dnsErr, ok := err.(*net.DNSError); ok && dnsErr.IsNotFound {
		return &Result{
			ToolName: t.Name(),
			Category: t.Category(),
			RawData:  models.RawData{"error": fmt.Sprintf("Domain %s does not exist (NXDOMAIN)", value)},
			Summary:  fmt.Sprintf("DNS: Domain %s does not exist", value),
			Severity: models.SeverityInfo,
			Tags:     models.Tags{"network", "dns", "nxdomain"},
		}, nil
	}

	if mxs, err := r.LookupMX(ctx, value); err == nil {
		for _, mx := range mxs {
			records["MX"] = append(records["MX"], fmt.Sprintf("%d %s", mx.Pref, mx.Host))
		}
	}
	if nss, err := r.LookupNS(ctx, value); err == nil {
		for _, ns := range nss {
			records["NS"] = append(records["NS"], ns.Host)
		}
	}
	if txts, err := r.LookupTXT(ctx, value); err == nil && len(txts) > 0 {
		records["TXT"] = append(records["TXT"], txts...)
	}
	if cname, err := r.LookupCNAME(ctx, value); err == nil && cname != "" && cname != value+"." {
		records["CNAME"] = append(records["CNAME"], cname)
	}

	if len(records) == 0 {
		return &Result{
			ToolName: t.Name(),
			Category: t.Category(),
			RawData:  models.RawData{"domain": value, "records": map[string][]string{}},
			Summary:  fmt.Sprintf("DNS enumeration returned no records for %s", value),
			Severity: models.SeverityInfo,
			Tags:     models.Tags{"network", "dns"},
		}, nil
	}

	types := make([]string, 0, len(records))
	total := 0
	var summaryParts []string
	for _, rtype := range []string{"A", "AAAA", "MX", "NS", "TXT", "CNAME"} {
		values, ok := records[rtype]
		if !ok {
			continue
		}
		types = append(types, rtype)
		total += len(values)
		shown := values
		if len(shown) > 3 {
			shown = shown[:3]
		}
		summaryParts = append(summaryParts, fmt.Sprintf("%s: %s", rtype, strings.Join(shown, ", ")))
	}
	if len(summaryParts) > 5 {
		summaryParts = summaryParts[:5]
	}

	return &Result{
		ToolName: t.Name(),
		Category: t.Category(),
		RawData: models.RawData{
			"domain":             value,
			"records":            records,
			"record_types_found": types,
			"total_records":      total,
		},
		Summary:  fmt.Sprintf("DNS for %s: %s", value, strings.Join(summaryParts, " | ")),
		Severity: models.SeverityInfo,
		Tags:     models.Tags{"network", "dns", "enumeration"},
	}, nil
}

// VirusTotalTool queries VirusTotal API v3 for domain or file-hash reputation.
type VirusTotalTool struct {
	APIKey  string
	Client  *http.Client
	BaseURL string // override for tests; empty = production API
}

func (t *VirusTotalTool) Name() string      { return "VirusTotal" }
func (t *VirusTotalTool) Category() string  { return "network" }
func (t *VirusTotalTool) PremiumOnly() bool { return false }

func (t *VirusTotalTool) Run(ctx context.Context, value string) (*Result, error) {
	if t.APIKey == "" {
		return &Result{
			ToolName: t.Name(),
			Category: t.Category(),
			RawData:  models.RawData{"skipped": true, "reason": "virustotal_api_key not configured"},
			Summary:  "VirusTotal key not configured, skipping",
			Severity: models.SeverityInfo,
			Tags:     models.Tags{"network", "virustotal", "skipped"},
		}, nil
	}

	base := t.BaseURL
	if base == "" {
		base = "https://www.virustotal.com"
	}

	// Dotted values are domains; everything else is treated as a file hash
	resourceType := "file"
	endpoint := base + "/api/v3/files/" + value
	if strings.Contains(value, ".") && !strings.Contains(value, "/") {
		resourceType = "domain"
		endpoint = base + "/api/v3/domains/" + value
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-apikey", t.APIKey)

	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("virustotal lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &Result{
			ToolName: t.Name(),
			Category: t.Category(),
			RawData:  models.RawData{"resource": value, "found": false},
			Summary:  fmt.Sprintf("VirusTotal: no data found for %s", value),
			Severity: models.SeverityInfo,
			Tags:     models.Tags{"network", "virustotal"},
		}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("virustotal returned status %d", resp.StatusCode)
	}

	var body struct {
		Data struct {
			Attributes struct {
				LastAnalysisStats map[string]int `json:"last_analysis_stats"`
				Reputation        int            `json:"reputation"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("virustotal returned invalid JSON: %w", err)
	}

	stats := body.Data.Attributes.LastAnalysisStats
	malicious := stats["malicious"]
	suspicious := stats["suspicious"]
	total := malicious + suspicious + stats["harmless"] + stats["undetected"]

	severity := models.SeverityInfo
	switch {
	case malicious > 5:
		severity = models.SeverityCritical
	case malicious > 0:
		severity = models.SeverityHigh
	case suspicious > 0:
		severity = models.SeverityMedium
	}

	return &Result{
		ToolName: t.Name(),
		Category: t.Category(),
		RawData: models.RawData{
			"resource":            value,
			"resource_type":       resourceType,
			"malicious":           malicious,
			"suspicious":          suspicious,
			"harmless":            stats["harmless"],
			"undetected":          stats["undetected"],
			"total_scanners":      total,
			"reputation":          body.Data.Attributes.Reputation,
			"last_analysis_stats": stats,
		},
		Summary:  fmt.Sprintf("%d engines flagged malicious, %d suspicious out of %d scanners", malicious, suspicious, total),
		Severity: severity,
		Tags:     models.Tags{"network", "reputation", "virustotal"},
	}, nil
}

// IPGeoTool enriches IPs with geolocation, ASN, and ISP data from ip-api.com.
type IPGeoTool struct {
	Client  *http.Client
	BaseURL string // override for tests; empty = production API
}

func (t *IPGeoTool) Name() string      { return "IP-Geo" }
func (t *IPGeoTool) Category() string  { return "network" }
func (t *IPGeoTool) PremiumOnly() bool { return true }

const ipGeoFields = "status,message,country,countryCode,region,regionName," +
	"city,zip,lat,lon,timezone,isp,org,as,asname,reverse,mobile,proxy,hosting,query"

func (t *IPGeoTool) Run(ctx context.Context, value string) (*Result, error) {
	base := t.BaseURL
	if base == "" {
		base = "http://ip-api.com"
	}
	u := fmt.Sprintf("%s/json/%s?fields=%s", base, value, url.QueryEscape(ipGeoFields))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("IP geolocation failed for %s: %w", value, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ip-api returned status %d", resp.StatusCode)
	}

	var data map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("ip-api returned invalid JSON: %w", err)
	}

	if stringField(data, "status", "") == "fail" {
		msg := stringField(data, "message", "lookup failed")
		return &Result{
			ToolName: t.Name(),
			Category: t.Category(),
			RawData:  models.RawData{"error": msg, "query": value},
			Summary:  fmt.Sprintf("IP-API: %s for %s", msg, value),
			Severity: models.SeverityInfo,
			Tags:     models.Tags{"network", "geo", "no-data"},
		}, nil
	}

	country := stringField(data, "country", "Unknown")
	city := stringField(data, "city", "Unknown")
	region := stringField(data, "regionName", "")
	isp := stringField(data, "isp", "Unknown")
	asn := stringField(data, "as", "Unknown")
	proxy, _ := data["proxy"].(bool)
	hosting, _ := data["hosting"].(bool)
	mobile, _ := data["mobile"].(bool)

	var flags []string
	if proxy {
		flags = append(flags, "proxy/vpn")
	}
	if hosting {
		flags = append(flags, "datacenter/hosting")
	}
	if mobile {
		flags = append(flags, "mobile")
	}

	severity := models.SeverityInfo
	if proxy || hosting {
		severity = models.SeverityHigh
	}

	location := fmt.Sprintf("%s, %s", city, country)
	if region != "" {
		location = fmt.Sprintf("%s, %s, %s", city, region, country)
	}
	summary := fmt.Sprintf("%s -> %s | ISP: %s | %s", value, location, isp, asn)
	if len(flags) > 0 {
		summary += " | Flags: " + strings.Join(flags, ", ")
	}

	tags := append(models.Tags{"network", "geo", "asn", "isp", "ip-api"}, flags...)

	return &Result{
		ToolName: t.Name(),
		Category: t.Category(),
		RawData: models.RawData{
			"query":        value,
			"country":      country,
			"country_code": data["countryCode"],
			"region":       region,
			"city":         city,
			"zip":          data["zip"],
			"lat":          data["lat"],
			"lon":          data["lon"],
			"timezone":     data["timezone"],
			"isp":          isp,
			"org":          data["org"],
			"asn":          asn,
			"asname":       data["asname"],
			"reverse_dns":  data["reverse"],
			"mobile":       mobile,
			"proxy":        proxy,
			"hosting":      hosting,
		},
		Summary:  summary,
		Severity: severity,
		Tags:     tags,
	}, nil
}

// DomainRepTool combines a HackerTarget DNSBL check with URLScan.io scan
// history. Either source failing degrades the result instead of failing the
// adapter.
type DomainRepTool struct {
	Client           *http.Client
	HackerTargetURL  string // override for tests
	URLScanURL       string // override for tests
}

func (t *DomainRepTool) Name() string      { return "DomainRep" }
func (t *DomainRepTool) Category() string  { return "network" }
func (t *DomainRepTool) PremiumOnly() bool { return true }

func (t *DomainRepTool) Run(ctx context.Context, value string) (*Result, error) {
	results := models.RawData{}
	tags := models.Tags{"domain", "reputation"}
	severity := models.SeverityInfo

	var dnsblListed []string
	htBase := t.HackerTargetURL
	if htBase == "" {
		htBase = "https://api.hackertarget.com"
	}
	if req, err := http.NewRequestWithContext(ctx, http.MethodGet, htBase+"/dnsbl/?q="+url.QueryEscape(value), nil); err == nil {
		if resp, err := t.Client.Do(req); err == nil {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				text := strings.TrimSpace(string(body))
				for _, line := range strings.Split(text, "\n") {
					if strings.Contains(strings.ToLower(line), "listed") {
						dnsblListed = append(dnsblListed, strings.SplitN(line, " ", 2)[0])
					}
				}
				raw := text
				if len(raw) > 1000 {
					raw = raw[:1000]
				}
				results["dnsbl"] = map[string]any{
					"raw":        raw,
					"listed_on":  dnsblListed,
					"list_count": len(dnsblListed),
				}
				if len(dnsblListed) > 0 {
					severity = models.SeverityHigh
					tags = append(tags, "blacklisted")
				}
			} else {
				results["dnsbl"] = map[string]any{"error": fmt.Sprintf("HTTP %d", resp.StatusCode)}
			}
		} else {
			results["dnsbl"] = map[string]any{"error": err.Error()}
		}
	}

	usBase := t.URLScanURL
	if usBase == "" {
		usBase = "https://urlscan.io"
	}
	usTotal := any("N/A")
	maliciousCount := 0
	usURL := fmt.Sprintf("%s/api/v1/search/?q=%s&size=10", usBase, url.QueryEscape("domain:"+value))
	if req, err := http.NewRequestWithContext(ctx, http.MethodGet, usURL, nil); err == nil {
		req.Header.Set("Accept", "application/json")
		if resp, err := t.Client.Do(req); err == nil {
			func() {
				defer resp.Body.Close()
				if resp.StatusCode != http.StatusOK {
					results["urlscan"] = map[string]any{"error": fmt.Sprintf("HTTP %d", resp.StatusCode)}
					return
				}
				var usData struct {
					Total   int `json:"total"`
					Results []struct {
						Page struct {
							URL     string `json:"url"`
							Country string `json:"country"`
						} `json:"page"`
						Verdicts struct {
							Overall struct {
								Malicious bool    `json:"malicious"`
								Score     float64 `json:"score"`
							} `json:"overall"`
						} `json:"verdicts"`
						Task struct {
							Time string `json:"time"`
						} `json:"task"`
					} `json:"results"`
				}
				if err := json.NewDecoder(resp.Body).Decode(&usData); err != nil {
					results["urlscan"] = map[string]any{"error": err.Error()}
					return
				}
				scans := make([]map[string]any, 0, len(usData.Results))
				for _, s := range usData.Results {
					if s.Verdicts.Overall.Malicious {
						maliciousCount++
					}
					scans = append(scans, map[string]any{
						"url":       s.Page.URL,
						"country":   s.Page.Country,
						"malicious": s.Verdicts.Overall.Malicious,
						"score":     s.Verdicts.Overall.Score,
						"date":      s.Task.Time,
					})
				}
				usTotal = usData.Total
				results["urlscan"] = map[string]any{
					"total_historical_scans": usData.Total,
					"recent_scans":           scans,
					"malicious_count":        maliciousCount,
				}
				if maliciousCount > 0 && severity == models.SeverityInfo {
					severity = models.SeverityHigh
					tags = append(tags, "urlscan-malicious")
				} else if usData.Total > 100 && severity == models.SeverityInfo {
					severity = models.SeverityMedium
					tags = append(tags, "high-scan-volume")
				}
			}()
		} else {
			results["urlscan"] = map[string]any{"error": err.Error()}
		}
	}

	summary := fmt.Sprintf("DomainRep: %s | DNSBL: %d list(s) | URLScan: %v historical scan(s)",
		value, len(dnsblListed), usTotal)
	if len(dnsblListed) > 0 {
		shown := dnsblListed
		if len(shown) > 3 {
			shown = shown[:3]
		}
		summary += " | Blacklisted on: " + strings.Join(shown, ", ")
	}
	if maliciousCount > 0 {
		summary += fmt.Sprintf(" | %d malicious scan verdict(s)", maliciousCount)
	}

	return &Result{
		ToolName: t.Name(),
		Category: t.Category(),
		RawData:  results,
		Summary:  summary,
		Severity: severity,
		Tags:     tags,
	}, nil
}
