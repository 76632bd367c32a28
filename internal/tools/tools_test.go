package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strconv"
	"testing"

	"github.com/valkyrieosint/valkyrie-backend/internal/config"
	"github.com/valkyrieosint/valkyrie-backend/internal/models"
)

func testConfig() *config.Config {
	return &config.Config{
		PhoneInfogaURL: "http://phoneinfoga:8080",
		ToolTimeoutSec: 5,
	}
}

func TestRegistry_OrderPerEntityType(t *testing.T) {
	reg := NewRegistry(testConfig())

	cases := map[string][]string{
		models.EntityTypePhone:    {"PhoneInfoga", "NumVerify"},
		models.EntityTypeEmail:    {"Holehe", "HaveIBeenPwned", "EmailRep", "VirusTotal"},
		models.EntityTypeUsername: {"Sherlock"},
		models.EntityTypeDomain:   {"WHOIS", "DNSDumpster", "VirusTotal", "DomainRep"},
		models.EntityTypeIP:       {"WHOIS", "IP-Geo"},
		models.EntityTypeName:     {"NameOSINT"},
		models.EntityTypeSocial:   {"Sherlock"},
		models.EntityTypeFile:     {"ExifTool"},
	}

	for entityType, want := range cases {
		adapters := reg.ForEntityType(entityType)
		var got []string
		for _, a := range adapters {
			got = append(got, a.Name())
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Entity type %s: expected %v, got %v", entityType, want, got)
		}
	}
}

func TestRegistry_UnmappedTypeReturnsNil(t *testing.T) {
	reg := NewRegistry(testConfig())
	if adapters := reg.ForEntityType("carrier-pigeon"); adapters != nil {
		t.Errorf("Expected nil for unmapped type, got %d adapters", len(adapters))
	}
}

func TestRegistry_PremiumFlags(t *testing.T) {
	reg := NewRegistry(testConfig())

	premium := map[string]bool{
		"HaveIBeenPwned": true,
		"EmailRep":       true,
		"IP-Geo":         true,
		"DomainRep":      true,
		"NameOSINT":      true,
	}

	seen := map[string]bool{}
	for _, entityType := range models.EntityTypes {
		for _, adapter := range reg.ForEntityType(entityType) {
			if seen[adapter.Name()] {
				continue
			}
			seen[adapter.Name()] = true
			if adapter.PremiumOnly() != premium[adapter.Name()] {
				t.Errorf("Adapter %s: expected premium=%v, got %v",
					adapter.Name(), premium[adapter.Name()], adapter.PremiumOnly())
			}
		}
	}
}

func TestNumVerify_SkippedWithoutKey(t *testing.T) {
	tool := &NumVerifyTool{Client: http.DefaultClient}
	result, err := tool.Run(context.Background(), "+15551234567")
	if err != nil {
		t.Fatalf("Expected skipped result, got error: %v", err)
	}
	if result.Severity != models.SeverityInfo {
		t.Errorf("Expected info severity, got %s", result.Severity)
	}
	if result.RawData["skipped"] != true {
		t.Error("Expected skipped flag in raw data")
	}
}

func TestHIBP_SkippedWithoutKey(t *testing.T) {
	tool := &HIBPTool{Client: http.DefaultClient}
	result, err := tool.Run(context.Background(), "a@example.com")
	if err != nil {
		t.Fatalf("Expected skipped result, got error: %v", err)
	}
	if result.RawData["skipped"] != true {
		t.Error("Expected skipped flag in raw data")
	}
}

func TestVirusTotal_SeverityFromMaliciousCount(t *testing.T) {
	cases := []struct {
		malicious  int
		suspicious int
		want       string
	}{
		{6, 0, models.SeverityCritical},
		{2, 0, models.SeverityHigh},
		{0, 1, models.SeverityMedium},
		{0, 0, models.SeverityInfo},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			body := `{"data":{"attributes":{"last_analysis_stats":{` +
				`"malicious":` + strconv.Itoa(tc.malicious) +
				`,"suspicious":` + strconv.Itoa(tc.suspicious) +
				`,"harmless":10,"undetected":5},"reputation":0}}}`
			w.Write([]byte(body))
		}))

		tool := &VirusTotalTool{APIKey: "test-key", Client: srv.Client(), BaseURL: srv.URL}
		result, err := tool.Run(context.Background(), "example.com")
		srv.Close()
		if err != nil {
			t.Fatalf("malicious=%d: unexpected error: %v", tc.malicious, err)
		}
		if result.Severity != tc.want {
			t.Errorf("malicious=%d suspicious=%d: expected %s, got %s",
				tc.malicious, tc.suspicious, tc.want, result.Severity)
		}
	}
}

func TestVirusTotal_NotFoundIsInfoNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	tool := &VirusTotalTool{APIKey: "test-key", Client: srv.Client(), BaseURL: srv.URL}
	result, err := tool.Run(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("Expected no-data result, got error: %v", err)
	}
	if result.Severity != models.SeverityInfo {
		t.Errorf("Expected info severity, got %s", result.Severity)
	}
}

func TestIPGeo_FlagsProxyAsHigh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","country":"Netherlands","city":"Amsterdam",` +
			`"isp":"Example VPN BV","as":"AS1234 Example","proxy":true,"hosting":false}`))
	}))
	defer srv.Close()

	tool := &IPGeoTool{Client: srv.Client(), BaseURL: srv.URL}
	result, err := tool.Run(context.Background(), "203.0.113.7")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Severity != models.SeverityHigh {
		t.Errorf("Expected high severity for proxy IP, got %s", result.Severity)
	}
	hasFlag := false
	for _, tag := range result.Tags {
		if tag == "proxy/vpn" {
			hasFlag = true
		}
	}
	if !hasFlag {
		t.Error("Expected proxy/vpn tag")
	}
}

func TestNameVariants(t *testing.T) {
	variants := nameVariants("John Smith")
	want := []string{"johnsmith", "john.smith", "john_smith", "jsmith", "smithjohn", "johns"}
	if !reflect.DeepEqual(variants, want) {
		t.Errorf("Expected %v, got %v", want, variants)
	}

	if got := nameVariants("madonna"); !reflect.DeepEqual(got, []string{"madonna"}) {
		t.Errorf("Expected single variant, got %v", got)
	}

	if got := nameVariants("   "); len(got) != 0 {
		t.Errorf("Expected no variants for blank name, got %v", got)
	}
}

func TestParseWhois(t *testing.T) {
	body := `% IANA WHOIS server
Domain Name: EXAMPLE.COM
Registrar: Example Registrar LLC
Creation Date: 1995-08-14T04:00:00Z
Registry Expiry Date: 2026-08-13T04:00:00Z
Name Server: A.IANA-SERVERS.NET
Name Server: B.IANA-SERVERS.NET
Registrant Country: US
DNSSEC: signedDelegation
`

	data := parseWhois(body)
	if data["registrar"] != "Example Registrar LLC" {
		t.Errorf("Unexpected registrar: %v", data["registrar"])
	}
	if data["creation_date"] != "1995-08-14T04:00:00Z" {
		t.Errorf("Unexpected creation date: %v", data["creation_date"])
	}
	ns, _ := data["name_servers"].([]string)
	if len(ns) != 2 {
		t.Errorf("Expected 2 name servers, got %v", data["name_servers"])
	}
	if data["country"] != "US" {
		t.Errorf("Unexpected country: %v", data["country"])
	}
}
