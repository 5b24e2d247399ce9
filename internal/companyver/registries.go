package companyver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	acraBaseURL           = "https://data.gov.sg/api/action/datastore_search"
	acraResourceID        = "d_3f960c10fed6145404ca7b821f263b87"
	companiesHouseBaseURL = "https://api.company-information.service.gov.uk"
	registryTimeout       = 4 * time.Second
)

// acraSearch queries the ACRA entities dataset on data.gov.sg. No API key is
// required for datastore reads.
func acraSearch(ctx context.Context, name string) (registryHit, error) {
	q := url.Values{}
	q.Set("resource_id", acraResourceID)
	q.Set("q", name)
	q.Set("limit", "5")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, acraBaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return registryHit{}, fmt.Errorf("build acra request: %w", err)
	}

	client := &http.Client{Timeout: registryTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return registryHit{}, fmt.Errorf("acra request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return registryHit{}, fmt.Errorf("acra status %d", resp.StatusCode)
	}

	var out struct {
		Result struct {
			Records []struct {
				EntityName   string `json:"entity_name"`
				EntityStatus string `json:"entity_status_description"`
			} `json:"records"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return registryHit{}, fmt.Errorf("decode acra response: %w", err)
	}

	want := normalizeCompanyName(name)
	for _, rec := range out.Result.Records {
		if normalizeCompanyName(rec.EntityName) == want {
			return registryHit{found: true, status: strings.ToLower(rec.EntityStatus)}, nil
		}
	}
	return registryHit{}, nil
}

type companiesHouseClient struct {
	apiKey string
	http   *http.Client
}

func newCompaniesHouseClient(apiKey string) *companiesHouseClient {
	return &companiesHouseClient{apiKey: apiKey, http: &http.Client{Timeout: registryTimeout}}
}

// search queries the Companies House search API. The API key goes in as HTTP
// basic auth username with an empty password.
func (c *companiesHouseClient) search(ctx context.Context, name string) (registryHit, error) {
	q := url.Values{}
	q.Set("q", name)
	q.Set("items_per_page", "5")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		companiesHouseBaseURL+"/search/companies?"+q.Encode(), nil)
	if err != nil {
		return registryHit{}, fmt.Errorf("build companies house request: %w", err)
	}
	req.SetBasicAuth(c.apiKey, "")

	resp, err := c.http.Do(req)
	if err != nil {
		return registryHit{}, fmt.Errorf("companies house request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return registryHit{}, fmt.Errorf("companies house status %d", resp.StatusCode)
	}

	var out struct {
		Items []struct {
			Title         string `json:"title"`
			CompanyStatus string `json:"company_status"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return registryHit{}, fmt.Errorf("decode companies house response: %w", err)
	}

	want := normalizeCompanyName(name)
	for _, item := range out.Items {
		if normalizeCompanyName(item.Title) == want {
			return registryHit{found: true, status: item.CompanyStatus}, nil
		}
	}
	return registryHit{}, nil
}

// normalizeCompanyName lowercases and strips punctuation and corporate
// suffixes so "Apex Global Pte. Ltd." matches "APEX GLOBAL PTE LTD".
func normalizeCompanyName(name string) string {
	lower := strings.ToLower(name)
	lower = strings.Map(func(r rune) rune {
		switch r {
		case '.', ',', '\'', '"':
			return -1
		}
		return r
	}, lower)
	fields := strings.Fields(lower)
	for len(fields) > 0 {
		switch fields[len(fields)-1] {
		case "pte", "ltd", "limited", "inc", "llc", "corp", "corporation", "incorporated", "company":
			fields = fields[:len(fields)-1]
		default:
			return strings.Join(fields, " ")
		}
	}
	return ""
}
