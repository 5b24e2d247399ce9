package domainrep

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const virusTotalBaseURL = "https://www.virustotal.com/api/v3"

type virusTotalClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func newVirusTotalClient(apiKey string) *virusTotalClient {
	return &virusTotalClient{apiKey: apiKey, baseURL: virusTotalBaseURL, http: &http.Client{Timeout: vtTimeout}}
}

type vtDomainReport struct {
	Data struct {
		Attributes struct {
			LastAnalysisStats map[string]int `json:"last_analysis_stats"`
		} `json:"attributes"`
	} `json:"data"`
}

// check fetches the domain's last analysis stats. The total is the sum across
// all verdict buckets so the malicious ratio stays meaningful as VT adds
// engines.
func (c *virusTotalClient) check(ctx context.Context, domain string) (vtInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/domains/"+domain, nil)
	if err != nil {
		return vtInfo{}, fmt.Errorf("build virustotal request: %w", err)
	}
	req.Header.Set("x-apikey", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return vtInfo{}, fmt.Errorf("virustotal request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// Unknown domain: a completed check with zero verdicts.
		return vtInfo{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return vtInfo{}, fmt.Errorf("virustotal status %d", resp.StatusCode)
	}

	var report vtDomainReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return vtInfo{}, fmt.Errorf("decode virustotal response: %w", err)
	}

	info := vtInfo{}
	for bucket, n := range report.Data.Attributes.LastAnalysisStats {
		info.total += n
		if bucket == "malicious" || bucket == "suspicious" {
			info.malicious += n
		}
	}
	return info, nil
}
