package domainrep

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const safeBrowsingBaseURL = "https://safebrowsing.googleapis.com/v4/threatMatches:find"

type safeBrowsingClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func newSafeBrowsingClient(apiKey string) *safeBrowsingClient {
	return &safeBrowsingClient{apiKey: apiKey, baseURL: safeBrowsingBaseURL, http: &http.Client{Timeout: sbTimeout}}
}

type sbRequest struct {
	Client struct {
		ClientID      string `json:"clientId"`
		ClientVersion string `json:"clientVersion"`
	} `json:"client"`
	ThreatInfo struct {
		ThreatTypes      []string `json:"threatTypes"`
		PlatformTypes    []string `json:"platformTypes"`
		ThreatEntryTypes []string `json:"threatEntryTypes"`
		ThreatEntries    []struct {
			URL string `json:"url"`
		} `json:"threatEntries"`
	} `json:"threatInfo"`
}

type sbResponse struct {
	Matches []struct {
		ThreatType string `json:"threatType"`
	} `json:"matches"`
}

// check asks Safe Browsing whether the domain appears on any threat list. An
// empty matches array is a clean verdict.
func (c *safeBrowsingClient) check(ctx context.Context, domain string) (sbInfo, error) {
	var req sbRequest
	req.Client.ClientID = "scamshield"
	req.Client.ClientVersion = "1.0"
	req.ThreatInfo.ThreatTypes = []string{"MALWARE", "SOCIAL_ENGINEERING", "UNWANTED_SOFTWARE", "POTENTIALLY_HARMFUL_APPLICATION"}
	req.ThreatInfo.PlatformTypes = []string{"ANY_PLATFORM"}
	req.ThreatInfo.ThreatEntryTypes = []string{"URL"}
	req.ThreatInfo.ThreatEntries = []struct {
		URL string `json:"url"`
	}{{URL: "https://" + domain + "/"}}

	body, err := json.Marshal(req)
	if err != nil {
		return sbInfo{}, fmt.Errorf("marshal safebrowsing request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"?key="+c.apiKey, bytes.NewReader(body))
	if err != nil {
		return sbInfo{}, fmt.Errorf("build safebrowsing request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return sbInfo{}, fmt.Errorf("safebrowsing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return sbInfo{}, fmt.Errorf("safebrowsing status %d", resp.StatusCode)
	}

	var out sbResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return sbInfo{}, fmt.Errorf("decode safebrowsing response: %w", err)
	}

	info := sbInfo{flagged: len(out.Matches) > 0}
	seen := map[string]bool{}
	for _, m := range out.Matches {
		if !seen[m.ThreatType] {
			seen[m.ThreatType] = true
			info.threatTypes = append(info.threatTypes, m.ThreatType)
		}
	}
	return info, nil
}
