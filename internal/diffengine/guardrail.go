package diffengine

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

// GuardrailConfig identifies the Bedrock guardrail to check diff content
// against before a merge is allowed to proceed.
type GuardrailConfig struct {
	Region      string
	GuardrailID string
	Version     string
}

// GuardrailResult is the outcome of a single ApplyGuardrail call.
type GuardrailResult struct {
	Blocked bool
	Reasons []string
}

type guardrailRequest struct {
	Source  string               `json:"source"`
	Content []guardrailContentIn `json:"content"`
}

type guardrailContentIn struct {
	Text guardrailText `json:"text"`
}

type guardrailText struct {
	Text string `json:"text"`
}

type guardrailResponse struct {
	Action      string `json:"action"`
	Assessments []struct {
		Topics []struct {
			Name string `json:"name"`
		} `json:"topicPolicy,omitempty"`
	} `json:"assessments"`
}

// CheckGuardrail submits the rendered diff text to a Bedrock guardrail.
// Any transport or API error is returned so the caller can decide whether
// to treat an unreachable guardrail as advisory; the guardrail check is
// never allowed to hang a merge indefinitely given the 15s timeout below.
func CheckGuardrail(ctx context.Context, cfg GuardrailConfig, text string) (GuardrailResult, error) {
	if len(text) > 100_000 {
		text = text[:100_000]
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return GuardrailResult{}, fmt.Errorf("guardrail: load aws config: %w", err)
	}
	creds, err := awsCfg.Credentials.Retrieve(ctx)
	if err != nil {
		return GuardrailResult{}, fmt.Errorf("guardrail: retrieve credentials: %w", err)
	}

	body, err := json.Marshal(guardrailRequest{
		Source:  "OUTPUT",
		Content: []guardrailContentIn{{Text: guardrailText{Text: text}}},
	})
	if err != nil {
		return GuardrailResult{}, err
	}

	host := fmt.Sprintf("bedrock-runtime.%s.amazonaws.com", cfg.Region)
	url := fmt.Sprintf("https://%s/guardrail/%s/version/%s/apply", host, cfg.GuardrailID, cfg.Version)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return GuardrailResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	sum := sha256.Sum256(body)
	payloadHash := hex.EncodeToString(sum[:])

	signer := v4.NewSigner()
	if err := signer.SignHTTP(ctx, creds, req, payloadHash, "bedrock", cfg.Region, time.Now()); err != nil {
		return GuardrailResult{}, fmt.Errorf("guardrail: sign request: %w", err)
	}

	httpClient := &http.Client{Timeout: 15 * time.Second}
	resp, err := httpClient.Do(req)
	if err != nil {
		return GuardrailResult{}, fmt.Errorf("guardrail: request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return GuardrailResult{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return GuardrailResult{}, fmt.Errorf("guardrail: status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed guardrailResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return GuardrailResult{}, fmt.Errorf("guardrail: decode response: %w", err)
	}

	result := GuardrailResult{Blocked: parsed.Action == "GUARDRAIL_INTERVENED"}
	for _, a := range parsed.Assessments {
		for _, t := range a.Topics {
			result.Reasons = append(result.Reasons, t.Name)
		}
	}
	return result, nil
}
