package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type PredictionClient struct {
	baseURL string
	http    *http.Client
}

func NewPredictionClient(baseURL string, timeout time.Duration) *PredictionClient {
	return &PredictionClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type PredictRequest struct {
	Pack []string `json:"pack"`
	Deck []string `json:"deck"`
	Set  string   `json:"set"`
}

type Prediction struct {
	CardName    string  `json:"card_name"`
	Probability float64 `json:"probability"`
}

// predictResponse accepts the ranked list under either key, and the older
// single-name replies the service has returned.
type predictResponse struct {
	Predictions []Prediction    `json:"predictions"`
	Prediction  json.RawMessage `json:"prediction"`
	Card        string          `json:"card"`
	Pick        string          `json:"pick"`
	Choice      string          `json:"choice"`
}

func (r *predictResponse) ranked() []Prediction {
	if len(r.Predictions) > 0 {
		return r.Predictions
	}
	if len(r.Prediction) > 0 {
		var list []Prediction
		if err := json.Unmarshal(r.Prediction, &list); err == nil && len(list) > 0 {
			return list
		}
		var name string
		if err := json.Unmarshal(r.Prediction, &name); err == nil && name != "" {
			return []Prediction{{CardName: name, Probability: 1}}
		}
	}
	for _, name := range []string{r.Card, r.Pick, r.Choice} {
		if name != "" {
			return []Prediction{{CardName: name, Probability: 1}}
		}
	}
	return nil
}

// Predict returns the service's ranking for the pack, best first.
func (c *PredictionClient) Predict(ctx context.Context, in PredictRequest) ([]Prediction, error) {
	if in.Deck == nil {
		in.Deck = []string{}
	}
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to encode prediction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(ServicePredictor, err)
	}
	if err := checkStatus(ServicePredictor, resp); err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, malformed(ServicePredictor, "decode predictions: %v", err)
	}
	ranked := out.ranked()
	if len(ranked) == 0 {
		return nil, malformed(ServicePredictor, "no predictions in response")
	}
	return ranked, nil
}
