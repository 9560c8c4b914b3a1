package testutils

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/ahrav/go-mfdc/internal/domain"
)

// generatedEpoch anchors synthetic submission timestamps so output is
// reproducible.
var generatedEpoch = time.Date(2024, time.January, 15, 9, 0, 0, 0, time.UTC)

// GenerateResponses creates n synthetic stored responses for sessionCode.
// Types cycle through all 16 codes so any n >= 16 covers every type. Each
// axis gives the dominant pole 55..85 percent and the other pole the rest.
// The seed parameter controls randomization; the same arguments always
// produce the same responses.
func GenerateResponses(sessionCode string, n int, seed int64) []domain.StoredResponse {
	rng := rand.New(rand.NewSource(seed))
	codes := domain.AllTypeCodes()
	specs := domain.AxisSpecs()

	out := make([]domain.StoredResponse, 0, n)
	for i := range n {
		code := codes[i%len(codes)]
		scores := make(domain.StoredAxisScores, len(specs))
		poles := make(domain.StoredPoles, len(specs))

		for a, spec := range specs {
			dominant := math.Round((55+rng.Float64()*30)*100) / 100
			rest := math.Round((domain.ScaleTotal-dominant)*100) / 100
			if code[a] == spec.Code1 {
				scores[spec.Key] = map[string]float64{spec.Pole1Key: dominant, spec.Pole2Key: rest}
				poles[spec.Key] = spec.Pole1Key
			} else {
				scores[spec.Key] = map[string]float64{spec.Pole1Key: rest, spec.Pole2Key: dominant}
				poles[spec.Key] = spec.Pole2Key
			}
		}

		out = append(out, domain.StoredResponse{
			ID:               fmt.Sprintf("%s-%04d", sessionCode, i+1),
			SessionCode:      sessionCode,
			LeadershipType:   code,
			AxisScores:       scores,
			Pole:             poles,
			ParticipantName:  fmt.Sprintf("Participant %03d", i+1),
			ParticipantEmail: fmt.Sprintf("participant%03d@example.com", i+1),
			ClientHash:       fmt.Sprintf("%016x", rng.Uint64()),
			SubmittedAt:      generatedEpoch.Add(time.Duration(i) * time.Minute),
		})
	}
	return out
}

// LoadResponses reads a JSON array of stored responses from path.
func LoadResponses(path string) ([]domain.StoredResponse, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read responses file: %w", err)
	}
	var responses []domain.StoredResponse
	if err := json.Unmarshal(data, &responses); err != nil {
		return nil, fmt.Errorf("failed to parse responses JSON: %w", err)
	}
	if responses == nil {
		responses = []domain.StoredResponse{}
	}
	return responses, nil
}

// SaveResponses writes responses to path as indented JSON, creating parent
// directories as needed.
func SaveResponses(responses []domain.StoredResponse, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(responses, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal responses: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write responses file: %w", err)
	}
	return nil
}
